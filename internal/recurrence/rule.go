// Package recurrence parses recurrence rules and expands recurring calendar
// events into concrete occurrences.
//
// Rules use a subset of the RFC 5545 RRULE text format, for example
// "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;UNTIL=20240630". Unknown keys are
// ignored so that rules written by newer clients still parse.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/errors"
)

type Frequency int

const (
	Daily Frequency = iota + 1
	Weekly
	Monthly
	Yearly
)

var frequencyNames = map[Frequency]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

func (f Frequency) String() string {
	if s, ok := frequencyNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

func (f Frequency) rrule() rrule.Frequency {
	switch f {
	case Daily:
		return rrule.DAILY
	case Weekly:
		return rrule.WEEKLY
	case Monthly:
		return rrule.MONTHLY
	default:
		return rrule.YEARLY
	}
}

var weekdayCodes = []string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Rule is a parsed recurrence rule. Count and Until are mutually exclusive;
// zero values mean unbounded.
type Rule struct {
	Freq     Frequency
	Interval int
	Count    int
	Until    time.Time
	// UntilDate marks an UNTIL given as a bare date, which includes the whole day.
	UntilDate  bool
	ByDay      []time.Weekday
	ByMonthDay []int
}

// Parse parses rule text. An "RRULE:" prefix is accepted.
func Parse(text string) (Rule, error) {
	raw := strings.TrimSpace(text)
	if len(raw) >= 6 && strings.EqualFold(raw[:6], "RRULE:") {
		raw = raw[6:]
	}
	if raw == "" {
		return Rule{}, errors.MalformedRule(text, "empty rule")
	}

	r := Rule{Interval: 1}
	seen := make(map[string]bool)

	for _, part := range strings.Split(raw, ";") {
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, errors.MalformedRule(text, "expected KEY=VALUE, got %q", part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.ToUpper(strings.TrimSpace(value))
		if seen[key] {
			return Rule{}, errors.MalformedRule(text, "duplicate %s", key)
		}
		seen[key] = true

		var err error
		switch key {
		case "FREQ":
			err = r.parseFreq(value)
		case "INTERVAL":
			r.Interval, err = positiveInt(key, value)
		case "COUNT":
			r.Count, err = positiveInt(key, value)
		case "UNTIL":
			err = r.parseUntil(value)
		case "BYDAY":
			err = r.parseByDay(value)
		case "BYMONTHDAY":
			err = r.parseByMonthDay(value)
		}
		if err != nil {
			return Rule{}, errors.MalformedRule(text, "%v", err)
		}
	}

	if r.Freq == 0 {
		return Rule{}, errors.MalformedRule(text, "FREQ is required")
	}
	if r.Count > 0 && !r.Until.IsZero() {
		return Rule{}, errors.MalformedRule(text, "COUNT and UNTIL are mutually exclusive")
	}
	return r, nil
}

func (r *Rule) parseFreq(value string) error {
	for f, name := range frequencyNames {
		if name == value {
			r.Freq = f
			return nil
		}
	}
	return fmt.Errorf("unsupported FREQ %q", value)
}

func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}

func (r *Rule) parseUntil(value string) error {
	if t, err := time.ParseInLocation(constants.RuleUntilFormat, value, time.UTC); err == nil {
		r.Until = t
		return nil
	}
	if t, err := time.ParseInLocation(constants.RuleDateFormat, value, time.UTC); err == nil {
		r.Until = t
		r.UntilDate = true
		return nil
	}
	return fmt.Errorf("UNTIL must be YYYYMMDD or YYYYMMDDTHHMMSSZ, got %q", value)
}

func (r *Rule) parseByDay(value string) error {
	for _, code := range strings.Split(value, ",") {
		idx := -1
		for i, c := range weekdayCodes {
			if c == code {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("invalid BYDAY value %q", code)
		}
		r.ByDay = append(r.ByDay, time.Weekday(idx))
	}
	return nil
}

func (r *Rule) parseByMonthDay(value string) error {
	for _, s := range strings.Split(value, ",") {
		n, err := strconv.Atoi(s)
		if err != nil || n == 0 || n < -31 || n > 31 {
			return fmt.Errorf("invalid BYMONTHDAY value %q", s)
		}
		r.ByMonthDay = append(r.ByMonthDay, n)
	}
	return nil
}

// String renders the rule in canonical form. Parse(r.String()) yields r.
func (r Rule) String() string {
	parts := []string{"FREQ=" + r.Freq.String()}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if !r.Until.IsZero() {
		if r.UntilDate {
			parts = append(parts, "UNTIL="+r.Until.UTC().Format(constants.RuleDateFormat))
		} else {
			parts = append(parts, "UNTIL="+r.Until.UTC().Format(constants.RuleUntilFormat))
		}
	}
	if len(r.ByDay) > 0 {
		days := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			days[i] = weekdayCodes[d]
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if len(r.ByMonthDay) > 0 {
		days := make([]string, len(r.ByMonthDay))
		for i, d := range r.ByMonthDay {
			days[i] = strconv.Itoa(d)
		}
		parts = append(parts, "BYMONTHDAY="+strings.Join(days, ","))
	}
	return strings.Join(parts, ";")
}

// inclusiveUntil is the last instant an occurrence may start at.
func (r Rule) inclusiveUntil() time.Time {
	if r.UntilDate {
		return r.Until.Add(24*time.Hour - time.Second)
	}
	return r.Until
}

// compile builds the rrule-go generator anchored at dtstart.
func (r Rule) compile(dtstart time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Freq:       r.Freq.rrule(),
		Dtstart:    dtstart,
		Interval:   r.Interval,
		Count:      r.Count,
		Bymonthday: r.ByMonthDay,
	}
	if !r.Until.IsZero() {
		opt.Until = r.inclusiveUntil()
	}
	for _, d := range r.ByDay {
		opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
	}
	return rrule.NewRRule(opt)
}
