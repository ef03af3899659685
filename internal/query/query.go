// Package query describes declarative reads against a single table.
package query

import (
	"fmt"
	"strings"

	"github.com/julianstephens/lectern/internal/models"
)

type Op int

const (
	OpEq Op = iota
	OpIsNull
	OpNotNull
)

// Cond is a single column condition. Conditions in a Query are ANDed.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

func (c Cond) String() string {
	switch c.Op {
	case OpIsNull:
		return c.Column + " IS NULL"
	case OpNotNull:
		return c.Column + " IS NOT NULL"
	default:
		return fmt.Sprintf("%s = %v", c.Column, c.Value)
	}
}

func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: OpEq, Value: value}
}

func IsNull(column string) Cond {
	return Cond{Column: column, Op: OpIsNull}
}

func NotNull(column string) Cond {
	return Cond{Column: column, Op: OpNotNull}
}

// Query selects rows of Entity. Where is evaluated by the store; Match, when
// set, filters the decoded rows afterwards. Limit 0 means no limit.
type Query struct {
	Entity models.Entity
	Where  []Cond
	Match  func(models.Row) bool
	Limit  int
}

// For starts a query on entity.
func For(entity models.Entity, where ...Cond) Query {
	return Query{Entity: entity, Where: where}
}

// Filter returns a copy of q with match applied after Where.
func (q Query) Filter(match func(models.Row) bool) Query {
	q.Match = match
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

func (q Query) Validate() error {
	if !q.Entity.Valid() {
		return fmt.Errorf("unknown entity %q", q.Entity)
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// Apply runs Match and Limit over rows that already satisfy Where.
func (q Query) Apply(rows []models.Row) []models.Row {
	out := rows
	if q.Match != nil {
		out = make([]models.Row, 0, len(rows))
		for _, r := range rows {
			if q.Match(r) {
				out = append(out, r)
			}
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString(string(q.Entity))
	for i, c := range q.Where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(c.String())
	}
	if q.Match != nil {
		b.WriteString(" (filtered)")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String()
}
