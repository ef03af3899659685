package constants

import "time"

// Calendar views
const (
	ViewDay    = "day"
	ViewWeek   = "week"
	ViewMonth  = "month"
	ViewAgenda = "agenda"
)

// Clock formats
const (
	TimeFormat12h = "12h"
	TimeFormat24h = "24h"
)

// Reminder types
const (
	ReminderNotification = "notification"
	ReminderEmail        = "email"
	ReminderAlarm        = "alarm"
)

// Default Settings Values
const (
	DefaultView                = ViewWeek
	DefaultWorkdayStart        = "09:00"
	DefaultWorkdayEnd          = "17:00"
	DefaultEventDurationMin    = 60
	DefaultTimeFormat          = TimeFormat24h
	DefaultCategoryColor       = "#4F86F7"
	DefaultReminderType        = ReminderNotification
	DefaultMaxOccurrences      = 5000
	DefaultSubscriptionBacklog = 1
)

// DefaultWeekStart is the first column of week views.
const DefaultWeekStart = time.Monday

// DefaultReminderOffsets are the minutes-before-start offsets applied to new events.
var DefaultReminderOffsets = []int{10}
