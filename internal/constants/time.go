package constants

const (
	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// DateTimeFormat is accepted by the CLI for event start/end flags
	DateTimeFormat = "2006-01-02 15:04"

	// StorageTimeFormat is the fixed-width UTC layout persisted in every timestamp column.
	// Lexical order equals chronological order.
	StorageTimeFormat = "2006-01-02T15:04:05.000000000Z"

	// RuleUntilFormat and RuleDateFormat are the UNTIL layouts of the recurrence rule text
	RuleUntilFormat = "20060102T150405Z"
	RuleDateFormat  = "20060102"
)
