// Package storage defines the backend-neutral store used by the CLI.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/lectern/internal/live"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
	"github.com/julianstephens/lectern/internal/recurrence"
	"github.com/julianstephens/lectern/internal/schema"
	"github.com/julianstephens/lectern/internal/storage/sqlstore"
	"github.com/julianstephens/lectern/internal/validation"
)

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error
	// Migrate applies pending schema migrations and returns how many ran.
	Migrate(logFn func(string)) (int, error)
	// SchemaVersion returns the applied and the newest bundled schema version.
	SchemaVersion() (current, latest int, err error)

	// Mutations
	Insert(ctx context.Context, row models.Row) (int64, error)
	Update(ctx context.Context, row models.Row) error
	Delete(ctx context.Context, entity models.Entity, id int64) (*schema.ChangeSet, error)
	// PlanDelete returns what Delete would change without changing it.
	PlanDelete(ctx context.Context, entity models.Entity, id int64) (*schema.ChangeSet, error)
	MarkReminderTriggered(ctx context.Context, id int64) error

	// Queries
	FindByID(ctx context.Context, entity models.Entity, id int64) (models.Row, error)
	FindMany(ctx context.Context, q query.Query) ([]models.Row, error)
	ExpandOccurrences(ctx context.Context, templateID int64, w recurrence.Window) (recurrence.Result, error)
	Agenda(ctx context.Context, w recurrence.Window) (recurrence.Result, error)
	DueReminders(ctx context.Context, at time.Time) ([]sqlstore.DueReminder, error)

	// Subscriptions
	Subscribe(ctx context.Context, q query.Query) (*live.Subscription, error)
	Unsubscribe(id uuid.UUID) bool

	// Settings
	AppSettings(ctx context.Context) (models.AppSettings, error)
	SaveAppSettings(ctx context.Context, s models.AppSettings) error
	CalendarSettings(ctx context.Context) (models.CalendarSettings, error)
	SaveCalendarSettings(ctx context.Context, s models.CalendarSettings) error

	// Utils
	CheckIntegrity(ctx context.Context) (*validation.ValidationResult, error)
	GetConfigPath() string
}
