package sqlstore

import (
	"context"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/models"
)

// DefaultCalendarSettings is the row written by EnsureSingletons.
func DefaultCalendarSettings() models.CalendarSettings {
	return models.CalendarSettings{
		ID:                      constants.SingletonRowID,
		DefaultView:             constants.DefaultView,
		WeekStart:               constants.DefaultWeekStart,
		WorkdayStart:            constants.DefaultWorkdayStart,
		WorkdayEnd:              constants.DefaultWorkdayEnd,
		DefaultEventDurationMin: constants.DefaultEventDurationMin,
		DefaultReminderOffsets:  append([]int(nil), constants.DefaultReminderOffsets...),
		TimeFormat:              constants.DefaultTimeFormat,
	}
}

// EnsureSingletons creates the settings rows that do not exist yet.
func (s *Store) EnsureSingletons(ctx context.Context) error {
	defaults := []models.Row{
		models.AppSettings{ID: constants.SingletonRowID, Preferences: map[string]any{}},
		DefaultCalendarSettings(),
	}
	for _, row := range defaults {
		if _, err := s.Insert(ctx, row); err != nil && !errors.Is(err, errors.ErrSingletonViolation) {
			return err
		}
	}
	return nil
}

func (s *Store) AppSettings(ctx context.Context) (models.AppSettings, error) {
	row, err := s.FindByID(ctx, models.EntityAppSettings, constants.SingletonRowID)
	if err != nil {
		return models.AppSettings{}, err
	}
	return row.(models.AppSettings), nil
}

func (s *Store) SaveAppSettings(ctx context.Context, settings models.AppSettings) error {
	settings.ID = constants.SingletonRowID
	return s.Update(ctx, settings)
}

func (s *Store) CalendarSettings(ctx context.Context) (models.CalendarSettings, error) {
	row, err := s.FindByID(ctx, models.EntityCalendarSettings, constants.SingletonRowID)
	if err != nil {
		return models.CalendarSettings{}, err
	}
	return row.(models.CalendarSettings), nil
}

func (s *Store) SaveCalendarSettings(ctx context.Context, settings models.CalendarSettings) error {
	settings.ID = constants.SingletonRowID
	return s.Update(ctx, settings)
}
