package board

import (
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/validation"
)

// SettingsPatch changes the user settings; nil fields are left alone
type SettingsPatch struct {
	Theme           *models.Theme       `json:"theme,omitempty" validate:"omitempty,theme"`
	AutoArchiveDays *int                `json:"auto_archive_days,omitempty" validate:"omitempty,min=1,max=365"`
	ColumnsOrder    []models.TaskStatus `json:"columns_order,omitempty" validate:"omitempty,dive,task_status"`
}

// UpdateSettings saves the changed settings. A column order must name
// every column exactly once.
func (s *Session) UpdateSettings(ctx context.Context, patch SettingsPatch) (*models.UserSettings, error) {
	if err := validation.Validate.Struct(patch); err != nil {
		return nil, invalid("invalid settings: %v", err)
	}
	if patch.ColumnsOrder != nil && !isPermutation(patch.ColumnsOrder) {
		return nil, invalid("columns order must list every column once")
	}
	settings := s.store.Settings()
	if settings == nil {
		return nil, fmt.Errorf("settings: %w", ErrNotFound)
	}
	if patch.Theme != nil {
		settings.Theme = *patch.Theme
	}
	if patch.AutoArchiveDays != nil {
		settings.AutoArchiveDays = *patch.AutoArchiveDays
	}
	if patch.ColumnsOrder != nil {
		settings.ColumnsOrder = slices.Clone(patch.ColumnsOrder)
	}
	if err := s.gw.Settings.Update(ctx, settings); err != nil {
		s.logger.Error("settings_update_failed", zap.Error(err))
		s.notifyError("Could not save your settings")
		return nil, err
	}
	s.store.SetSettings(settings)
	return settings, nil
}

func isPermutation(order []models.TaskStatus) bool {
	if len(order) != len(models.AllStatuses) {
		return false
	}
	seen := make(map[models.TaskStatus]bool, len(order))
	for _, st := range order {
		if !st.Valid() || seen[st] {
			return false
		}
		seen[st] = true
	}
	return true
}

// DailySummary counts what needs attention today. Show is false once the
// summary was dismissed for the current calendar day.
type DailySummary struct {
	Date    civil.Date `json:"date"`
	Today   int        `json:"today"`
	Overdue int        `json:"overdue"`
	Show    bool       `json:"show"`
}

// DailySummary computes the summary for the current profile
func (s *Session) DailySummary() DailySummary {
	today := s.clock.Today()
	sum := DailySummary{Date: today}
	for _, t := range s.store.Tasks() {
		switch DisplayStatus(t, today) {
		case models.TaskStatusToday:
			sum.Today++
		case models.TaskStatusOverdue:
			sum.Overdue++
		}
	}
	settings := s.store.Settings()
	shown := settings != nil && settings.LastDailySummary != nil && !settings.LastDailySummary.Before(today)
	sum.Show = !shown && sum.Today+sum.Overdue > 0
	return sum
}

// DismissSummary records that today's summary was seen
func (s *Session) DismissSummary(ctx context.Context) error {
	settings := s.store.Settings()
	if settings == nil {
		return fmt.Errorf("settings: %w", ErrNotFound)
	}
	today := s.clock.Today()
	settings.LastDailySummary = &today
	if err := s.gw.Settings.Update(ctx, settings); err != nil {
		s.logger.Warn("daily_summary_dismiss_failed", zap.Error(err))
		return err
	}
	s.store.SetSettings(settings)
	return nil
}
