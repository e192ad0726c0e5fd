package board

import (
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

// BoardView is everything the columns screen renders
type BoardView struct {
	Today          civil.Date           `json:"today"`
	CurrentProfile *uuid.UUID           `json:"current_profile_id,omitempty"`
	Profiles       []models.Profile     `json:"profiles"`
	Categories     []models.Category    `json:"categories"`
	Columns        []Column             `json:"columns"`
	Filters        Criteria             `json:"filters"`
	View           models.ViewMode      `json:"view"`
	Selected       []uuid.UUID          `json:"selected"`
	Modals         ModalState           `json:"modals"`
	Settings       *models.UserSettings `json:"settings,omitempty"`
	Summary        DailySummary         `json:"daily_summary"`
	Loading        bool                 `json:"loading"`
}

// visibleTasks is the filter pipeline shared by both views: archived tasks
// are dropped before the criteria apply.
func (s *Session) visibleTasks(c Criteria) []models.Task {
	return Filter(ExcludeArchived(s.store.Tasks()), c)
}

// Board renders the columns view. Display statuses are computed here
// against today's date and never stored.
func (s *Session) Board() BoardView {
	today := s.clock.Today()
	var order []models.TaskStatus
	settings := s.store.Settings()
	if settings != nil {
		order = settings.ColumnsOrder
	}
	v := BoardView{
		Today:      today,
		Profiles:   s.store.Profiles(),
		Categories: s.store.Categories(),
		Columns:    GroupByColumn(s.visibleTasks(s.store.Filters()), today).Ordered(order),
		Filters:    s.store.Filters(),
		View:       s.store.View(),
		Selected:   s.store.Selected(),
		Modals:     s.store.Modals(),
		Settings:   settings,
		Summary:    s.DailySummary(),
		Loading:    s.store.Loading(),
	}
	if id, ok := s.store.CurrentProfile(); ok {
		v.CurrentProfile = &id
	}
	return v
}

// CalendarDay is one cell of the month grid
type CalendarDay struct {
	Date  civil.Date    `json:"date"`
	Tasks []models.Task `json:"tasks"`
}

// CalendarView is a month of dated tasks plus the tasks without a date
type CalendarView struct {
	Year        int           `json:"year"`
	Month       time.Month    `json:"month"`
	Days        []CalendarDay `json:"days"`
	Unscheduled []models.Task `json:"unscheduled"`
}

// Calendar renders the month view. The selected-date criterion picks a
// day to highlight, so it does not narrow the grid itself.
func (s *Session) Calendar(year int, month time.Month) (CalendarView, error) {
	if month < time.January || month > time.December {
		return CalendarView{}, invalid("month %d out of range", month)
	}
	c := s.store.Filters()
	c.SelectedDate = nil
	tasks := s.visibleTasks(c)

	first := civil.Date{Year: year, Month: month, Day: 1}
	byDay := make(map[civil.Date][]models.Task)
	view := CalendarView{Year: year, Month: month, Unscheduled: []models.Task{}}
	for _, t := range tasks {
		if t.DueDate == nil {
			view.Unscheduled = append(view.Unscheduled, t)
			continue
		}
		if t.DueDate.Year == year && t.DueDate.Month == month {
			byDay[*t.DueDate] = append(byDay[*t.DueDate], t)
		}
	}
	for d := first; d.Month == month; d = d.AddDays(1) {
		dayTasks := byDay[d]
		if dayTasks == nil {
			dayTasks = []models.Task{}
		}
		slices.SortStableFunc(dayTasks, compareTasks)
		view.Days = append(view.Days, CalendarDay{Date: d, Tasks: dayTasks})
	}
	slices.SortStableFunc(view.Unscheduled, compareTasks)
	return view, nil
}

// SetFilters replaces the filter criteria after checking the enum values
func (s *Session) SetFilters(c Criteria) error {
	if c.Priority != nil {
		if err := s.validateTaskValues(*c.Priority, "", nil, nil); err != nil {
			return err
		}
	}
	if c.CategoryID != nil {
		if _, ok := s.store.Category(*c.CategoryID); !ok {
			return invalid("unknown category %s", c.CategoryID)
		}
	}
	s.store.SetFilters(c)
	return nil
}

// SelectVisible selects every task the current filters show
func (s *Session) SelectVisible() []uuid.UUID {
	visible := s.visibleTasks(s.store.Filters())
	ids := make([]uuid.UUID, len(visible))
	for i, t := range visible {
		ids[i] = t.ID
	}
	s.store.SelectAll(ids)
	return s.store.Selected()
}

// ToggleSelected adds a task to the selection or removes it
func (s *Session) ToggleSelected(id uuid.UUID) (bool, error) {
	if _, ok := s.store.Task(id); !ok {
		return false, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	return s.store.ToggleSelected(id), nil
}
