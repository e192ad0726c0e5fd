package board

import (
	"slices"

	"cloud.google.com/go/civil"

	"github.com/benvon/taskboard/internal/models"
)

// Columns maps every display status to its sorted tasks. All six keys are
// always present.
type Columns map[models.TaskStatus][]models.Task

// GroupByColumn buckets tasks by display status and sorts each bucket by
// priority (high first) then by order.
func GroupByColumn(tasks []models.Task, today civil.Date) Columns {
	cols := make(Columns, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		cols[s] = []models.Task{}
	}
	for _, t := range tasks {
		s := DisplayStatus(t, today)
		cols[s] = append(cols[s], t)
	}
	for _, s := range models.AllStatuses {
		slices.SortStableFunc(cols[s], compareTasks)
	}
	return cols
}

func compareTasks(a, b models.Task) int {
	if d := a.Priority.Rank() - b.Priority.Rank(); d != 0 {
		return d
	}
	return a.Order - b.Order
}

// Column is one rendered board column
type Column struct {
	Status models.TaskStatus `json:"status"`
	Tasks  []models.Task     `json:"tasks"`
}

// Ordered lays the columns out in the given order. Statuses missing from
// order are appended in default order so no column is ever dropped.
func (c Columns) Ordered(order []models.TaskStatus) []Column {
	out := make([]Column, 0, len(models.AllStatuses))
	seen := make(map[models.TaskStatus]bool, len(models.AllStatuses))
	for _, s := range append(slices.Clone(order), models.AllStatuses...) {
		tasks, ok := c[s]
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, Column{Status: s, Tasks: tasks})
	}
	return out
}
