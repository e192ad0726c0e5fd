package board

import (
	"cloud.google.com/go/civil"

	"github.com/benvon/taskboard/internal/models"
)

// DisplayStatus is the column a task is shown in on the given day.
// Completed and archived tasks keep their stored status; otherwise the due
// date alone decides, so a stored status of "today" goes stale overnight
// without anything being written.
func DisplayStatus(t models.Task, today civil.Date) models.TaskStatus {
	if t.Status.Terminal() {
		return t.Status
	}
	if t.DueDate == nil {
		return models.TaskStatusPending
	}
	switch due := *t.DueDate; {
	case due == today:
		return models.TaskStatusToday
	case due.Before(today):
		return models.TaskStatusOverdue
	default:
		return models.TaskStatusScheduled
	}
}
