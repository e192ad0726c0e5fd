package board

import (
	"slices"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

// entry is the state of one child item before a change: its value and
// position, or absent when the change adds it
type entry[T any] struct {
	item  T
	index int
	found bool
}

func entryOf[T any](list []T, id uuid.UUID, idOf func(T) uuid.UUID) entry[T] {
	i := slices.IndexFunc(list, func(x T) bool { return idOf(x) == id })
	if i < 0 {
		return entry[T]{index: -1}
	}
	return entry[T]{item: list[i], index: i, found: true}
}

// putBack returns list with the item id as it was in e. Siblings are left
// alone so changes made to them in the meantime survive.
func putBack[T any](list []T, id uuid.UUID, e entry[T], idOf func(T) uuid.UUID) []T {
	i := slices.IndexFunc(list, func(x T) bool { return idOf(x) == id })
	switch {
	case !e.found && i >= 0:
		return slices.Delete(list, i, i+1)
	case !e.found:
		return list
	case i >= 0:
		list[i] = e.item
		return list
	default:
		return slices.Insert(list, max(0, min(e.index, len(list))), e.item)
	}
}

func idOfTask(t models.Task) uuid.UUID             { return t.ID }
func idOfComment(c models.Comment) uuid.UUID       { return c.ID }
func idOfAttachment(a models.Attachment) uuid.UUID { return a.ID }
