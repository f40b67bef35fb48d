package tasks

import (
	"sort"

	"github.com/ent0n29/sashi/internal/model"
)

// SortForAgent orders tasks for an agent's work list: status rank (active
// work first, done last), then status label, then due date with undated
// tasks last, then creation time and id so the order is total.
func SortForAgent(list []model.Task) {
	sort.SliceStable(list, func(i, j int) bool {
		return lessForAgent(list[i], list[j])
	})
}

func lessForAgent(a, b model.Task) bool {
	if ra, rb := a.Status.Rank(), b.Status.Rank(); ra != rb {
		return ra < rb
	}
	if a.Status != b.Status {
		return a.Status < b.Status
	}
	switch {
	case a.DueDate != nil && b.DueDate == nil:
		return true
	case a.DueDate == nil && b.DueDate != nil:
		return false
	case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
		return a.DueDate.Before(*b.DueDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
