package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ent0n29/sashi/internal/model"
)

// MemoryStore is an in-process store for local/dev use and tests.
type MemoryStore struct {
	mu sync.RWMutex

	seq           int64
	order         map[string]int64
	organizations map[string]model.Organization
	projects      map[string]model.Project
	tasks         map[string]model.Task
	queue         map[string]model.QueueItem
	notifications map[string]model.Notification
	inbox         map[string]model.InboxItem
	comments      map[string]model.TaskComment
	activity      map[string]model.Activity
	notes         map[string]model.Note
	reports       map[string]model.Report
	runs          map[string]model.GauntletRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		order:         make(map[string]int64),
		organizations: make(map[string]model.Organization),
		projects:      make(map[string]model.Project),
		tasks:         make(map[string]model.Task),
		queue:         make(map[string]model.QueueItem),
		notifications: make(map[string]model.Notification),
		inbox:         make(map[string]model.InboxItem),
		comments:      make(map[string]model.TaskComment),
		activity:      make(map[string]model.Activity),
		notes:         make(map[string]model.Note),
		reports:       make(map[string]model.Report),
		runs:          make(map[string]model.GauntletRun),
	}
}

func (s *MemoryStore) Mode() string { return "in-memory" }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// touchLocked records insertion order so equal timestamps still list
// deterministically, newest insert first.
func (s *MemoryStore) touchLocked(id string) {
	if _, ok := s.order[id]; ok {
		return
	}
	s.seq++
	s.order[id] = s.seq
}

func (s *MemoryStore) newerFirst(a, b string) bool {
	return s.order[a] > s.order[b]
}

func (s *MemoryStore) CreateOrganization(_ context.Context, org model.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[org.ID] = org
	s.touchLocked(org.ID)
	return nil
}

func (s *MemoryStore) GetOrganization(_ context.Context, id string) (model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.organizations[id]
	if !ok {
		return model.Organization{}, model.NotFound("organization", id)
	}
	return org, nil
}

func (s *MemoryStore) ListOrganizations(context.Context) ([]model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Organization, 0, len(s.organizations))
	for _, org := range s.organizations {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *MemoryStore) UpdateOrganization(_ context.Context, org model.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organizations[org.ID]; !ok {
		return model.NotFound("organization", org.ID)
	}
	s.organizations[org.ID] = org
	return nil
}

func (s *MemoryStore) DeleteOrganization(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.organizations[id]
	delete(s.organizations, id)
	return ok, nil
}

func (s *MemoryStore) CreateProject(_ context.Context, p model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	s.touchLocked(p.ID)
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, model.NotFound("project", id)
	}
	return p, nil
}

func (s *MemoryStore) ListProjects(_ context.Context, organizationID *string) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if organizationID != nil && model.StringValue(p.OrganizationID) != *organizationID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, p model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return model.NotFound("project", p.ID)
	}
	s.projects[p.ID] = p
	return nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.projects[id]
	delete(s.projects, id)
	return ok, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	s.touchLocked(t.ID)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, model.NotFound("task", id)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) ListTasks(_ context.Context, filter TaskFilter) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		if !matchTask(t, filter) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return out, nil
}

func matchTask(t model.Task, f TaskFilter) bool {
	if f.AssignedAgentID != nil && model.StringValue(t.AssignedAgentID) != *f.AssignedAgentID {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.ExcludeStatus != nil && t.Status == *f.ExcludeStatus {
		return false
	}
	if f.ProjectID != nil && model.StringValue(t.ProjectID) != *f.ProjectID {
		return false
	}
	if f.OrganizationID != nil && model.StringValue(t.OrganizationID) != *f.OrganizationID {
		return false
	}
	if f.ParentID != nil && model.StringValue(t.ParentID) != *f.ParentID {
		return false
	}
	return true
}

func (s *MemoryStore) UpdateTask(_ context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return model.NotFound("task", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	delete(s.tasks, id)
	for cid, c := range s.comments {
		if c.TaskID == id {
			delete(s.comments, cid)
		}
	}
	return ok, nil
}

func (s *MemoryStore) CreateTaskComment(_ context.Context, c model.TaskComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c
	s.touchLocked(c.ID)
	return nil
}

func (s *MemoryStore) ListTaskComments(_ context.Context, taskID string) ([]model.TaskComment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TaskComment, 0)
	for _, c := range s.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.newerFirst(out[j].ID, out[i].ID)
	})
	return out, nil
}

func (s *MemoryStore) CreateQueueItem(_ context.Context, item model.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[item.ID] = item.Clone()
	s.touchLocked(item.ID)
	return nil
}

func (s *MemoryStore) GetQueueItem(_ context.Context, id string) (model.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.queue[id]
	if !ok {
		return model.QueueItem{}, model.NotFound("queue item", id)
	}
	return item.Clone(), nil
}

func (s *MemoryStore) ListQueueItems(context.Context) ([]model.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.QueueItem, 0, len(s.queue))
	for _, item := range s.queue {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *MemoryStore) UpdateQueueItemIf(_ context.Context, item model.QueueItem, expected model.QueueStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.queue[item.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	s.queue[item.ID] = item.Clone()
	return true, nil
}

func (s *MemoryStore) DeleteQueueItem(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.queue[id]
	delete(s.queue, id)
	return ok, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n.Clone()
	s.touchLocked(n.ID)
	return nil
}

func (s *MemoryStore) GetNotification(_ context.Context, id string) (model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return model.Notification{}, model.NotFound("notification", id)
	}
	return n.Clone(), nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, filter NotificationFilter) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, 0)
	for _, n := range s.notifications {
		if n.AgentID != filter.AgentID {
			continue
		}
		if filter.Undelivered && n.Delivered {
			continue
		}
		if filter.Unread && n.Read {
			continue
		}
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return capLimit(out, filter.Limit), nil
}

func (s *MemoryStore) MarkNotification(_ context.Context, id string, delivered, read bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return false, nil
	}
	n.Delivered = n.Delivered || delivered
	n.Read = n.Read || read
	s.notifications[id] = n
	return true, nil
}

func (s *MemoryStore) CreateInboxItem(_ context.Context, item model.InboxItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox[item.ID] = item
	s.touchLocked(item.ID)
	return nil
}

func (s *MemoryStore) GetInboxItem(_ context.Context, id string) (model.InboxItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.inbox[id]
	if !ok {
		return model.InboxItem{}, model.NotFound("inbox item", id)
	}
	return item, nil
}

func (s *MemoryStore) ListInboxItems(_ context.Context, filter InboxFilter) ([]model.InboxItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	typ := strings.TrimSpace(filter.Type)
	out := make([]model.InboxItem, 0)
	for _, item := range s.inbox {
		if typ != "" && item.Type != typ {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return capLimit(out, filter.Limit), nil
}

func (s *MemoryStore) DeleteInboxItem(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inbox[id]
	delete(s.inbox, id)
	return ok, nil
}

func (s *MemoryStore) CreateActivity(_ context.Context, a model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[a.ID] = a
	s.touchLocked(a.ID)
	return nil
}

func (s *MemoryStore) ListActivity(_ context.Context, filter ActivityFilter) ([]model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agentID := strings.TrimSpace(filter.AgentID)
	typ := strings.TrimSpace(filter.Type)
	out := make([]model.Activity, 0)
	for _, a := range s.activity {
		if agentID != "" && model.StringValue(a.AgentID) != agentID {
			continue
		}
		if typ != "" && a.Type != typ {
			continue
		}
		if filter.Since != nil && a.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return capLimit(out, filter.Limit), nil
}

func (s *MemoryStore) CreateNote(_ context.Context, n model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID] = n
	s.touchLocked(n.ID)
	return nil
}

func (s *MemoryStore) GetNote(_ context.Context, id string) (model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return model.Note{}, model.NotFound("note", id)
	}
	return n, nil
}

func (s *MemoryStore) ListNotes(context.Context) ([]model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *MemoryStore) UpdateNote(_ context.Context, n model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[n.ID]; !ok {
		return model.NotFound("note", n.ID)
	}
	s.notes[n.ID] = n
	return nil
}

func (s *MemoryStore) DeleteNote(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notes[id]
	delete(s.notes, id)
	return ok, nil
}

func (s *MemoryStore) CreateReport(_ context.Context, r model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
	s.touchLocked(r.ID)
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return model.Report{}, model.NotFound("report", id)
	}
	return r, nil
}

func (s *MemoryStore) ListReports(_ context.Context, filter ReportFilter) ([]model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Report, 0)
	for _, r := range s.reports {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return capLimit(out, filter.Limit), nil
}

func (s *MemoryStore) DeleteReport(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reports[id]
	delete(s.reports, id)
	return ok, nil
}

func (s *MemoryStore) CreateGauntletRun(_ context.Context, run model.GauntletRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.touchLocked(run.ID)
	return nil
}

func (s *MemoryStore) GetGauntletRun(_ context.Context, id string) (model.GauntletRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return model.GauntletRun{}, model.NotFound("gauntlet run", id)
	}
	return run, nil
}

func (s *MemoryStore) ListGauntletRuns(_ context.Context, limit int) ([]model.GauntletRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.GauntletRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.newerFirst(out[i].ID, out[j].ID)
	})
	return capLimit(out, limit), nil
}

func (s *MemoryStore) DeleteGauntletRun(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[id]
	delete(s.runs, id)
	return ok, nil
}

func capLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
