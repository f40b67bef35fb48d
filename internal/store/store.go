package store

import (
	"context"
	"time"

	"github.com/ent0n29/sashi/internal/model"
)

// TaskFilter narrows task listings. Nil fields do not filter.
type TaskFilter struct {
	AssignedAgentID *string
	Status          *model.TaskStatus
	ExcludeStatus   *model.TaskStatus
	ProjectID       *string
	OrganizationID  *string
	ParentID        *string
}

type NotificationFilter struct {
	AgentID     string
	Undelivered bool
	Unread      bool
	Limit       int
}

type InboxFilter struct {
	Type  string // empty means all types
	Limit int
}

// ActivityFilter narrows the activity feed. Zero values do not filter.
type ActivityFilter struct {
	AgentID string
	Type    string
	Since   *time.Time
	Limit   int
}

type ReportFilter struct {
	Type  string
	Limit int
}

// Store is the durable record store. Get methods return an error wrapping
// model.ErrNotFound for missing ids. Delete methods report whether a row was
// removed. No multi-statement atomicity is assumed by callers.
type Store interface {
	CreateOrganization(ctx context.Context, org model.Organization) error
	GetOrganization(ctx context.Context, id string) (model.Organization, error)
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	UpdateOrganization(ctx context.Context, org model.Organization) error
	DeleteOrganization(ctx context.Context, id string) (bool, error)

	CreateProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, id string) (model.Project, error)
	ListProjects(ctx context.Context, organizationID *string) ([]model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) error
	DeleteProject(ctx context.Context, id string) (bool, error)

	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (model.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, t model.Task) error
	// DeleteTask also removes the task's comments. Subtasks are the
	// caller's concern.
	DeleteTask(ctx context.Context, id string) (bool, error)

	CreateTaskComment(ctx context.Context, c model.TaskComment) error
	// ListTaskComments returns a task's comments oldest first.
	ListTaskComments(ctx context.Context, taskID string) ([]model.TaskComment, error)

	CreateQueueItem(ctx context.Context, item model.QueueItem) error
	GetQueueItem(ctx context.Context, id string) (model.QueueItem, error)
	ListQueueItems(ctx context.Context) ([]model.QueueItem, error)
	// UpdateQueueItemIf writes item only while the stored status still equals
	// expected. It returns false when the precondition did not hold or the id
	// does not exist.
	UpdateQueueItemIf(ctx context.Context, item model.QueueItem, expected model.QueueStatus) (bool, error)
	DeleteQueueItem(ctx context.Context, id string) (bool, error)

	CreateNotification(ctx context.Context, n model.Notification) error
	GetNotification(ctx context.Context, id string) (model.Notification, error)
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	// MarkNotification ORs the given flags into the stored ones, so a flag
	// that is already true never reverts. Returns false for unknown ids.
	MarkNotification(ctx context.Context, id string, delivered, read bool) (bool, error)

	CreateInboxItem(ctx context.Context, item model.InboxItem) error
	GetInboxItem(ctx context.Context, id string) (model.InboxItem, error)
	ListInboxItems(ctx context.Context, filter InboxFilter) ([]model.InboxItem, error)
	DeleteInboxItem(ctx context.Context, id string) (bool, error)

	CreateActivity(ctx context.Context, a model.Activity) error
	// ListActivity returns feed entries newest first.
	ListActivity(ctx context.Context, filter ActivityFilter) ([]model.Activity, error)

	CreateNote(ctx context.Context, n model.Note) error
	GetNote(ctx context.Context, id string) (model.Note, error)
	ListNotes(ctx context.Context) ([]model.Note, error)
	UpdateNote(ctx context.Context, n model.Note) error
	DeleteNote(ctx context.Context, id string) (bool, error)

	CreateReport(ctx context.Context, r model.Report) error
	GetReport(ctx context.Context, id string) (model.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)
	DeleteReport(ctx context.Context, id string) (bool, error)

	CreateGauntletRun(ctx context.Context, run model.GauntletRun) error
	GetGauntletRun(ctx context.Context, id string) (model.GauntletRun, error)
	ListGauntletRuns(ctx context.Context, limit int) ([]model.GauntletRun, error)
	DeleteGauntletRun(ctx context.Context, id string) (bool, error)

	Ping(ctx context.Context) error
	Mode() string
	Close() error
}
