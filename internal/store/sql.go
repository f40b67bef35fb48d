package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ent0n29/sashi/internal/model"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// SQLStore implements Store over sqlx. Queries are written with ?
// placeholders and rebound for the active driver.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
	timeout time.Duration
}

// NewSQLiteStore opens (or creates) a SQLite database at path. ":memory:" is
// accepted and pinned to a single connection so every caller sees the same
// database.
func NewSQLiteStore(ctx context.Context, path string, timeout time.Duration) (*SQLStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}
	db, err := sqlx.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return newSQLStore(ctx, db, DialectSQLite, timeout)
}

// sqliteDSN carries the pragmas in the DSN so the driver applies them to
// every pooled connection, not just the first one.
func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewPostgresStore connects through the pgx stdlib driver.
func NewPostgresStore(ctx context.Context, databaseURL string, timeout time.Duration) (*SQLStore, error) {
	db, err := sqlx.Open("pgx", strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newSQLStore(ctx, db, DialectPostgres, timeout)
}

func newSQLStore(ctx context.Context, db *sqlx.DB, dialect string, timeout time.Duration) (*SQLStore, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, dialect: dialect, timeout: timeout}, nil
}

func (s *SQLStore) Mode() string { return s.dialect }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *SQLStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLStore) get(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
}

func (s *SQLStore) selectRows(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
}

func (s *SQLStore) deleteByID(ctx context.Context, table, id string) (bool, error) {
	n, err := s.exec(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", table, err)
	}
	return n > 0, nil
}

// --- organizations ---

type organizationRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Icon        sql.NullString `db:"icon"`
	CreatedAt   int64          `db:"created_at"`
}

func (r organizationRow) toModel() model.Organization {
	return model.Organization{
		ID:          r.ID,
		Name:        r.Name,
		Description: stringPtr(r.Description),
		Icon:        stringPtr(r.Icon),
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

const organizationColumns = `id, name, description, icon, created_at`

func (s *SQLStore) CreateOrganization(ctx context.Context, org model.Organization) error {
	_, err := s.exec(ctx,
		`INSERT INTO organizations (`+organizationColumns+`) VALUES (?, ?, ?, ?, ?)`,
		org.ID, org.Name, nullString(org.Description), nullString(org.Icon), toMillis(org.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *SQLStore) GetOrganization(ctx context.Context, id string) (model.Organization, error) {
	var row organizationRow
	if err := s.get(ctx, &row, `SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Organization{}, model.NotFound("organization", id)
		}
		return model.Organization{}, fmt.Errorf("get organization: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	var rows []organizationRow
	if err := s.selectRows(ctx, &rows, `SELECT `+organizationColumns+` FROM organizations ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	out := make([]model.Organization, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) UpdateOrganization(ctx context.Context, org model.Organization) error {
	n, err := s.exec(ctx,
		`UPDATE organizations SET name = ?, description = ?, icon = ? WHERE id = ?`,
		org.Name, nullString(org.Description), nullString(org.Icon), org.ID,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if n == 0 {
		return model.NotFound("organization", org.ID)
	}
	return nil
}

func (s *SQLStore) DeleteOrganization(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "organizations", id)
}

// --- projects ---

type projectRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	OrganizationID sql.NullString `db:"organization_id"`
	Color          sql.NullString `db:"color"`
	Icon           sql.NullString `db:"icon"`
	Type           sql.NullString `db:"type"`
	CreatedAt      int64          `db:"created_at"`
}

func (r projectRow) toModel() model.Project {
	return model.Project{
		ID:             r.ID,
		Name:           r.Name,
		OrganizationID: stringPtr(r.OrganizationID),
		Color:          stringPtr(r.Color),
		Icon:           stringPtr(r.Icon),
		Type:           stringPtr(r.Type),
		CreatedAt:      fromMillis(r.CreatedAt),
	}
}

const projectColumns = `id, name, organization_id, color, icon, type, created_at`

func (s *SQLStore) CreateProject(ctx context.Context, p model.Project) error {
	_, err := s.exec(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.OrganizationID), nullString(p.Color), nullString(p.Icon), nullString(p.Type), toMillis(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *SQLStore) GetProject(ctx context.Context, id string) (model.Project, error) {
	var row projectRow
	if err := s.get(ctx, &row, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Project{}, model.NotFound("project", id)
		}
		return model.Project{}, fmt.Errorf("get project: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListProjects(ctx context.Context, organizationID *string) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if organizationID != nil {
		query += ` WHERE organization_id = ?`
		args = append(args, *organizationID)
	}
	query += ` ORDER BY name ASC, id ASC`

	var rows []projectRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]model.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) UpdateProject(ctx context.Context, p model.Project) error {
	n, err := s.exec(ctx,
		`UPDATE projects SET name = ?, organization_id = ?, color = ?, icon = ?, type = ? WHERE id = ?`,
		p.Name, nullString(p.OrganizationID), nullString(p.Color), nullString(p.Icon), nullString(p.Type), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n == 0 {
		return model.NotFound("project", p.ID)
	}
	return nil
}

func (s *SQLStore) DeleteProject(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "projects", id)
}

// --- tasks ---

type taskRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Description     sql.NullString `db:"description"`
	ProjectID       sql.NullString `db:"project_id"`
	OrganizationID  sql.NullString `db:"organization_id"`
	AssignedAgentID sql.NullString `db:"assigned_agent_id"`
	ParentID        sql.NullString `db:"parent_id"`
	Status          string         `db:"status"`
	Priority        sql.NullString `db:"priority"`
	DueDate         sql.NullInt64  `db:"due_date"`
	CreatedAt       int64          `db:"created_at"`
	UpdatedAt       int64          `db:"updated_at"`
}

func (r taskRow) toModel() model.Task {
	return model.Task{
		ID:              r.ID,
		Name:            r.Name,
		Description:     stringPtr(r.Description),
		ProjectID:       stringPtr(r.ProjectID),
		OrganizationID:  stringPtr(r.OrganizationID),
		AssignedAgentID: stringPtr(r.AssignedAgentID),
		ParentID:        stringPtr(r.ParentID),
		Status:          model.TaskStatus(r.Status),
		Priority:        stringPtr(r.Priority),
		DueDate:         timePtr(r.DueDate),
		CreatedAt:       fromMillis(r.CreatedAt),
		UpdatedAt:       fromMillis(r.UpdatedAt),
	}
}

const taskColumns = `id, name, description, project_id, organization_id, assigned_agent_id, parent_id, status, priority, due_date, created_at, updated_at`

func (s *SQLStore) CreateTask(ctx context.Context, t model.Task) error {
	_, err := s.exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, nullString(t.Description), nullString(t.ProjectID), nullString(t.OrganizationID),
		nullString(t.AssignedAgentID), nullString(t.ParentID), string(t.Status), nullString(t.Priority), nullMillis(t.DueDate),
		toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *SQLStore) GetTask(ctx context.Context, id string) (model.Task, error) {
	var row taskRow
	if err := s.get(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, model.NotFound("task", id)
		}
		return model.Task{}, fmt.Errorf("get task: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.AssignedAgentID != nil {
		conditions = append(conditions, "assigned_agent_id = ?")
		args = append(args, *filter.AssignedAgentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.ExcludeStatus != nil {
		conditions = append(conditions, "status <> ?")
		args = append(args, string(*filter.ExcludeStatus))
	}
	if filter.ProjectID != nil {
		conditions = append(conditions, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.OrganizationID != nil {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, *filter.OrganizationID)
	}
	if filter.ParentID != nil {
		conditions = append(conditions, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	var rows []taskRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) UpdateTask(ctx context.Context, t model.Task) error {
	n, err := s.exec(ctx,
		`UPDATE tasks SET name = ?, description = ?, project_id = ?, organization_id = ?, assigned_agent_id = ?,
			parent_id = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, nullString(t.Description), nullString(t.ProjectID), nullString(t.OrganizationID),
		nullString(t.AssignedAgentID), nullString(t.ParentID), string(t.Status), nullString(t.Priority), nullMillis(t.DueDate),
		toMillis(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return model.NotFound("task", t.ID)
	}
	return nil
}

func (s *SQLStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	if _, err := s.exec(ctx, `DELETE FROM task_comments WHERE task_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete task comments: %w", err)
	}
	return s.deleteByID(ctx, "tasks", id)
}

// --- task comments ---

type taskCommentRow struct {
	ID          string         `db:"id"`
	TaskID      string         `db:"task_id"`
	AgentID     string         `db:"agent_id"`
	Content     string         `db:"content"`
	Attachments sql.NullString `db:"attachments"`
	CreatedAt   int64          `db:"created_at"`
}

func (r taskCommentRow) toModel() model.TaskComment {
	return model.TaskComment{
		ID:          r.ID,
		TaskID:      r.TaskID,
		AgentID:     r.AgentID,
		Content:     r.Content,
		Attachments: rawJSON(r.Attachments),
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

const taskCommentColumns = `id, task_id, agent_id, content, attachments, created_at`

func (s *SQLStore) CreateTaskComment(ctx context.Context, c model.TaskComment) error {
	_, err := s.exec(ctx,
		`INSERT INTO task_comments (`+taskCommentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AgentID, c.Content, nullJSON(c.Attachments), toMillis(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task comment: %w", err)
	}
	return nil
}

func (s *SQLStore) ListTaskComments(ctx context.Context, taskID string) ([]model.TaskComment, error) {
	var rows []taskCommentRow
	if err := s.selectRows(ctx, &rows,
		`SELECT `+taskCommentColumns+` FROM task_comments WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID,
	); err != nil {
		return nil, fmt.Errorf("list task comments: %w", err)
	}
	out := make([]model.TaskComment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// --- queue items ---

type queueItemRow struct {
	ID          string         `db:"id"`
	Task        string         `db:"task"`
	Status      string         `db:"status"`
	SessionKey  sql.NullString `db:"session_key"`
	StartedAt   sql.NullInt64  `db:"started_at"`
	CompletedAt sql.NullInt64  `db:"completed_at"`
	CreatedAt   int64          `db:"created_at"`
}

func (r queueItemRow) toModel() model.QueueItem {
	return model.QueueItem{
		ID:          r.ID,
		Task:        r.Task,
		Status:      model.QueueStatus(r.Status),
		SessionKey:  stringPtr(r.SessionKey),
		StartedAt:   timePtr(r.StartedAt),
		CompletedAt: timePtr(r.CompletedAt),
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

const queueItemColumns = `id, task, status, session_key, started_at, completed_at, created_at`

func (s *SQLStore) CreateQueueItem(ctx context.Context, item model.QueueItem) error {
	_, err := s.exec(ctx,
		`INSERT INTO queue_items (`+queueItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Task, string(item.Status), nullString(item.SessionKey),
		nullMillis(item.StartedAt), nullMillis(item.CompletedAt), toMillis(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (s *SQLStore) GetQueueItem(ctx context.Context, id string) (model.QueueItem, error) {
	var row queueItemRow
	if err := s.get(ctx, &row, `SELECT `+queueItemColumns+` FROM queue_items WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.QueueItem{}, model.NotFound("queue item", id)
		}
		return model.QueueItem{}, fmt.Errorf("get queue item: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListQueueItems(ctx context.Context) ([]model.QueueItem, error) {
	var rows []queueItemRow
	if err := s.selectRows(ctx, &rows, `SELECT `+queueItemColumns+` FROM queue_items ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	out := make([]model.QueueItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) UpdateQueueItemIf(ctx context.Context, item model.QueueItem, expected model.QueueStatus) (bool, error) {
	n, err := s.exec(ctx,
		`UPDATE queue_items SET task = ?, status = ?, session_key = ?, started_at = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		item.Task, string(item.Status), nullString(item.SessionKey), nullMillis(item.StartedAt),
		nullMillis(item.CompletedAt), item.ID, string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("update queue item: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) DeleteQueueItem(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "queue_items", id)
}

// --- notifications ---

type notificationRow struct {
	ID          string         `db:"id"`
	AgentID     string         `db:"agent_id"`
	FromAgentID sql.NullString `db:"from_agent_id"`
	TaskID      sql.NullString `db:"task_id"`
	Content     string         `db:"content"`
	Delivered   bool           `db:"delivered"`
	Read        bool           `db:"read"`
	CreatedAt   int64          `db:"created_at"`
}

func (r notificationRow) toModel() model.Notification {
	return model.Notification{
		ID:          r.ID,
		AgentID:     r.AgentID,
		FromAgentID: stringPtr(r.FromAgentID),
		TaskID:      stringPtr(r.TaskID),
		Content:     r.Content,
		Delivered:   r.Delivered,
		Read:        r.Read,
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

const notificationColumns = `id, agent_id, from_agent_id, task_id, content, delivered, read, created_at`

func (s *SQLStore) CreateNotification(ctx context.Context, n model.Notification) error {
	_, err := s.exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.AgentID, nullString(n.FromAgentID), nullString(n.TaskID), n.Content,
		n.Delivered, n.Read, toMillis(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *SQLStore) GetNotification(ctx context.Context, id string) (model.Notification, error) {
	var row notificationRow
	if err := s.get(ctx, &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, model.NotFound("notification", id)
		}
		return model.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE agent_id = ?`
	args := []any{filter.AgentID}
	if filter.Undelivered {
		query += ` AND delivered = ?`
		args = append(args, false)
	}
	if filter.Unread {
		query += ` AND read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []notificationRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) MarkNotification(ctx context.Context, id string, delivered, read bool) (bool, error) {
	n, err := s.exec(ctx,
		`UPDATE notifications SET delivered = (delivered OR ?), read = (read OR ?) WHERE id = ?`,
		delivered, read, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification: %w", err)
	}
	return n > 0, nil
}

// --- inbox ---

type inboxItemRow struct {
	ID        string         `db:"id"`
	Content   string         `db:"content"`
	Type      string         `db:"type"`
	URL       sql.NullString `db:"url"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt int64          `db:"created_at"`
}

func (r inboxItemRow) toModel() model.InboxItem {
	return model.InboxItem{
		ID:        r.ID,
		Content:   r.Content,
		Type:      r.Type,
		URL:       stringPtr(r.URL),
		Metadata:  rawJSON(r.Metadata),
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

const inboxItemColumns = `id, content, type, url, metadata, created_at`

func (s *SQLStore) CreateInboxItem(ctx context.Context, item model.InboxItem) error {
	_, err := s.exec(ctx,
		`INSERT INTO inbox_items (`+inboxItemColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.Content, item.Type, nullString(item.URL), nullJSON(item.Metadata), toMillis(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert inbox item: %w", err)
	}
	return nil
}

func (s *SQLStore) GetInboxItem(ctx context.Context, id string) (model.InboxItem, error) {
	var row inboxItemRow
	if err := s.get(ctx, &row, `SELECT `+inboxItemColumns+` FROM inbox_items WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.InboxItem{}, model.NotFound("inbox item", id)
		}
		return model.InboxItem{}, fmt.Errorf("get inbox item: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListInboxItems(ctx context.Context, filter InboxFilter) ([]model.InboxItem, error) {
	query := `SELECT ` + inboxItemColumns + ` FROM inbox_items`
	var args []any
	if typ := strings.TrimSpace(filter.Type); typ != "" {
		query += ` WHERE type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []inboxItemRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list inbox items: %w", err)
	}
	out := make([]model.InboxItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) DeleteInboxItem(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "inbox_items", id)
}

// --- activity feed ---

type activityRow struct {
	ID        string         `db:"id"`
	Type      string         `db:"type"`
	AgentID   sql.NullString `db:"agent_id"`
	TaskID    sql.NullString `db:"task_id"`
	Message   string         `db:"message"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt int64          `db:"created_at"`
}

func (r activityRow) toModel() model.Activity {
	return model.Activity{
		ID:        r.ID,
		Type:      r.Type,
		AgentID:   stringPtr(r.AgentID),
		TaskID:    stringPtr(r.TaskID),
		Message:   r.Message,
		Metadata:  rawJSON(r.Metadata),
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

const activityColumns = `id, type, agent_id, task_id, message, metadata, created_at`

func (s *SQLStore) CreateActivity(ctx context.Context, a model.Activity) error {
	_, err := s.exec(ctx,
		`INSERT INTO activity_feed (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, nullString(a.AgentID), nullString(a.TaskID), a.Message, nullJSON(a.Metadata), toMillis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *SQLStore) ListActivity(ctx context.Context, filter ActivityFilter) ([]model.Activity, error) {
	var (
		conditions []string
		args       []any
	)
	if v := strings.TrimSpace(filter.AgentID); v != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Type); v != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, v)
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, toMillis(*filter.Since))
	}

	query := `SELECT ` + activityColumns + ` FROM activity_feed`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []activityRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	out := make([]model.Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// --- notes ---

type noteRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Content   string `db:"content"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r noteRow) toModel() model.Note {
	return model.Note{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

const noteColumns = `id, title, content, created_at, updated_at`

func (s *SQLStore) CreateNote(ctx context.Context, n model.Note) error {
	_, err := s.exec(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, toMillis(n.CreatedAt), toMillis(n.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *SQLStore) GetNote(ctx context.Context, id string) (model.Note, error) {
	var row noteRow
	if err := s.get(ctx, &row, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Note{}, model.NotFound("note", id)
		}
		return model.Note{}, fmt.Errorf("get note: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListNotes(ctx context.Context) ([]model.Note, error) {
	var rows []noteRow
	if err := s.selectRows(ctx, &rows, `SELECT `+noteColumns+` FROM notes ORDER BY updated_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	out := make([]model.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) UpdateNote(ctx context.Context, n model.Note) error {
	affected, err := s.exec(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		n.Title, n.Content, toMillis(n.UpdatedAt), n.ID,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if affected == 0 {
		return model.NotFound("note", n.ID)
	}
	return nil
}

func (s *SQLStore) DeleteNote(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "notes", id)
}

// --- reports ---

type reportRow struct {
	ID        string         `db:"id"`
	Type      string         `db:"type"`
	Date      string         `db:"report_date"`
	Title     string         `db:"title"`
	Content   string         `db:"content"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt int64          `db:"created_at"`
}

func (r reportRow) toModel() model.Report {
	return model.Report{
		ID:        r.ID,
		Type:      r.Type,
		Date:      r.Date,
		Title:     r.Title,
		Content:   r.Content,
		Metadata:  rawJSON(r.Metadata),
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

const reportColumns = `id, type, report_date, title, content, metadata, created_at`

func (s *SQLStore) CreateReport(ctx context.Context, r model.Report) error {
	_, err := s.exec(ctx,
		`INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Type, r.Date, r.Title, r.Content, nullJSON(r.Metadata), toMillis(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *SQLStore) GetReport(ctx context.Context, id string) (model.Report, error) {
	var row reportRow
	if err := s.get(ctx, &row, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Report{}, model.NotFound("report", id)
		}
		return model.Report{}, fmt.Errorf("get report: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	var args []any
	if filter.Type != "" {
		query += ` WHERE type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY report_date DESC, created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []reportRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := make([]model.Report, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) DeleteReport(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "reports", id)
}

// --- idea gauntlet runs ---

type gauntletRunRow struct {
	ID         string         `db:"id"`
	Idea       string         `db:"idea"`
	Result     string         `db:"result"`
	Verdict    sql.NullString `db:"verdict"`
	Confidence sql.NullInt64  `db:"confidence"`
	CreatedAt  int64          `db:"created_at"`
}

func (r gauntletRunRow) toModel() model.GauntletRun {
	run := model.GauntletRun{
		ID:        r.ID,
		Idea:      r.Idea,
		Result:    rawJSON(sql.NullString{String: r.Result, Valid: true}),
		Verdict:   stringPtr(r.Verdict),
		CreatedAt: fromMillis(r.CreatedAt),
	}
	if r.Confidence.Valid {
		c := int(r.Confidence.Int64)
		run.Confidence = &c
	}
	return run
}

const gauntletRunColumns = `id, idea, result, verdict, confidence, created_at`

func (s *SQLStore) CreateGauntletRun(ctx context.Context, run model.GauntletRun) error {
	var confidence sql.NullInt64
	if run.Confidence != nil {
		confidence = sql.NullInt64{Int64: int64(*run.Confidence), Valid: true}
	}
	_, err := s.exec(ctx,
		`INSERT INTO idea_gauntlet_runs (`+gauntletRunColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Idea, string(run.Result), nullString(run.Verdict), confidence, toMillis(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert gauntlet run: %w", err)
	}
	return nil
}

func (s *SQLStore) GetGauntletRun(ctx context.Context, id string) (model.GauntletRun, error) {
	var row gauntletRunRow
	if err := s.get(ctx, &row, `SELECT `+gauntletRunColumns+` FROM idea_gauntlet_runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.GauntletRun{}, model.NotFound("gauntlet run", id)
		}
		return model.GauntletRun{}, fmt.Errorf("get gauntlet run: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) ListGauntletRuns(ctx context.Context, limit int) ([]model.GauntletRun, error) {
	query := `SELECT ` + gauntletRunColumns + ` FROM idea_gauntlet_runs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []gauntletRunRow
	if err := s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list gauntlet runs: %w", err)
	}
	out := make([]model.GauntletRun, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) DeleteGauntletRun(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "idea_gauntlet_runs", id)
}
