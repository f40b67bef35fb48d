package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sashi/internal/model"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func ptr[T any](v T) *T { return &v }

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
		{"sqlite", func(t *testing.T) Store {
			st, err := NewSQLiteStore(context.Background(), ":memory:", 5*time.Second)
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })
			return st
		}},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, st Store)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t))
		})
	}
}

func TestQueueItemConditionalUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		item := model.QueueItem{ID: "q1", Task: "sync calendar", Status: model.QueueStatusQueued, CreatedAt: at(0)}
		require.NoError(t, st.CreateQueueItem(ctx, item))

		next := item
		next.Status = model.QueueStatusInProgress
		next.StartedAt = ptr(at(1))
		next.SessionKey = ptr("sess")

		ok, err := st.UpdateQueueItemIf(ctx, next, model.QueueStatusQueued)
		require.NoError(t, err)
		assert.True(t, ok)

		stale := item
		stale.Status = model.QueueStatusDone
		ok, err = st.UpdateQueueItemIf(ctx, stale, model.QueueStatusQueued)
		require.NoError(t, err)
		assert.False(t, ok, "precondition no longer holds")

		got, err := st.GetQueueItem(ctx, "q1")
		require.NoError(t, err)
		assert.Equal(t, model.QueueStatusInProgress, got.Status)
		require.NotNil(t, got.StartedAt)
		assert.True(t, at(1).Equal(*got.StartedAt))
		assert.Nil(t, got.CompletedAt)
		assert.Equal(t, "sess", model.StringValue(got.SessionKey))

		ok, err = st.UpdateQueueItemIf(ctx, model.QueueItem{ID: "ghost", Status: model.QueueStatusDone}, model.QueueStatusQueued)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestQueueItemsNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateQueueItem(ctx, model.QueueItem{ID: "old", Task: "a", Status: model.QueueStatusQueued, CreatedAt: at(0)}))
		require.NoError(t, st.CreateQueueItem(ctx, model.QueueItem{ID: "new", Task: "b", Status: model.QueueStatusQueued, CreatedAt: at(5)}))

		items, err := st.ListQueueItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "new", items[0].ID)

		removed, err := st.DeleteQueueItem(ctx, "old")
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = st.DeleteQueueItem(ctx, "old")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = st.GetQueueItem(ctx, "old")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestNotificationFlagsOnlyMoveForward(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateNotification(ctx, model.Notification{ID: "n1", AgentID: "a", Content: "hi", CreatedAt: at(0)}))

		found, err := st.MarkNotification(ctx, "n1", true, false)
		require.NoError(t, err)
		assert.True(t, found)

		found, err = st.MarkNotification(ctx, "n1", false, false)
		require.NoError(t, err)
		assert.True(t, found)

		got, err := st.GetNotification(ctx, "n1")
		require.NoError(t, err)
		assert.True(t, got.Delivered, "false must not clear a set flag")
		assert.False(t, got.Read)

		found, err = st.MarkNotification(ctx, "missing", true, true)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestNotificationListFilters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateNotification(ctx, model.Notification{ID: "n1", AgentID: "a", Content: "1", Delivered: true, CreatedAt: at(0)}))
		require.NoError(t, st.CreateNotification(ctx, model.Notification{ID: "n2", AgentID: "a", Content: "2", CreatedAt: at(1)}))
		require.NoError(t, st.CreateNotification(ctx, model.Notification{ID: "n3", AgentID: "b", Content: "3", CreatedAt: at(2)}))

		all, err := st.ListNotifications(ctx, NotificationFilter{AgentID: "a"})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "n2", all[0].ID)

		undelivered, err := st.ListNotifications(ctx, NotificationFilter{AgentID: "a", Undelivered: true})
		require.NoError(t, err)
		require.Len(t, undelivered, 1)
		assert.Equal(t, "n2", undelivered[0].ID)

		limited, err := st.ListNotifications(ctx, NotificationFilter{AgentID: "a", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestTaskFiltersAndRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		t1 := model.Task{
			ID: "t1", Name: "dated", AssignedAgentID: ptr("agent-1"), ProjectID: ptr("p1"),
			Status: model.TaskStatusTodo, Priority: ptr("high"), DueDate: &due, CreatedAt: at(0), UpdatedAt: at(0),
		}
		t2 := model.Task{ID: "t2", Name: "done", AssignedAgentID: ptr("agent-1"), Status: model.TaskStatusDone, CreatedAt: at(1), UpdatedAt: at(1)}
		t3 := model.Task{ID: "t3", Name: "other", AssignedAgentID: ptr("agent-2"), Status: model.TaskStatusTodo, CreatedAt: at(2), UpdatedAt: at(2)}
		for _, task := range []model.Task{t1, t2, t3} {
			require.NoError(t, st.CreateTask(ctx, task))
		}

		done := model.TaskStatusDone
		open, err := st.ListTasks(ctx, TaskFilter{AssignedAgentID: ptr("agent-1"), ExcludeStatus: &done})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "t1", open[0].ID)
		require.NotNil(t, open[0].DueDate)
		assert.True(t, due.Equal(*open[0].DueDate))
		assert.Equal(t, "high", model.StringValue(open[0].Priority))

		byProject, err := st.ListTasks(ctx, TaskFilter{ProjectID: ptr("p1")})
		require.NoError(t, err)
		assert.Len(t, byProject, 1)

		t1.DueDate = nil
		t1.Status = model.TaskStatusInProgress
		t1.UpdatedAt = at(10)
		require.NoError(t, st.UpdateTask(ctx, t1))
		got, err := st.GetTask(ctx, "t1")
		require.NoError(t, err)
		assert.Nil(t, got.DueDate)
		assert.Equal(t, model.TaskStatusInProgress, got.Status)

		err = st.UpdateTask(ctx, model.Task{ID: "ghost", Name: "x", Status: model.TaskStatusTodo})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestInboxMetadataAndTypeFilter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateInboxItem(ctx, model.InboxItem{ID: "i1", Content: "Buy milk", Type: "note", Metadata: json.RawMessage(`{"a":1}`), CreatedAt: at(0)}))
		require.NoError(t, st.CreateInboxItem(ctx, model.InboxItem{ID: "i2", Content: "go.dev", Type: "link", URL: ptr("https://go.dev"), CreatedAt: at(1)}))

		notes, err := st.ListInboxItems(ctx, InboxFilter{Type: "note", Limit: 10})
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.JSONEq(t, `{"a":1}`, string(notes[0].Metadata))

		link, err := st.GetInboxItem(ctx, "i2")
		require.NoError(t, err)
		assert.Equal(t, "https://go.dev", model.StringValue(link.URL))
		assert.Nil(t, link.Metadata)
	})
}

func TestCatalogOrdering(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateOrganization(ctx, model.Organization{ID: "o1", Name: "Acme", CreatedAt: at(0)}))
		require.NoError(t, st.CreateProject(ctx, model.Project{ID: "p1", Name: "zeta", OrganizationID: ptr("o1"), CreatedAt: at(0)}))
		require.NoError(t, st.CreateProject(ctx, model.Project{ID: "p2", Name: "alpha", CreatedAt: at(1)}))

		all, err := st.ListProjects(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "alpha", all[0].Name)

		scoped, err := st.ListProjects(ctx, ptr("o1"))
		require.NoError(t, err)
		require.Len(t, scoped, 1)
		assert.Equal(t, "p1", scoped[0].ID)

		require.NoError(t, st.CreateReport(ctx, model.Report{ID: "r1", Type: "daily", Date: "2025-01-01", Title: "a", Content: "c", CreatedAt: at(5)}))
		require.NoError(t, st.CreateReport(ctx, model.Report{ID: "r2", Type: "daily", Date: "2025-01-02", Title: "b", Content: "c", CreatedAt: at(0)}))
		reports, err := st.ListReports(ctx, ReportFilter{Type: "daily", Limit: 30})
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, "r2", reports[0].ID)

		require.NoError(t, st.CreateNote(ctx, model.Note{ID: "n1", Title: "a", CreatedAt: at(0), UpdatedAt: at(9)}))
		require.NoError(t, st.CreateNote(ctx, model.Note{ID: "n2", Title: "b", CreatedAt: at(1), UpdatedAt: at(1)}))
		notes, err := st.ListNotes(ctx)
		require.NoError(t, err)
		assert.Equal(t, "n1", notes[0].ID)

		conf := 80
		require.NoError(t, st.CreateGauntletRun(ctx, model.GauntletRun{ID: "g1", Idea: "x", Result: json.RawMessage(`{"ok":true}`), Confidence: &conf, CreatedAt: at(0)}))
		run, err := st.GetGauntletRun(ctx, "g1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(run.Result))
		assert.Equal(t, 80, *run.Confidence)
		assert.Nil(t, run.Verdict)
	})
}

func TestNewStoreSelectsBackend(t *testing.T) {
	ctx := context.Background()

	st, err := NewStore(ctx, Options{DatabaseURL: "memory://"})
	require.NoError(t, err)
	assert.Equal(t, "in-memory", st.Mode())

	st, err = NewStore(ctx, Options{Path: ":memory:"})
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, DialectSQLite, st.Mode())
	require.NoError(t, st.Ping(ctx))
}

func TestSameMillisecondListsNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		var inboxIDs, queueIDs, activityIDs []string
		for i := 0; i < 12; i++ {
			id := model.NewID()
			inboxIDs = append(inboxIDs, id)
			require.NoError(t, st.CreateInboxItem(ctx, model.InboxItem{ID: id, Content: fmt.Sprintf("note %d", i), Type: "note", CreatedAt: at(0)}))

			id = model.NewID()
			queueIDs = append(queueIDs, id)
			require.NoError(t, st.CreateQueueItem(ctx, model.QueueItem{ID: id, Task: "t", Status: model.QueueStatusQueued, CreatedAt: at(0)}))

			id = model.NewID()
			activityIDs = append(activityIDs, id)
			require.NoError(t, st.CreateActivity(ctx, model.Activity{ID: id, Type: "task_created", Message: "m", CreatedAt: at(0)}))
		}

		items, err := st.ListInboxItems(ctx, InboxFilter{})
		require.NoError(t, err)
		gotInbox := make([]string, 0, len(items))
		for _, it := range items {
			gotInbox = append(gotInbox, it.ID)
		}
		assert.Equal(t, reversed(inboxIDs), gotInbox)

		queue, err := st.ListQueueItems(ctx)
		require.NoError(t, err)
		gotQueue := make([]string, 0, len(queue))
		for _, it := range queue {
			gotQueue = append(gotQueue, it.ID)
		}
		assert.Equal(t, reversed(queueIDs), gotQueue)

		feed, err := st.ListActivity(ctx, ActivityFilter{})
		require.NoError(t, err)
		gotFeed := make([]string, 0, len(feed))
		for _, a := range feed {
			gotFeed = append(gotFeed, a.ID)
		}
		assert.Equal(t, reversed(activityIDs), gotFeed)
	})
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func TestSQLiteFileConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "sashi.db"), 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	const writers, perWriter = 32, 20
	var (
		wg       sync.WaitGroup
		failures atomic.Int64
		errOnce  sync.Once
		firstErr error
	)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				err := st.CreateInboxItem(ctx, model.InboxItem{
					ID:        model.NewID(),
					Content:   fmt.Sprintf("writer %d item %d", w, i),
					Type:      "note",
					CreatedAt: model.Now(),
				})
				if err != nil {
					failures.Add(1)
					errOnce.Do(func() { firstErr = err })
				}
			}
		}(w)
	}
	wg.Wait()

	require.Zero(t, failures.Load(), "first error: %v", firstErr)
	items, err := st.ListInboxItems(ctx, InboxFilter{})
	require.NoError(t, err)
	assert.Len(t, items, writers*perWriter)
}

func TestSQLitePragmasApplyToEveryConnection(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "sashi.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// Hold several connections at once so the pool has to open new ones.
	for i := 0; i < 4; i++ {
		conn, err := st.db.Connx(ctx)
		require.NoError(t, err)
		defer conn.Close()

		var timeout int
		require.NoError(t, conn.GetContext(ctx, &timeout, "PRAGMA busy_timeout"))
		assert.Equal(t, 5000, timeout, "connection %d", i)

		var mode string
		require.NoError(t, conn.GetContext(ctx, &mode, "PRAGMA journal_mode"))
		assert.Equal(t, "wal", mode, "connection %d", i)
	}
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file:/tmp/a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", sqliteDSN("/tmp/a.db"))
	assert.Equal(t, "file:a.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", sqliteDSN("file:a.db?cache=shared"))
}

func TestTaskCommentsAndSubtasks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateTask(ctx, model.Task{ID: "parent", Name: "p", Status: model.TaskStatusTodo, CreatedAt: at(0), UpdatedAt: at(0)}))
		require.NoError(t, st.CreateTask(ctx, model.Task{ID: "child", Name: "c", ParentID: ptr("parent"), Status: model.TaskStatusNotStarted, CreatedAt: at(1), UpdatedAt: at(1)}))

		children, err := st.ListTasks(ctx, TaskFilter{ParentID: ptr("parent")})
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, "parent", model.StringValue(children[0].ParentID))

		require.NoError(t, st.CreateTaskComment(ctx, model.TaskComment{ID: "c2", TaskID: "parent", AgentID: "a", Content: "second", CreatedAt: at(5)}))
		require.NoError(t, st.CreateTaskComment(ctx, model.TaskComment{ID: "c1", TaskID: "parent", AgentID: "a", Content: "first", Attachments: json.RawMessage(`["x.png"]`), CreatedAt: at(2)}))
		require.NoError(t, st.CreateTaskComment(ctx, model.TaskComment{ID: "c3", TaskID: "child", AgentID: "a", Content: "elsewhere", CreatedAt: at(3)}))

		comments, err := st.ListTaskComments(ctx, "parent")
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "c1", comments[0].ID)
		assert.JSONEq(t, `["x.png"]`, string(comments[0].Attachments))

		removed, err := st.DeleteTask(ctx, "parent")
		require.NoError(t, err)
		assert.True(t, removed)
		comments, err = st.ListTaskComments(ctx, "parent")
		require.NoError(t, err)
		assert.Empty(t, comments)

		comments, err = st.ListTaskComments(ctx, "child")
		require.NoError(t, err)
		assert.Len(t, comments, 1)
	})
}

func TestActivityFilters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateActivity(ctx, model.Activity{ID: "a1", Type: "task_created", AgentID: ptr("jarvis"), TaskID: ptr("t1"), Message: "one", CreatedAt: at(0)}))
		require.NoError(t, st.CreateActivity(ctx, model.Activity{ID: "a2", Type: "comment_added", AgentID: ptr("jarvis"), Message: "two", Metadata: json.RawMessage(`{"commentId":"c1"}`), CreatedAt: at(10)}))
		require.NoError(t, st.CreateActivity(ctx, model.Activity{ID: "a3", Type: "task_created", Message: "three", CreatedAt: at(20)}))

		all, err := st.ListActivity(ctx, ActivityFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a3", all[0].ID)
		assert.Nil(t, all[0].AgentID)

		byAgent, err := st.ListActivity(ctx, ActivityFilter{AgentID: "jarvis"})
		require.NoError(t, err)
		assert.Len(t, byAgent, 2)

		byType, err := st.ListActivity(ctx, ActivityFilter{Type: "comment_added"})
		require.NoError(t, err)
		require.Len(t, byType, 1)
		assert.JSONEq(t, `{"commentId":"c1"}`, string(byType[0].Metadata))

		since := at(10)
		recent, err := st.ListActivity(ctx, ActivityFilter{Since: &since, Limit: 1})
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "a3", recent[0].ID)
	})
}
