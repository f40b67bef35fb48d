package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/model"
	"github.com/ent0n29/sashi/internal/notify"
)

func TestMentions(t *testing.T) {
	assert.Equal(t, []string{"jarvis", "agent-2"}, Mentions("ping @Jarvis and @agent-2, also @JARVIS"))
	assert.Empty(t, Mentions("no handles here"))
}

func TestAddCommentNotifiesMentionedAgents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, unsub := f.hub.Subscribe()
	defer unsub()
	task := f.create(t, CreateInput{Name: "Draft launch post"})

	res, err := f.svc.AddComment(ctx, task.ID, CommentInput{
		AgentID:     "friday",
		Content:     "@jarvis please review, cc @friday",
		Attachments: json.RawMessage(`[{"name":"draft.md"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"jarvis"}, res.Mentioned)
	assert.Equal(t, task.ID, res.TaskID)

	notes, err := f.notify.List(ctx, notify.ListInput{AgentID: "jarvis"})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "friday", model.StringValue(notes[0].FromAgentID))
	assert.Equal(t, task.ID, model.StringValue(notes[0].TaskID))
	assert.Contains(t, notes[0].Content, "Draft launch post")

	self, err := f.notify.List(ctx, notify.ListInput{AgentID: "friday"})
	require.NoError(t, err)
	assert.Empty(t, self)

	var sawComment bool
	for len(sub) > 0 {
		if evt := <-sub; evt.Type == events.CommentAdded {
			sawComment = true
			assert.Equal(t, "friday", evt.AgentID)
		}
	}
	assert.True(t, sawComment)
}

func TestAddCommentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := f.create(t, CreateInput{Name: "x"})

	_, err := f.svc.AddComment(ctx, task.ID, CommentInput{Content: "hi"})
	assert.True(t, model.IsValidation(err))
	_, err = f.svc.AddComment(ctx, task.ID, CommentInput{AgentID: "a"})
	assert.True(t, model.IsValidation(err))
	_, err = f.svc.AddComment(ctx, task.ID, CommentInput{AgentID: "a", Content: "hi", Attachments: json.RawMessage(`{`)})
	assert.True(t, model.IsValidation(err))
	_, err = f.svc.AddComment(ctx, "ghost", CommentInput{AgentID: "a", Content: "hi"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.svc.ListComments(ctx, "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCommentsListOldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := f.create(t, CreateInput{Name: "x"})
	first, err := f.svc.AddComment(ctx, task.ID, CommentInput{AgentID: "a", Content: "one"})
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, task.ID, CommentInput{AgentID: "b", Content: "two"})
	require.NoError(t, err)

	list, err := f.svc.ListComments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestSubtasksInheritFromParent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := model.Organization{ID: "org-1", Name: "Acme", CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.CreateOrganization(ctx, org))
	project := model.Project{ID: "proj-1", Name: "Launch", OrganizationID: ptr("org-1"), CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.CreateProject(ctx, project))
	parent := f.create(t, CreateInput{Name: "Launch", ProjectID: &project.ID, OrganizationID: &org.ID, DueDate: ptr("2025-06-01")})

	_, err := f.svc.CreateSubtasks(ctx, parent.ID, nil)
	assert.True(t, model.IsValidation(err))
	_, err = f.svc.CreateSubtasks(ctx, parent.ID, []SubtaskInput{{Name: "ok"}, {Name: " "}})
	assert.True(t, model.IsValidation(err))
	_, err = f.svc.CreateSubtasks(ctx, "ghost", []SubtaskInput{{Name: "x"}})
	assert.ErrorIs(t, err, model.ErrNotFound)

	created, err := f.svc.CreateSubtasks(ctx, parent.ID, []SubtaskInput{{Name: "Draft copy", Description: ptr("blog")}, {Name: "Record demo"}})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, sub := range created {
		assert.Equal(t, model.TaskStatusNotStarted, sub.Status)
		assert.Equal(t, parent.ID, model.StringValue(sub.ParentID))
		assert.Equal(t, project.ID, model.StringValue(sub.ProjectID))
		assert.Equal(t, org.ID, model.StringValue(sub.OrganizationID))
		require.NotNil(t, sub.DueDate)
		assert.True(t, parent.DueDate.Equal(*sub.DueDate))
	}

	list, err := f.svc.ListSubtasks(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Draft copy", list[0].Name)

	filtered, err := f.svc.List(ctx, ListInput{ParentID: parent.ID})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestCreateRejectsUnknownParent(t *testing.T) {
	_, err := newFixture(t).svc.Create(context.Background(), CreateInput{Name: "child", ParentID: ptr("ghost")})
	assert.True(t, model.IsValidation(err))
}

func TestDeleteRemovesSubtreeAndComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := f.create(t, CreateInput{Name: "root"})
	mid := f.create(t, CreateInput{Name: "mid", ParentID: &root.ID})
	leaf := f.create(t, CreateInput{Name: "leaf", ParentID: &mid.ID})
	keep := f.create(t, CreateInput{Name: "unrelated"})
	_, err := f.svc.AddComment(ctx, leaf.ID, CommentInput{AgentID: "a", Content: "on the leaf"})
	require.NoError(t, err)

	removed, err := f.svc.Delete(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, removed.ID)

	for _, id := range []string{root.ID, mid.ID, leaf.ID} {
		_, err := f.store.GetTask(ctx, id)
		assert.ErrorIs(t, err, model.ErrNotFound, id)
	}
	comments, err := f.store.ListTaskComments(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = f.store.GetTask(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestBulkUpdateAppliesToEachTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t, CreateInput{Name: "a"})
	b := f.create(t, CreateInput{Name: "b", Priority: ptr("low")})

	_, err := f.svc.BulkUpdate(ctx, nil, BulkUpdateFields{Status: ptr("done")})
	assert.True(t, model.IsValidation(err))
	_, err = f.svc.BulkUpdate(ctx, []string{a.ID}, BulkUpdateFields{})
	assert.True(t, model.IsValidation(err))

	res, err := f.svc.BulkUpdate(ctx, []string{a.ID, b.ID, a.ID, "ghost"}, BulkUpdateFields{Status: ptr("in_progress"), Priority: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"ghost"}, res.Missing)

	for _, id := range []string{a.ID, b.ID} {
		got, err := f.store.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.TaskStatusInProgress, got.Status)
		assert.Nil(t, got.Priority)
	}

	_, err = f.svc.BulkUpdate(ctx, []string{a.ID}, BulkUpdateFields{ProjectID: ptr("ghost")})
	assert.True(t, model.IsValidation(err), "reference checks still apply")
}

func TestBulkDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t, CreateInput{Name: "a"})
	b := f.create(t, CreateInput{Name: "b"})

	res, err := f.svc.BulkDelete(ctx, []string{a.ID, " ", b.ID, "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"ghost"}, res.Missing)

	all, err := f.svc.List(ctx, ListInput{})
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = f.svc.BulkDelete(ctx, []string{" "})
	assert.True(t, model.IsValidation(err))
}

func TestCreatePublishesTaskCreated(t *testing.T) {
	f := newFixture(t)
	sub, unsub := f.hub.Subscribe()
	defer unsub()

	task := f.create(t, CreateInput{Name: "x"})
	evt := <-sub
	assert.Equal(t, events.TaskCreated, evt.Type)
	assert.Equal(t, task.ID, evt.EntityID)
}
