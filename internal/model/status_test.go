package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTransition(t *testing.T) {
	cases := []struct {
		from, to QueueStatus
		want     TransitionKind
	}{
		{QueueStatusQueued, QueueStatusInProgress, TransitionStart},
		{QueueStatusQueued, QueueStatusDone, TransitionComplete},
		{QueueStatusInProgress, QueueStatusDone, TransitionComplete},
		{QueueStatusInProgress, QueueStatusInProgress, TransitionNoop},
		{QueueStatusDone, QueueStatusDone, TransitionNoop},
		{QueueStatusQueued, QueueStatusQueued, TransitionNoop},
		{QueueStatusDone, QueueStatusInProgress, TransitionInvalid},
		{QueueStatusDone, QueueStatusQueued, TransitionInvalid},
		{QueueStatusInProgress, QueueStatusQueued, TransitionInvalid},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyTransition(tc.from, tc.to))
		})
	}
}

func TestParseQueueStatus(t *testing.T) {
	got, err := ParseQueueStatus(" in_progress ")
	require.NoError(t, err)
	assert.Equal(t, QueueStatusInProgress, got)

	_, err = ParseQueueStatus("blocked")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestTaskStatusRank(t *testing.T) {
	assert.Less(t, TaskStatusInProgress.Rank(), TaskStatusTodo.Rank())
	assert.Less(t, TaskStatusTodo.Rank(), TaskStatusWaiting.Rank())
	assert.Less(t, TaskStatus("review").Rank(), TaskStatusDone.Rank())
	assert.Equal(t, TaskStatusTodo.Rank(), TaskStatusNotStarted.Rank())
}

func TestWrapStoreKeepsDomainErrors(t *testing.T) {
	nf := NotFound("task", "t1")
	assert.Same(t, nf, WrapStore("get_task", nf))

	wrapped := WrapStore("get_task", errors.New("disk on fire"))
	assert.True(t, IsStore(wrapped))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Nil(t, WrapStore("noop", nil))
}
