package completion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mailsift/sift/internal/model"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestEvaluate_Spam(t *testing.T) {
	got := Evaluate(model.Thread{Category: model.CategorySpam}, nil, nil, now)
	assert.True(t, got.Processed)
	assert.Equal(t, model.ReasonSpam, got.Reason)
}

func TestEvaluate_ActionRequired(t *testing.T) {
	categories := []model.Category{
		model.CategoryVIPCritical,
		model.CategoryActionRequired,
		model.CategoryFinancial,
	}

	for _, category := range categories {
		t.Run(string(category), func(t *testing.T) {
			thread := model.Thread{Category: category}

			// No drafts, no tasks: still open.
			got := Evaluate(thread, nil, nil, now)
			assert.False(t, got.Processed)

			// Sent draft closes it.
			got = Evaluate(thread, []model.Draft{{Status: model.DraftStatusSent}}, nil, now)
			assert.True(t, got.Processed)
			assert.Equal(t, model.ReasonDraftSent, got.Reason)

			// In-mailbox draft needs a mailbox reference.
			got = Evaluate(thread, []model.Draft{{Status: model.DraftStatusInMailbox}}, nil, now)
			assert.False(t, got.Processed)

			got = Evaluate(thread, []model.Draft{{
				Status:     model.DraftStatusInMailbox,
				MailboxRef: strPtr("AAMkAGI2"),
			}}, nil, now)
			assert.True(t, got.Processed)
			assert.Equal(t, model.ReasonDraftInMailbox, got.Reason)
		})
	}
}

func TestEvaluate_TaskCompletion(t *testing.T) {
	thread := model.Thread{Category: model.CategoryVIPCritical}

	// One pending, one completed: not all done.
	tasks := []model.Task{
		{Status: model.TaskStatusPending},
		{Status: model.TaskStatusCompleted},
	}
	got := Evaluate(thread, nil, tasks, now)
	assert.False(t, got.Processed)

	// Second task completes: processed with tasks_completed.
	tasks[0].Status = model.TaskStatusCompleted
	got = Evaluate(thread, nil, tasks, now)
	assert.True(t, got.Processed)
	assert.Equal(t, model.ReasonTasksCompleted, got.Reason)
}

func TestEvaluate_TaskRuleNeedsAtLeastOneTask(t *testing.T) {
	// Zero tasks must not count as "all tasks completed".
	got := Evaluate(model.Thread{Category: model.CategoryActionRequired}, nil, []model.Task{}, now)
	assert.False(t, got.Processed)
}

func TestEvaluate_MeetingRequest(t *testing.T) {
	thread := model.Thread{Category: model.CategoryMeetingRequest}

	got := Evaluate(thread, nil, nil, now)
	assert.False(t, got.Processed)

	// Completed tasks do not close a meeting request; only a delivered
	// draft does.
	got = Evaluate(thread, nil, []model.Task{{Status: model.TaskStatusCompleted}}, now)
	assert.False(t, got.Processed)

	got = Evaluate(thread, []model.Draft{{Status: model.DraftStatusSent}}, nil, now)
	assert.True(t, got.Processed)
	assert.Equal(t, model.ReasonDraftSent, got.Reason)
}

func TestEvaluate_FYIAging(t *testing.T) {
	tests := []struct {
		name      string
		hasUnread bool
		age       time.Duration
		want      bool
	}{
		{name: "exactly 7 days, read", age: FYIAge, want: true},
		{name: "one second short of 7 days", age: FYIAge - time.Second, want: false},
		{name: "aged but unread", hasUnread: true, age: FYIAge + time.Hour, want: false},
		{name: "well past 7 days, read", age: 30 * 24 * time.Hour, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread := model.Thread{
				Category:        model.CategoryFYIOnly,
				HasUnread:       tt.hasUnread,
				LastMessageDate: now.Add(-tt.age),
			}
			got := Evaluate(thread, nil, nil, now)
			assert.Equal(t, tt.want, got.Processed)
			if tt.want {
				assert.Equal(t, model.ReasonFYIAgedOut, got.Reason)
			}
		})
	}
}

func TestEvaluate_FYIWithoutMessageDate(t *testing.T) {
	got := Evaluate(model.Thread{Category: model.CategoryFYIOnly}, nil, nil, now)
	assert.False(t, got.Processed)
}

func TestEvaluate_UnknownCategory(t *testing.T) {
	// With work attached the thread behaves like ACTION_REQUIRED.
	thread := model.Thread{Category: "SOMETHING_NEW"}
	got := Evaluate(thread, nil, []model.Task{{Status: model.TaskStatusCompleted}}, now)
	assert.True(t, got.Processed)
	assert.Equal(t, model.ReasonTasksCompleted, got.Reason)

	// Without work it ages out like FYI.
	thread.LastMessageDate = now.Add(-FYIAge)
	got = Evaluate(thread, nil, nil, now)
	assert.True(t, got.Processed)
	assert.Equal(t, model.ReasonFYIAgedOut, got.Reason)

	thread.LastMessageDate = now.Add(-time.Hour)
	got = Evaluate(thread, nil, nil, now)
	assert.False(t, got.Processed)
}
