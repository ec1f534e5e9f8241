package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsift/sift/internal/common"
	"github.com/mailsift/sift/internal/model"
)

func recordApp(t *testing.T, store *SQLiteStorage, ruleID int64, id string) {
	t.Helper()
	require.NoError(t, store.RecordApplication(context.Background(), &model.RuleApplication{
		ID:           id,
		UserID:       testUser,
		RuleID:       ruleID,
		ThreadID:     "thread-" + id,
		ActionsTaken: model.RuleActions{AutoProcess: true},
	}))
}

func TestRecordApplication_CounterTracksLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := testRule("counted", 0.5)
	require.NoError(t, store.CreateRule(ctx, rule))

	for i := 0; i < 5; i++ {
		recordApp(t, store, rule.ID, fmt.Sprintf("app-%d", i))
	}

	got, err := store.GetRule(ctx, testUser, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TimesApplied)
	require.NotNil(t, got.LastAppliedAt)

	count, err := store.CountRuleApplications(ctx, testUser, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, got.TimesApplied, count)
}

func TestRecordApplication_UnknownRuleRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RecordApplication(ctx, &model.RuleApplication{
		ID:       "orphan",
		UserID:   testUser,
		RuleID:   999,
		ThreadID: "thread-1",
	})
	assert.ErrorIs(t, err, common.ErrNotFound)

	// The log insert must not survive the failed counter update.
	count, err := store.CountRuleApplications(ctx, testUser, 999)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetApplication_SnapshotSurvivesRuleEdit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := testRule("edited later", 0.5)
	rule.Actions = model.RuleActions{AutoProcess: true, MoveToFolder: "Before"}
	require.NoError(t, store.CreateRule(ctx, rule))

	require.NoError(t, store.RecordApplication(ctx, &model.RuleApplication{
		ID:           "app-1",
		UserID:       testUser,
		RuleID:       rule.ID,
		ThreadID:     "thread-1",
		ActionsTaken: rule.Actions,
	}))

	rule.Actions.MoveToFolder = "After"
	require.NoError(t, store.UpdateRule(ctx, rule))

	app, err := store.GetApplication(ctx, testUser, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "Before", app.ActionsTaken.MoveToFolder)
	assert.Nil(t, app.UserFeedback)
	assert.Nil(t, app.FeedbackAt)
}

func TestGetRuleApplications_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := testRule("logged", 0.5)
	require.NoError(t, store.CreateRule(ctx, rule))
	recordApp(t, store, rule.ID, "app-a")
	recordApp(t, store, rule.ID, "app-b")

	apps, err := store.GetRuleApplications(ctx, testUser, rule.ID)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "app-b", apps[0].ID)
	assert.Equal(t, "app-a", apps[1].ID)
}

func TestSetApplicationFeedback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := testRule("judged", 0.5)
	require.NoError(t, store.CreateRule(ctx, rule))
	recordApp(t, store, rule.ID, "app-1")

	require.NoError(t, store.SetApplicationFeedback(ctx, testUser, "app-1", model.FeedbackCorrect, "nice"))

	app, err := store.GetApplication(ctx, testUser, "app-1")
	require.NoError(t, err)
	require.NotNil(t, app.UserFeedback)
	assert.Equal(t, model.FeedbackCorrect, *app.UserFeedback)
	assert.Equal(t, "nice", app.FeedbackNotes)
	assert.NotNil(t, app.FeedbackAt)

	got, err := store.GetRule(ctx, testUser, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TimesCorrect)
	assert.Zero(t, got.TimesIncorrect)
}

func TestSetApplicationFeedback_OverwriteAdjustsCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := testRule("rejudged", 0.5)
	require.NoError(t, store.CreateRule(ctx, rule))
	recordApp(t, store, rule.ID, "app-1")

	require.NoError(t, store.SetApplicationFeedback(ctx, testUser, "app-1", model.FeedbackCorrect, ""))
	require.NoError(t, store.SetApplicationFeedback(ctx, testUser, "app-1", model.FeedbackIncorrect, "changed my mind"))

	got, err := store.GetRule(ctx, testUser, rule.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TimesCorrect)
	assert.Equal(t, 1, got.TimesIncorrect)

	// A second identical verdict changes nothing.
	require.NoError(t, store.SetApplicationFeedback(ctx, testUser, "app-1", model.FeedbackIncorrect, ""))
	got, err = store.GetRule(ctx, testUser, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TimesIncorrect)
}

func TestSetApplicationFeedback_PartiallyCorrect(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := testRule("hedged", 0.5)
	require.NoError(t, store.CreateRule(ctx, rule))
	recordApp(t, store, rule.ID, "app-1")

	require.NoError(t, store.SetApplicationFeedback(ctx, testUser, "app-1", model.FeedbackPartiallyCorrect, ""))

	got, err := store.GetRule(ctx, testUser, rule.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TimesCorrect)
	assert.Zero(t, got.TimesIncorrect)

	// Moving from correct to partially_correct releases the counter.
	require.NoError(t, store.SetApplicationFeedback(ctx, testUser, "app-1", model.FeedbackCorrect, ""))
	require.NoError(t, store.SetApplicationFeedback(ctx, testUser, "app-1", model.FeedbackPartiallyCorrect, ""))

	got, err = store.GetRule(ctx, testUser, rule.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TimesCorrect)
	assert.Zero(t, got.TimesIncorrect)
	assert.Equal(t, 1, got.TimesApplied)
}

func TestSetApplicationFeedback_Errors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SetApplicationFeedback(ctx, testUser, "missing", model.FeedbackCorrect, "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.SetApplicationFeedback(ctx, testUser, "missing", model.Feedback("maybe"), "")
	assert.ErrorIs(t, err, common.ErrInvalidFeedback)
}
