package mailbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsift/sift/internal/common"
	"github.com/mailsift/sift/internal/model"
	"github.com/mailsift/sift/internal/testutil"
)

func TestLocalClient_MoveThread(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := NewLocalClient(db.Storage)
	ctx := context.Background()

	thread := db.SeedThread(model.Thread{Subject: "newsletter"})
	require.NoError(t, client.MoveThread(ctx, "test-user", thread.ID, "Newsletters"))

	got, err := db.Storage.GetThread(ctx, "test-user", thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "Newsletters", got.Folder)
}

func TestLocalClient_MoveThread_Unknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := NewLocalClient(db.Storage)

	err := client.MoveThread(context.Background(), "test-user", "missing", "Newsletters")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
