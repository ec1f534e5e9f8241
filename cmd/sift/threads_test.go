package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsift/sift/internal/model"
	"github.com/mailsift/sift/internal/testutil"
)

func TestSaveThreadsChunked_ReportsEveryChunk(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	threads := make([]model.Thread, importChunkSize*2+7)
	for i := range threads {
		threads[i] = model.Thread{
			ID:      fmt.Sprintf("thread-%03d", i),
			UserID:  "test-user",
			Subject: fmt.Sprintf("Subject %d", i),
			Sender:  "sender@example.com",
		}
	}

	var chunks []int
	err := saveThreadsChunked(ctx, db.Storage, threads, func(n int) {
		chunks = append(chunks, n)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{importChunkSize, importChunkSize, 7}, chunks)

	saved, err := db.Storage.ListThreads(ctx, "test-user", true)
	require.NoError(t, err)
	assert.Len(t, saved, len(threads))
}

func TestSaveThreadsChunked_EmptyInput(t *testing.T) {
	db := testutil.SetupTestDB(t)

	called := false
	err := saveThreadsChunked(context.Background(), db.Storage, nil, func(int) {
		called = true
	})
	require.NoError(t, err)
	assert.False(t, called)
}
