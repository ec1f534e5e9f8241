// Package mailbox provides clients for filing threads into mail folders.
package mailbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mailsift/sift/internal/service"
)

// LocalClient files threads by recording the folder on the stored thread
// snapshot. It stands in for a remote mailbox service; a real client
// would call the mail provider's move API and then record the result the
// same way.
type LocalClient struct {
	storage service.Storage
}

// NewLocalClient creates a mailbox client backed by local storage.
func NewLocalClient(storage service.Storage) *LocalClient {
	return &LocalClient{storage: storage}
}

// MoveThread records the thread's new folder.
func (c *LocalClient) MoveThread(ctx context.Context, userID, threadID, folder string) error {
	if err := c.storage.SetThreadFolder(ctx, userID, threadID, folder); err != nil {
		return fmt.Errorf("failed to file thread %s: %w", threadID, err)
	}

	slog.Info("Filed thread", "thread_id", threadID, "folder", folder)
	return nil
}
