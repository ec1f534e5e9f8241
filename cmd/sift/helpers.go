package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mailsift/sift/internal/common"
	"github.com/mailsift/sift/internal/engine"
	"github.com/mailsift/sift/internal/mailbox"
	"github.com/mailsift/sift/internal/service"
	"github.com/mailsift/sift/internal/storage"
)

// getDatabase opens the configured database and returns it with a
// cleanup function.
func getDatabase() (service.Storage, func(), error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "sift", "sift.db")
	}

	db, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, nil, common.NewUserError(
			fmt.Sprintf("could not open database at %s", dbPath), err)
	}

	cleanup := func() { _ = db.Close() }
	return db, cleanup, nil
}

// getEngine wires the engine with its storage and mailbox dependencies.
func getEngine() (*engine.Engine, func(), error) {
	db, cleanup, err := getDatabase()
	if err != nil {
		return nil, nil, err
	}

	return engine.New(db, mailbox.NewLocalClient(db)), cleanup, nil
}

// getUserID resolves the user scope for the invocation.
func getUserID() (string, error) {
	userID := viper.GetString("user.id")
	if userID == "" {
		return "", fmt.Errorf("no user configured: pass --user or set user.id in config")
	}
	return userID, nil
}

// truncateString shortens a string for table display, never splitting a
// multi-byte rune.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
