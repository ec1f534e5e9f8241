// Package model defines the core data structures for the sift application.
package model

import (
	"strings"
	"time"
)

// Category classifies a thread for triage purposes.
type Category string

// Thread categories.
const (
	CategoryVIPCritical    Category = "VIP_CRITICAL"
	CategoryActionRequired Category = "ACTION_REQUIRED"
	CategoryMeetingRequest Category = "MEETING_REQUEST"
	CategoryFinancial      Category = "FINANCIAL"
	CategoryFYIOnly        Category = "FYI_ONLY"
	CategorySpam           Category = "SPAM"
	CategoryUnknown        Category = "UNKNOWN"
)

// Priority indicates how urgently a thread needs attention.
type Priority string

// Thread priorities.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Thread represents one email conversation, the unit of triage.
// Subject, sender, body and participants are read-only snapshots of the
// mailbox state; the processing fields are the engine's write surface.
type Thread struct {
	LastMessageDate  time.Time  `json:"last_message_date"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Subject          string     `json:"subject"`
	Sender           string     `json:"sender"`
	Body             string     `json:"body,omitempty"`
	Folder           string     `json:"folder,omitempty"`
	ProcessingReason string     `json:"processing_reason,omitempty"`
	Category         Category   `json:"category"`
	Priority         Priority   `json:"priority"`
	Participants     []string   `json:"participants,omitempty"`
	HasUnread        bool       `json:"has_unread"`
	IsProcessed      bool       `json:"is_processed"`
	IsHidden         bool       `json:"is_hidden"`
}

// SenderDomain returns the domain portion of the sender address in lower
// case, or the empty string when no sender or no domain is available.
func (t *Thread) SenderDomain() string {
	at := strings.LastIndex(t.Sender, "@")
	if at < 0 || at == len(t.Sender)-1 {
		return ""
	}
	return strings.ToLower(t.Sender[at+1:])
}

// DraftStatus tracks a response draft through its lifecycle.
type DraftStatus string

// Draft statuses.
const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusSent      DraftStatus = "sent"
	DraftStatusInMailbox DraftStatus = "in_mailbox"
)

// Draft is a response draft attached to a thread.
type Draft struct {
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	MailboxRef *string     `json:"mailbox_ref,omitempty"`
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	ThreadID   string      `json:"thread_id"`
	Status     DraftStatus `json:"status"`
}

// Delivered reports whether the draft has actually reached the mailbox:
// either sent, or placed in the mailbox with a reference back to it.
func (d *Draft) Delivered() bool {
	switch d.Status {
	case DraftStatusSent:
		return true
	case DraftStatusInMailbox:
		return d.MailboxRef != nil && *d.MailboxRef != ""
	default:
		return false
	}
}

// TaskStatus tracks an extracted task through its lifecycle.
type TaskStatus string

// Task statuses.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task is an action item extracted from a thread.
type Task struct {
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ThreadID    string     `json:"thread_id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
}
