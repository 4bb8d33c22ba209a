package widgetdialog

import (
	"context"
	"sync"
)

// Level is the severity of a Notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-facing message raised by the dialog.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// Success builds a success notification.
func Success(title string) Notification { return Notification{Level: LevelSuccess, Title: title} }

// Failure builds an error notification from err.
func Failure(title string, err error) Notification {
	n := Notification{Level: LevelError, Title: title}
	if err != nil {
		n.Message = err.Error()
	}
	return n
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Inbox is a Notifier that keeps notifications until drained.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
}

func (b *Inbox) Notify(_ context.Context, n Notification) {
	b.mu.Lock()
	b.items = append(b.items, n)
	b.mu.Unlock()
}

// Drain returns and clears the pending notifications.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}
