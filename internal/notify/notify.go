// Package notify defines the operator-facing notification surface. The web
// UI renders notifications as auto-dismissing toasts, the CLI prints them.
package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// DisplayDuration is how long the web UI shows a toast before dismissing it.
const DisplayDuration = 3 * time.Second

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one message queued for the operator.
type Notification struct {
	ID      string
	Level   Level
	Message string
}

// NewNotification builds a notification with a fresh ID.
func NewNotification(level Level, message string) Notification {
	return Notification{ID: uuid.NewString(), Level: level, Message: message}
}

// Notifier delivers outcome messages to the operator. Delivery is best
// effort; implementations never return errors to the caller.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// Discard drops all notifications. Used where no operator is watching.
type Discard struct{}

func (Discard) Success(ctx context.Context, message string) {}
func (Discard) Error(ctx context.Context, message string)   {}

// Terminal writes notifications as plain lines, for CLI commands.
type Terminal struct {
	W io.Writer
}

func (t Terminal) Success(_ context.Context, message string) {
	fmt.Fprintln(t.W, message)
}

func (t Terminal) Error(_ context.Context, message string) {
	fmt.Fprintln(t.W, "error: "+message)
}
