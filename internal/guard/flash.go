package guard

import (
	"context"

	"github.com/smolnikov/adminpanel/internal/notify"
)

// FlashNotifier queues notifications in the browser session so they render
// as toasts on the next page load. Contexts without a loaded session (CLI
// calls, startup verification) drop the notification silently.
type FlashNotifier struct {
	Sessions *SessionManager
}

func (f FlashNotifier) Success(ctx context.Context, message string) {
	f.push(ctx, notify.NewNotification(notify.LevelSuccess, message))
}

func (f FlashNotifier) Error(ctx context.Context, message string) {
	f.push(ctx, notify.NewNotification(notify.LevelError, message))
}

func (f FlashNotifier) push(ctx context.Context, n notify.Notification) {
	// scs panics when the context carries no session data.
	defer func() { _ = recover() }()
	f.Sessions.PushFlash(ctx, n)
}
