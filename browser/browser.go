package browser

import (
	"context"
	"errors"
)

var ErrTabClosed = errors.New("browser tab closed")

// Engine owns a running browser process and hands out tabs.
type Engine interface {
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// Tab is the set of page primitives a search attempt needs. Selectors are CSS
// selectors. Waits use the engine's own default timeout.
type Tab interface {
	Navigate(ctx context.Context, url string) error
	SetUserAgent(ctx context.Context, ua string) error
	// WaitReady waits until selector exists in the DOM. Visibility is not
	// required.
	WaitReady(ctx context.Context, selector string) error
	Text(ctx context.Context, selector string) (string, error)
	Focus(ctx context.Context, selector string) error
	// Type sends keystrokes to the focused element.
	Type(ctx context.Context, text string) error
	Submit(ctx context.Context, selector string) error
	Close() error
}
