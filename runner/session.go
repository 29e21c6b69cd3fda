package runner

import (
	"context"
	"time"
)

// PageSession is the narrow view of a browser session the interpreter
// depends on. *browser.Session satisfies it.
type PageSession interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitReady(ctx context.Context, timeout time.Duration) bool
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Evaluate(ctx context.Context, script string, out any) error
	OuterHTML(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	AutoScroll(ctx context.Context, iterations int)
	Close()
}

// A SessionOpener launches one browser session per plan execution. When
// direct is true the configured proxy must be bypassed.
type SessionOpener interface {
	NewSession(ctx context.Context, direct bool) (PageSession, error)
}
