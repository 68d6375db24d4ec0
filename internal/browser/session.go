// Package browser acquires rendered HTML through a managed headless browser.
package browser

import "context"

// Session is one stateful browser tab. Navigations share cookies and page
// state, so a Session must be driven by a single goroutine.
type Session interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher opens new sessions. A launch failure is fatal to the run asking for it.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// RenderedPage is the document a successful fetch returns.
type RenderedPage struct {
	URL  string
	HTML string
}
