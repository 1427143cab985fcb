// File: internal/session/session.go

// Package session attaches the harness to the target application's remote
// debugging endpoint. Two strategies are tried in order: attach to the
// already-listening endpoint, then launch a fresh automation-owned instance.
// Downstream code only sees the Session and never learns which one won.
package session

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Mode records which connection strategy produced the session.
type Mode int

const (
	ModeDisconnected Mode = iota
	ModeAttached
	ModeLaunchedFresh
)

func (m Mode) String() string {
	switch m {
	case ModeAttached:
		return "Attached"
	case ModeLaunchedFresh:
		return "LaunchedFresh"
	default:
		return "Disconnected"
	}
}

// Session is a live connection to the target's browser-level CDP endpoint.
// It owns the allocator and browser contexts and exposes browsing-context
// enumeration to the view registry.
type Session struct {
	endpoint string
	mode     Mode
	logger   *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	closeOnce sync.Once
}

// Mode reports how the session was established.
func (s *Session) Mode() Mode {
	return s.mode
}

// Endpoint returns the debugging endpoint address the session was asked to
// reach, even if the fresh-launch strategy ultimately served it.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// ListTargets enumerates the page-type browsing contexts currently exposed by
// the application. The set can grow and shrink between calls as the
// application opens and closes secondary views.
func (s *Session) ListTargets(ctx context.Context) ([]*target.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := chromedp.Targets(s.browserCtx)
	if err != nil {
		return nil, err
	}

	pages := make([]*target.Info, 0, len(infos))
	for _, info := range infos {
		if info.Type == "page" {
			pages = append(pages, info)
		}
	}
	return pages, nil
}

// TargetContext derives a chromedp context bound to a single browsing
// context. Actions run against it affect only that view. The caller owns the
// returned cancel.
func (s *Session) TargetContext(id target.ID) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(id))
}

// Close tears down the browser and allocator contexts. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing debug session.", zap.String("mode", s.mode.String()))
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
}
