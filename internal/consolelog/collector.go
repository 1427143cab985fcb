// File: internal/consolelog/collector.go

// Package consolelog subscribes to a browsing context's console and log
// events and retains a bounded trailing window for diagnostics.
package consolelog

import (
	"context"
	"strings"
	"sync"
	"time"

	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Entry is one retained console event.
type Entry struct {
	Severity string
	Text     string
	At       time.Time
}

// Collector keeps the most recent N console events of a context. The CDP
// event callback runs on chromedp's listener goroutine while the scenario
// thread reads, so the ring is mutex-guarded.
type Collector struct {
	logger *zap.Logger

	mu    sync.Mutex
	ring  []Entry
	next  int
	count int
}

// NewCollector creates a collector retaining at most size entries, oldest
// evicted first.
func NewCollector(size int, logger *zap.Logger) *Collector {
	if size <= 0 {
		size = 10
	}
	return &Collector{
		logger: logger.Named("consolelog"),
		ring:   make([]Entry, size),
	}
}

// Attach enables the runtime and log CDP domains on the target context and
// starts listening. Events arrive push-based until targetCtx is canceled.
func (c *Collector) Attach(targetCtx context.Context) error {
	chromedp.ListenTarget(targetCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			c.add(string(e.Type), formatConsoleArgs(e.Args))
		case *cdplog.EventEntryAdded:
			c.add(string(e.Entry.Level), e.Entry.Text)
		case *runtime.EventExceptionThrown:
			c.add("exception", e.ExceptionDetails.Error())
		}
	})

	if err := chromedp.Run(targetCtx, runtime.Enable(), cdplog.Enable()); err != nil {
		return err
	}
	c.logger.Debug("Console collector attached.")
	return nil
}

// add appends an entry, evicting the oldest once the ring is full.
func (c *Collector) add(severity, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = Entry{Severity: severity, Text: text, At: time.Now()}
	c.next = (c.next + 1) % len(c.ring)
	if c.count < len(c.ring) {
		c.count++
	}
}

// Recent returns up to n retained entries, oldest first. Non-blocking: it
// reads current buffer state and never waits for events that have not yet
// occurred.
func (c *Collector) Recent(n int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > c.count {
		n = c.count
	}
	out := make([]Entry, 0, n)
	// Walk forward from the oldest retained entry, keeping only the last n.
	start := c.next - c.count
	if start < 0 {
		start += len(c.ring)
	}
	for i := c.count - n; i < c.count; i++ {
		out = append(out, c.ring[(start+i)%len(c.ring)])
	}
	return out
}

// formatConsoleArgs flattens console.* call arguments to one line.
func formatConsoleArgs(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if arg.Value != nil {
			parts = append(parts, strings.Trim(string(arg.Value), `"`))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}
