// File: internal/views/registry.go

// Package views discovers and classifies the browsing contexts the target
// application exposes: the Host (primary window) and DynamicViews (secondary
// content surfaces that appear in response to user actions).
package views

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/target"
	"go.uber.org/zap"

	"github.com/xkilldash9x/reflow/internal/poll"
)

var (
	// ErrHostNotFound means no browsing context existed at discovery time.
	// Fatal: the application must have at least its primary window open.
	ErrHostNotFound = errors.New("views: no browsing context present")

	// ErrDynamicViewTimeout means no secondary view appeared within the
	// discovery window. Recoverable; callers treat it as "no split occurred".
	ErrDynamicViewTimeout = errors.New("views: no dynamic view appeared before timeout")
)

// Role classifies a browsing context.
type Role int

const (
	RoleUnknown Role = iota
	RoleHost
	RoleDynamicView
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "Host"
	case RoleDynamicView:
		return "DynamicView"
	default:
		return "Unknown"
	}
}

// TargetLister enumerates the currently exposed browsing contexts. The debug
// session satisfies it; tests substitute fakes.
type TargetLister interface {
	ListTargets(ctx context.Context) ([]*target.Info, error)
}

// Classifier maps a context to a role given the identity of the Host.
// Pluggable so the discovery-order heuristic can be replaced per target app.
type Classifier func(info *target.Info, hostID target.ID) Role

// DiscoveryOrderClassifier is the default heuristic: the first context
// observed at attach time is the Host, everything discovered afterwards is a
// DynamicView candidate. Adequate only because the target application is
// known to open its primary window before any secondary view.
func DiscoveryOrderClassifier(info *target.Info, hostID target.ID) Role {
	if info.TargetID == hostID {
		return RoleHost
	}
	return RoleDynamicView
}

// IsExternalURL reports whether a context has navigated to a non-local host,
// the mark of embedded third-party content in a secondary view.
func IsExternalURL(info *target.Info) bool {
	u, err := url.Parse(info.URL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	h := u.Hostname()
	return h != "localhost" && h != "127.0.0.1" && h != "::1"
}

// Registry tracks the contexts known to the current run.
type Registry struct {
	lister   TargetLister
	classify Classifier
	logger   *zap.Logger

	hostID target.ID
	known  map[target.ID]struct{}
}

// NewRegistry creates a registry over the given lister using the
// discovery-order classifier.
func NewRegistry(lister TargetLister, logger *zap.Logger) *Registry {
	return &Registry{
		lister:   lister,
		classify: DiscoveryOrderClassifier,
		logger:   logger.Named("views"),
		known:    make(map[target.ID]struct{}),
	}
}

// SetClassifier swaps the classification predicate. Must be called before
// discovery starts.
func (r *Registry) SetClassifier(c Classifier) {
	if c != nil {
		r.classify = c
	}
}

// Host returns the identity of the Host context, valid after DiscoverHost.
func (r *Registry) Host() target.ID {
	return r.hostID
}

// DiscoverHost snapshots the context set and fixes the Host identity for the
// rest of the run. Every context present in the snapshot becomes pre-known,
// so a secondary view that somehow existed before any interaction is never
// reported by DiscoverDynamicView.
func (r *Registry) DiscoverHost(ctx context.Context) (*target.Info, error) {
	infos, err := r.lister.ListTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing contexts: %w", err)
	}
	if len(infos) == 0 {
		return nil, ErrHostNotFound
	}

	host := infos[0]
	r.hostID = host.TargetID
	for _, info := range infos {
		r.known[info.TargetID] = struct{}{}
	}

	r.logger.Info("Host context discovered.",
		zap.String("target_id", string(host.TargetID)),
		zap.String("url", host.URL),
		zap.Int("contexts_at_attach", len(infos)))
	return host, nil
}

// DiscoverDynamicView polls the context set until a context appears that is
// neither the Host nor previously known, or the timeout elapses
// (ErrDynamicViewTimeout). A discovered view becomes known, so repeated calls
// never return the same context twice.
func (r *Registry) DiscoverDynamicView(ctx context.Context, timeout, pollInterval time.Duration) (*target.Info, error) {
	if r.hostID == "" {
		return nil, fmt.Errorf("views: host must be discovered first")
	}

	var found *target.Info
	err := poll.Until(ctx, timeout, pollInterval, func(ctx context.Context) (bool, error) {
		infos, err := r.lister.ListTargets(ctx)
		if err != nil {
			// Transient listing failures are part of the application's
			// asynchronous churn; keep polling until the budget runs out.
			r.logger.Debug("Context listing failed during discovery.", zap.Error(err))
			return false, nil
		}

		for _, info := range infos {
			if _, ok := r.known[info.TargetID]; ok {
				continue
			}
			if r.classify(info, r.hostID) != RoleDynamicView {
				continue
			}
			found = info
			return true, nil
		}
		return false, nil
	})

	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			return nil, ErrDynamicViewTimeout
		}
		return nil, err
	}

	r.known[found.TargetID] = struct{}{}
	r.logger.Info("Dynamic view discovered.",
		zap.String("target_id", string(found.TargetID)),
		zap.String("url", found.URL))
	return found, nil
}
