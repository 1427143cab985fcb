package views

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLister serves scripted snapshots of the context set, one per call,
// sticking on the last once the script runs out.
type fakeLister struct {
	mu        sync.Mutex
	snapshots [][]*target.Info
	errs      []error
	calls     int
}

func (f *fakeLister) ListTargets(ctx context.Context) ([]*target.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.snapshots) == 0 {
		return nil, nil
	}
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	return f.snapshots[i], nil
}

func info(id, url string) *target.Info {
	return &target.Info{TargetID: target.ID(id), Type: "page", URL: url}
}

func TestDiscoverHost_EmptySnapshot(t *testing.T) {
	reg := NewRegistry(&fakeLister{snapshots: [][]*target.Info{{}}}, zap.NewNop())

	_, err := reg.DiscoverHost(context.Background())
	require.ErrorIs(t, err, ErrHostNotFound)
}

func TestDiscoverHost_FirstContextIsHost(t *testing.T) {
	lister := &fakeLister{snapshots: [][]*target.Info{{
		info("host-1", "http://localhost:3000/"),
		info("stray-1", "http://localhost:3000/about"),
	}}}
	reg := NewRegistry(lister, zap.NewNop())

	host, err := reg.DiscoverHost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, target.ID("host-1"), host.TargetID)
	assert.Equal(t, target.ID("host-1"), reg.Host())
}

func TestDiscoverDynamicView_RequiresHostFirst(t *testing.T) {
	reg := NewRegistry(&fakeLister{}, zap.NewNop())

	_, err := reg.DiscoverDynamicView(context.Background(), 50*time.Millisecond, 10*time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDynamicViewTimeout)
}

func TestDiscoverDynamicView_IgnoresPreKnownContexts(t *testing.T) {
	// stray-1 existed at attach time, so it must never surface as a
	// dynamic view even though it is not the host.
	attach := []*target.Info{
		info("host-1", "http://localhost:3000/"),
		info("stray-1", "http://localhost:3000/about"),
	}
	lister := &fakeLister{snapshots: [][]*target.Info{attach, attach}}
	reg := NewRegistry(lister, zap.NewNop())

	_, err := reg.DiscoverHost(context.Background())
	require.NoError(t, err)

	_, err = reg.DiscoverDynamicView(context.Background(), 60*time.Millisecond, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrDynamicViewTimeout)
}

func TestDiscoverDynamicView_FindsNewContext(t *testing.T) {
	attach := []*target.Info{info("host-1", "http://localhost:3000/")}
	after := []*target.Info{
		info("host-1", "http://localhost:3000/"),
		info("view-1", "https://github.com/example"),
	}
	lister := &fakeLister{snapshots: [][]*target.Info{attach, attach, after}}
	reg := NewRegistry(lister, zap.NewNop())

	_, err := reg.DiscoverHost(context.Background())
	require.NoError(t, err)

	view, err := reg.DiscoverDynamicView(context.Background(), 2*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, target.ID("view-1"), view.TargetID)

	// A discovered view becomes known and is not reported again.
	_, err = reg.DiscoverDynamicView(context.Background(), 60*time.Millisecond, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrDynamicViewTimeout)
}

func TestDiscoverDynamicView_TransientListErrorsKeepPolling(t *testing.T) {
	attach := []*target.Info{info("host-1", "http://localhost:3000/")}
	after := []*target.Info{
		info("host-1", "http://localhost:3000/"),
		info("view-1", "https://github.com/example"),
	}
	lister := &fakeLister{
		snapshots: [][]*target.Info{attach, nil, after},
		errs:      []error{nil, errors.New("transient churn"), nil},
	}
	reg := NewRegistry(lister, zap.NewNop())

	_, err := reg.DiscoverHost(context.Background())
	require.NoError(t, err)

	view, err := reg.DiscoverDynamicView(context.Background(), 2*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, target.ID("view-1"), view.TargetID)
}

func TestDiscoverDynamicView_CustomClassifier(t *testing.T) {
	attach := []*target.Info{info("host-1", "http://localhost:3000/")}
	after := []*target.Info{
		info("host-1", "http://localhost:3000/"),
		info("local-popup", "http://localhost:3000/settings"),
		info("view-1", "https://github.com/example"),
	}
	lister := &fakeLister{snapshots: [][]*target.Info{attach, after}}
	reg := NewRegistry(lister, zap.NewNop())
	reg.SetClassifier(func(i *target.Info, hostID target.ID) Role {
		if i.TargetID == hostID {
			return RoleHost
		}
		if IsExternalURL(i) {
			return RoleDynamicView
		}
		return RoleUnknown
	})

	_, err := reg.DiscoverHost(context.Background())
	require.NoError(t, err)

	view, err := reg.DiscoverDynamicView(context.Background(), 2*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, target.ID("view-1"), view.TargetID)
}

func TestIsExternalURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://github.com/example", true},
		{"http://localhost:3000/", false},
		{"http://127.0.0.1:3000/home", false},
		{"about:blank", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsExternalURL(info("x", tc.url)), "url %q", tc.url)
	}
}
