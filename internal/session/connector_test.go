package session

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProbeEndpoint_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/version", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Browser": "Chrome/120.0.0.0",
			"Protocol-Version": "1.3",
			"webSocketDebuggerUrl": "ws://127.0.0.1:9223/devtools/browser/abc"
		}`))
	}))
	defer srv.Close()

	wsURL, err := ProbeEndpoint(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9223/devtools/browser/abc", wsURL)
}

func TestProbeEndpoint_Unreachable(t *testing.T) {
	// A closed server is the "endpoint not listening yet" case.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := ProbeEndpoint(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestProbeEndpoint_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := ProbeEndpoint(context.Background(), srv.URL)
	require.ErrorContains(t, err, "status 500")
}

func TestProbeEndpoint_MissingWebSocketURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Browser": "Chrome"}`))
	}))
	defer srv.Close()

	_, err := ProbeEndpoint(context.Background(), srv.URL)
	require.ErrorContains(t, err, "webSocketDebuggerUrl")
}

func TestConnectWith_FirstStrategyShortCircuits(t *testing.T) {
	want := &Session{mode: ModeAttached, logger: zap.NewNop()}
	secondCalled := false

	chain := []strategy{
		{name: "attach", dial: func(ctx context.Context) (*Session, error) { return want, nil }},
		{name: "fresh-launch", dial: func(ctx context.Context) (*Session, error) {
			secondCalled = true
			return nil, errors.New("should not run")
		}},
	}

	sess, err := connectWith(context.Background(), chain, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, want, sess)
	assert.False(t, secondCalled, "fallback must not run once a strategy succeeded")
}

func TestConnectWith_FallsBack(t *testing.T) {
	want := &Session{mode: ModeLaunchedFresh, logger: zap.NewNop()}

	chain := []strategy{
		{name: "attach", dial: func(ctx context.Context) (*Session, error) {
			return nil, errors.New("endpoint unreachable")
		}},
		{name: "fresh-launch", dial: func(ctx context.Context) (*Session, error) { return want, nil }},
	}

	sess, err := connectWith(context.Background(), chain, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ModeLaunchedFresh, sess.Mode())
}

func TestConnectWith_AllFail(t *testing.T) {
	chain := []strategy{
		{name: "attach", dial: func(ctx context.Context) (*Session, error) {
			return nil, errors.New("endpoint unreachable")
		}},
		{name: "fresh-launch", dial: func(ctx context.Context) (*Session, error) {
			return nil, errors.New("spawn failed")
		}},
	}

	_, err := connectWith(context.Background(), chain, zap.NewNop())
	require.ErrorIs(t, err, ErrConnection)
	assert.ErrorContains(t, err, "endpoint unreachable")
	assert.ErrorContains(t, err, "spawn failed")
}

func TestOpenBrowser_HandshakeBounded(t *testing.T) {
	// A listener that accepts the connection but never answers the
	// WebSocket upgrade: the worst case for a lazy dial.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) { _, _ = io.Copy(io.Discard, c) }(conn)
		}
	}()

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(),
		"ws://"+ln.Addr().String()+"/devtools/browser/dead", chromedp.NoModifyURL)
	defer allocCancel()

	sess := &Session{logger: zap.NewNop()}
	start := time.Now()
	err = sess.openBrowser(allocCtx, 200*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "handshake must respect the connect budget")
}

func TestConnectWith_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := []strategy{
		{name: "attach", dial: func(ctx context.Context) (*Session, error) {
			t.Fatal("strategy must not run under a canceled context")
			return nil, nil
		}},
	}

	_, err := connectWith(ctx, chain, zap.NewNop())
	require.ErrorIs(t, err, context.Canceled)
}
