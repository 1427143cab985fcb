package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/reflow/internal/config"
)

func targetConfig(command string, args ...string) config.TargetConfig {
	return config.TargetConfig{
		Command:     command,
		Args:        args,
		WorkingDir:  ".",
		DebugPort:   9223,
		GracePeriod: 2 * time.Second,
	}
}

func TestStart_LaunchError(t *testing.T) {
	_, err := Start(targetConfig("/nonexistent/definitely-not-a-binary"), zap.NewNop())
	require.ErrorIs(t, err, ErrLaunch)
}

func TestStart_RunningAndStop(t *testing.T) {
	proc, err := Start(targetConfig("sleep", "60"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, proc.State())
	assert.NotZero(t, proc.Pid())

	proc.Stop(2 * time.Second)

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not terminate after Stop")
	}
	assert.Equal(t, StateTerminated, proc.State())
}

func TestStop_IdempotentOnTerminated(t *testing.T) {
	proc, err := Start(targetConfig("true"), zap.NewNop())
	require.NoError(t, err)

	// Let the short-lived process exit on its own.
	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.Equal(t, StateTerminated, proc.State())

	// Stop on an already-terminated process is a no-op, twice over.
	proc.Stop(time.Second)
	proc.Stop(time.Second)
	assert.Equal(t, StateTerminated, proc.State())
}

func TestStop_EscalatesAfterGrace(t *testing.T) {
	// A shell that ignores SIGTERM forces the kill path.
	proc, err := Start(targetConfig("sh", "-c", "trap '' TERM; sleep 60"), zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		proc.Stop(200 * time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not escalate to kill")
	}
	assert.Equal(t, StateTerminated, proc.State())
}

func TestDebugPortFlagAppended(t *testing.T) {
	// The fixed remote-debugging flag must reach the child command line.
	proc, err := Start(targetConfig("sleep", "60"), zap.NewNop())
	require.NoError(t, err)
	defer proc.Stop(time.Second)

	assert.Contains(t, proc.cmd.Args, "--remote-debugging-port=9223")
}
