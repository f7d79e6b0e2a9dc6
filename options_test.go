package linebridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyBridgeOptions(t *testing.T) {
	rules := RuleTable{"query": Counted(0)}

	options := applyBridgeOptions([]Option{
		WithLogger(NopLogger()),
		WithWorkerPath("/opt/worker"),
		WithArgs("-v", "--data", "/tmp"),
		WithDir("/srv"),
		WithEnv(map[string]string{"A": "1"}),
		WithEnv(map[string]string{"B": "2", "A": "3"}),
		WithLockFile("/tmp/worker.lock"),
		WithRules(rules),
		WithSequenceTokens(true),
		WithRequireSequenceToken(true),
		WithMaxLineBytes(4096),
		WithMaxFollowUpLines(100),
		WithTerminationCommand("quit"),
		WithGracePeriod(2*time.Second),
		WithDefaultTimeout(time.Second),
	})

	require.NotNil(t, options.Logger)
	require.Equal(t, "/opt/worker", options.WorkerPath)
	require.Equal(t, []string{"-v", "--data", "/tmp"}, options.Args)
	require.Equal(t, "/srv", options.Dir)
	require.Equal(t, map[string]string{"A": "3", "B": "2"}, options.Env)
	require.Equal(t, "/tmp/worker.lock", options.LockFile)
	require.Equal(t, rules, options.Rules)
	require.False(t, options.DisableSequenceTokens)
	require.True(t, options.RequireSequenceToken)
	require.Equal(t, 4096, options.MaxLineBytes)
	require.Equal(t, 100, options.MaxFollowUpLines)
	require.Equal(t, "quit", options.TerminationCommand)
	require.Equal(t, 2*time.Second, options.GracePeriod)
	require.Equal(t, time.Second, options.DefaultTimeout)
}

func TestWithOptions(t *testing.T) {
	base := &BridgeOptions{
		WorkerPath:            "/opt/worker",
		DisableSequenceTokens: true,
		Env:                   map[string]string{"A": "1"},
	}

	options := applyBridgeOptions([]Option{
		WithOptions(base),
		WithEnv(map[string]string{"B": "2"}),
		WithWorkerPath("/usr/local/bin/worker"),
	})

	require.Equal(t, "/usr/local/bin/worker", options.WorkerPath)
	require.True(t, options.DisableSequenceTokens)
	require.Equal(t, map[string]string{"A": "1", "B": "2"}, options.Env)

	// The base is not modified.
	require.Equal(t, "/opt/worker", base.WorkerPath)
	require.Equal(t, map[string]string{"A": "1"}, base.Env)

	require.NotPanics(t, func() {
		applyBridgeOptions([]Option{WithOptions(nil)})
	})
}

func TestWithSequenceTokens(t *testing.T) {
	require.False(t, applyBridgeOptions(nil).DisableSequenceTokens)
	require.True(t, applyBridgeOptions([]Option{WithSequenceTokens(false)}).DisableSequenceTokens)
	require.False(t, applyBridgeOptions([]Option{
		WithSequenceTokens(false),
		WithSequenceTokens(true),
	}).DisableSequenceTokens)
}

func TestApplySubmitOptions(t *testing.T) {
	options := applySubmitOptions(nil)
	require.Nil(t, options.Rule)
	require.Zero(t, options.Deadline)

	options = applySubmitOptions([]SubmitOption{
		WithRule(Fixed(3, "-1")),
		WithDeadline(500 * time.Millisecond),
	})

	require.NotNil(t, options.Rule)
	require.Equal(t, Fixed(3, "-1"), *options.Rule)
	require.Equal(t, 500*time.Millisecond, options.Deadline)
}
