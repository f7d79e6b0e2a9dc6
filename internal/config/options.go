package config

import (
	"log/slog"
	"time"

	"github.com/wagiedev/linebridge-go/internal/protocol"
)

// Defaults applied by Options.ApplyDefaults.
const (
	DefaultTerminationCommand = "exit"
	DefaultGracePeriod        = 5 * time.Second
	DefaultMaxLineBytes       = 1 << 20
)

// Options configures the bridge and the worker process it drives.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// WorkerPath is the explicit path to the worker binary.
	// If empty, the binary is searched in PATH and the working directory.
	WorkerPath string

	// Args are extra arguments passed to the worker.
	Args []string

	// Dir sets the working directory for the worker process.
	Dir string

	// Env provides additional environment variables for the worker process.
	Env map[string]string

	// Stderr is a callback function for handling worker stderr output.
	Stderr func(string)

	// Rules maps command kinds to follow-up line rules.
	// If nil, the train ticket system rules are used.
	Rules protocol.RuleTable

	// DisableSequenceTokens stops the bridge from prefixing commands with
	// "[n] ". By default every command not already carrying a "[n]" token is
	// stamped with its exchange's sequence number, which the worker reads as
	// the command timestamp and echoes in its header.
	DisableSequenceTokens bool

	// RequireSequenceToken rejects headers without a "[n]" token.
	RequireSequenceToken bool

	// TerminationCommand is submitted by Shutdown. Defaults to "exit".
	TerminationCommand string

	// GracePeriod bounds how long Shutdown waits for the worker to exit
	// after the termination exchange before killing it. Defaults to 5s.
	GracePeriod time.Duration

	// DefaultTimeout applies to every exchange submitted without its own
	// deadline. Zero means no deadline.
	DefaultTimeout time.Duration

	// MaxLineBytes bounds a single worker output line. Defaults to 1 MiB.
	MaxLineBytes int

	// MaxFollowUpLines bounds the follow-up count a header may declare.
	// Zero means protocol.DefaultMaxFollowUps.
	MaxFollowUpLines int

	// LockFile, when set, is locked for the bridge's lifetime so that only
	// one bridge drives the worker's data directory at a time.
	LockFile string

	// Transport allows injecting a custom transport implementation.
	// If nil, the default ProcessTransport is created automatically.
	Transport Transport `toml:"-"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (o *Options) ApplyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	if o.Rules == nil {
		o.Rules = protocol.TicketSystemRules()
	}

	if o.TerminationCommand == "" {
		o.TerminationCommand = DefaultTerminationCommand
	}

	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}

	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = DefaultMaxLineBytes
	}
}

// SequencerConfig derives the protocol settings from the options.
func (o *Options) SequencerConfig() protocol.SequencerConfig {
	return protocol.SequencerConfig{
		Rules:                o.Rules,
		SequenceTokens:       !o.DisableSequenceTokens,
		RequireSequenceToken: o.RequireSequenceToken,
		MaxFollowUps:         o.MaxFollowUpLines,
	}
}
