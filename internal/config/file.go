package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/wagiedev/linebridge-go/internal/protocol"
)

//go:embed sample_config.toml
var sampleConfig string

// Rule presets accepted by bridge.rules_preset.
const (
	RulesPresetTicketSystem = "ticket-system"
	RulesPresetNone         = "none"
)

// WorkerFile describes how the worker process is launched.
type WorkerFile struct {
	Path     string            `toml:"path"`
	Args     []string          `toml:"args"`
	Dir      string            `toml:"dir"`
	Env      map[string]string `toml:"env"`
	LockFile string            `toml:"lock_file"`
}

// BridgeFile holds protocol and lifecycle settings.
type BridgeFile struct {
	SequenceTokens       bool   `toml:"sequence_tokens"`
	RequireSequenceToken bool   `toml:"require_sequence_token"`
	TerminationCommand   string `toml:"termination_command"`
	GracePeriod          string `toml:"grace_period"`
	DefaultTimeout       string `toml:"default_timeout"`
	MaxLineBytes         int    `toml:"max_line_bytes"`
	MaxFollowUpLines     int    `toml:"max_follow_up_lines"`
	RulesPreset          string `toml:"rules_preset"`
}

// LoggingFile configures the logger built by File.Logger.
type LoggingFile struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// RuleFile describes the follow-up lines of one command kind.
// CountField selects a header field holding the count; when it is absent
// FixedLines applies.
type RuleFile struct {
	CountField *int     `toml:"count_field"`
	FixedLines int      `toml:"fixed_lines"`
	Terminal   []string `toml:"terminal"`
	MayClose   bool     `toml:"may_close"`
}

// File is the on-disk TOML configuration.
type File struct {
	Worker  WorkerFile          `toml:"worker"`
	Bridge  BridgeFile          `toml:"bridge"`
	Logging LoggingFile         `toml:"logging"`
	Rules   map[string]RuleFile `toml:"rules"`
}

// DefaultFile returns the configuration used when no file is given.
func DefaultFile() File {
	return File{
		Bridge: BridgeFile{
			SequenceTokens:     true,
			TerminationCommand: DefaultTerminationCommand,
			GracePeriod:        DefaultGracePeriod.String(),
			MaxLineBytes:       DefaultMaxLineBytes,
			RulesPreset:        RulesPresetTicketSystem,
		},
		Logging: LoggingFile{
			Level:  "info",
			Format: "text",
		},
	}
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// LoadFile reads a TOML configuration on top of DefaultFile.
// Unknown keys are rejected.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return DecodeFile(f)
}

// DecodeFile decodes a TOML configuration from r on top of DefaultFile.
func DecodeFile(r io.Reader) (*File, error) {
	cfg := DefaultFile()

	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("parse config: %s", strict.String())
		}

		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports the first invalid setting.
func (f *File) Validate() error {
	if _, err := parseDuration("bridge.grace_period", f.Bridge.GracePeriod); err != nil {
		return err
	}

	if _, err := parseDuration("bridge.default_timeout", f.Bridge.DefaultTimeout); err != nil {
		return err
	}

	if f.Bridge.MaxLineBytes < 0 {
		return fmt.Errorf("bridge.max_line_bytes must not be negative, got %d", f.Bridge.MaxLineBytes)
	}

	if f.Bridge.MaxFollowUpLines < 0 {
		return fmt.Errorf("bridge.max_follow_up_lines must not be negative, got %d", f.Bridge.MaxFollowUpLines)
	}

	switch f.Bridge.RulesPreset {
	case "", RulesPresetTicketSystem, RulesPresetNone:
	default:
		return fmt.Errorf("bridge.rules_preset: unknown preset %q", f.Bridge.RulesPreset)
	}

	if strings.ContainsAny(f.Bridge.TerminationCommand, "\r\n") {
		return errors.New("bridge.termination_command must be a single line")
	}

	for kind, rule := range f.Rules {
		if rule.CountField != nil && *rule.CountField < 0 {
			return fmt.Errorf("rules.%s.count_field must not be negative", kind)
		}

		if rule.FixedLines < 0 {
			return fmt.Errorf("rules.%s.fixed_lines must not be negative", kind)
		}
	}

	if _, err := parseLevel(f.Logging.Level); err != nil {
		return err
	}

	switch strings.ToLower(f.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", f.Logging.Format)
	}

	return nil
}

// RuleTable builds the rule table: the preset first, then the per-kind
// entries of the file.
func (f *File) RuleTable() protocol.RuleTable {
	table := protocol.RuleTable{}

	if f.Bridge.RulesPreset != RulesPresetNone {
		for kind, rule := range protocol.TicketSystemRules() {
			table[kind] = rule
		}
	}

	for kind, rf := range f.Rules {
		rule := protocol.Fixed(rf.FixedLines, rf.Terminal...)
		if rf.CountField != nil {
			rule = protocol.Counted(*rf.CountField)
			rule.Terminal = rf.Terminal
		}

		rule.MayClose = rf.MayClose
		table[kind] = rule
	}

	return table
}

// Options converts the file into bridge options. Logger, Stderr and
// Transport are left for the caller.
func (f *File) Options() (*Options, error) {
	grace, err := parseDuration("bridge.grace_period", f.Bridge.GracePeriod)
	if err != nil {
		return nil, err
	}

	timeout, err := parseDuration("bridge.default_timeout", f.Bridge.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	return &Options{
		WorkerPath:            f.Worker.Path,
		Args:                  f.Worker.Args,
		Dir:                   f.Worker.Dir,
		Env:                   f.Worker.Env,
		LockFile:              f.Worker.LockFile,
		Rules:                 f.RuleTable(),
		DisableSequenceTokens: !f.Bridge.SequenceTokens,
		RequireSequenceToken:  f.Bridge.RequireSequenceToken,
		TerminationCommand:    f.Bridge.TerminationCommand,
		GracePeriod:           grace,
		DefaultTimeout:        timeout,
		MaxLineBytes:          f.Bridge.MaxLineBytes,
		MaxFollowUpLines:      f.Bridge.MaxFollowUpLines,
	}, nil
}

// Logger builds a slog logger writing to w according to the [logging]
// section.
func (f *File) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(f.Logging.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(f.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, value)
	}

	return d, nil
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level

	if value == "" {
		return slog.LevelInfo, nil
	}

	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}

	return level, nil
}
