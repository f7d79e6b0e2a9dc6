package linebridge

import (
	"github.com/wagiedev/linebridge-go/internal/config"
	"github.com/wagiedev/linebridge-go/internal/protocol"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// BridgeOptions configures the bridge and the worker process it drives.
type BridgeOptions = config.Options

// ConfigFile is the TOML configuration file layout used by the linebridge CLI.
type ConfigFile = config.File

// ===== Responses =====

// Response is the complete answer to one exchange.
type Response = protocol.Response

// Stats is a snapshot of the bridge's exchange counters.
type Stats = protocol.Stats

// ===== Rules =====

// Rule decides how many follow-up lines follow a header.
type Rule = protocol.Rule

// RuleTable maps command kinds to rules. Unlisted kinds are single-line.
type RuleTable = protocol.RuleTable

// SingleLine is the rule for commands answered by exactly one line.
func SingleLine() Rule { return protocol.SingleLine() }

// Counted reads the follow-up count from header token field.
func Counted(field int) Rule { return protocol.Counted(field) }

// Fixed expects n follow-up lines unless the header is one of terminal.
func Fixed(n int, terminal ...string) Rule { return protocol.Fixed(n, terminal...) }

// TicketSystemRules returns the rule table for the train ticket system.
func TicketSystemRules() RuleTable { return protocol.TicketSystemRules() }

// CommandKind returns the first whitespace-delimited token of a command.
func CommandKind(command string) string { return protocol.CommandKind(command) }

// ===== Conversation State =====

// State is the conversation state of a bridge.
type State = protocol.State

const (
	// StateIdle means no exchange is in flight.
	StateIdle = protocol.StateIdle
	// StateCommandSent means a command was written and its header is awaited.
	StateCommandSent = protocol.StateCommandSent
	// StateHeaderReceived means the header arrived and was interpreted.
	StateHeaderReceived = protocol.StateHeaderReceived
	// StateCollectingLines means follow-up lines are being read.
	StateCollectingLines = protocol.StateCollectingLines
	// StateComplete means the last response was delivered.
	StateComplete = protocol.StateComplete
	// StateBroken means the conversation failed and the worker is gone.
	StateBroken = protocol.StateBroken
)
