package protocol

import (
	"slices"
	"strconv"
	"strings"
)

// Rule describes how many lines complete the response to one command family.
//
// Header forms understood by a Rule:
//
//	[12] 0            single line (CountField < 0, FixedLines == 0)
//	[12] 3            CountField 0: three follow-up lines
//	[12] -1           CountField 0: negative count, header is the whole answer
//	[12] G1 x -> y    FixedLines 1: one follow-up line
type Rule struct {
	// CountField is the zero-based index of the header token holding the
	// follow-up line count, counted after the sequence token is stripped.
	// A negative value means the header carries no count.
	CountField int

	// FixedLines is the number of follow-up lines when CountField is negative.
	FixedLines int

	// Terminal lists header payloads that complete the response on their own,
	// whatever CountField or FixedLines say.
	Terminal []string

	// MayClose allows the worker to close its output instead of answering.
	// Only the termination exchange uses it.
	MayClose bool
}

// SingleLine is the rule for commands answered by exactly one line.
func SingleLine() Rule {
	return Rule{CountField: -1}
}

// Counted is the rule for commands whose header states the follow-up count
// at the given token index.
func Counted(field int) Rule {
	return Rule{CountField: field}
}

// Fixed is the rule for commands answered by a header plus n lines unless the
// header is one of the terminal payloads.
func Fixed(n int, terminal ...string) Rule {
	return Rule{CountField: -1, FixedLines: n, Terminal: terminal}
}

// FollowUps returns the number of lines that must follow the given header
// payload. A count that is missing, non-numeric or negative yields zero.
func (r Rule) FollowUps(payload string) int {
	if slices.Contains(r.Terminal, strings.TrimSpace(payload)) {
		return 0
	}

	if r.CountField < 0 {
		return max(r.FixedLines, 0)
	}

	fields := strings.Fields(payload)
	if r.CountField >= len(fields) {
		return 0
	}

	n, err := strconv.Atoi(fields[r.CountField])
	if err != nil || n < 0 {
		return 0
	}

	return n
}

// RuleTable maps a command kind (the first token of a command, after any
// "[n]" token) to its rule.
type RuleTable map[string]Rule

// Lookup returns the rule for the command's kind, or SingleLine when the
// table has no entry.
func (t RuleTable) Lookup(command string) Rule {
	if rule, ok := t[CommandKind(command)]; ok {
		return rule
	}

	return SingleLine()
}

// CommandKind returns the first whitespace-separated token of a command,
// skipping a leading "[n]" token the caller stamped itself.
func CommandKind(command string) string {
	_, command, _ = splitSequenceToken(strings.TrimSpace(command))
	kind, _, _ := strings.Cut(strings.TrimSpace(command), " ")

	return kind
}

// TicketSystemRules returns the rule table for the train ticket worker.
//
// query_train is absent on purpose: its station count is not part of the
// header, so callers pass Fixed(stations, "-1") when they submit it.
func TicketSystemRules() RuleTable {
	return RuleTable{
		"query_ticket":   Counted(0),
		"query_order":    Counted(0),
		"query_transfer": Fixed(1, "0", "-1"),
	}
}
