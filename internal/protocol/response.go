package protocol

import (
	"strconv"
	"strings"
)

// Response is the complete answer to one exchange.
type Response struct {
	// Sequence is the number the bridge assigned to the exchange.
	Sequence uint64

	// Header is the header line with its sequence token stripped.
	Header string

	// RawHeader is the header line exactly as the worker emitted it.
	RawHeader string

	// Lines are the follow-up lines declared by the header, unaltered.
	Lines []string

	// Closed reports that the worker closed its output instead of answering.
	// Only a termination exchange can complete this way.
	Closed bool
}

// All returns the header followed by the follow-up lines.
func (r *Response) All() []string {
	if r.Closed {
		return nil
	}

	all := make([]string, 0, len(r.Lines)+1)
	all = append(all, r.Header)

	return append(all, r.Lines...)
}

// splitSequenceToken strips a leading "[n]" token from a header line.
// Only a positive decimal integer between brackets counts as a token; any
// other leading text is left in the payload.
func splitSequenceToken(header string) (seq uint64, payload string, ok bool) {
	if !strings.HasPrefix(header, "[") {
		return 0, header, false
	}

	end := strings.IndexByte(header, ']')
	if end < 2 {
		return 0, header, false
	}

	n, err := strconv.ParseUint(header[1:end], 10, 64)
	if err != nil || n == 0 {
		return 0, header, false
	}

	return n, strings.TrimPrefix(header[end+1:], " "), true
}

// stampCommand prefixes a command with its sequence token.
func stampCommand(seq uint64, command string) string {
	return "[" + strconv.FormatUint(seq, 10) + "] " + command
}
