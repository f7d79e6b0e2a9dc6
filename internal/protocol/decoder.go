package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wagiedev/linebridge-go/internal/errors"
)

// DefaultMaxFollowUps bounds the follow-up count a header may declare.
const DefaultMaxFollowUps = 1 << 20

// LineStream adapts the line and error channels of a transport into a pull
// interface. The error channel must be buffered, carry at most one terminal
// error, and be closed together with the line channel when the output ends.
type LineStream struct {
	lines <-chan string
	errs  <-chan error
}

// NewLineStream creates a LineStream over transport channels.
func NewLineStream(lines <-chan string, errs <-chan error) *LineStream {
	return &LineStream{lines: lines, errs: errs}
}

// Next returns the next output line.
//
// When the output has ended, Next returns the transport's terminal error if it
// reported one, and io.EOF otherwise. The error channel is only read once the
// line channel is closed, so every line emitted before a failure is delivered.
func (s *LineStream) Next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-s.lines:
		if ok {
			return line, nil
		}

		return "", s.terminalErr()

	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// terminalErr drains the error channel after the line channel closed.
func (s *LineStream) terminalErr() error {
	if s.errs == nil {
		return io.EOF
	}

	if err, ok := <-s.errs; ok && err != nil {
		return err
	}

	return io.EOF
}

// DecoderConfig configures a Decoder.
type DecoderConfig struct {
	// RequireSequenceToken treats a header without a "[n]" token as a
	// sequence mismatch.
	RequireSequenceToken bool

	// MaxFollowUps bounds the declared follow-up count. Zero means
	// DefaultMaxFollowUps.
	MaxFollowUps int

	// Observe is called on every state transition made while decoding.
	Observe func(State)
}

// Decoder reconstructs one Response per exchange from the worker's output.
type Decoder struct {
	src          *LineStream
	requireToken bool
	maxFollowUps int
	observe      func(State)
}

// NewDecoder creates a Decoder reading from src.
func NewDecoder(src *LineStream, cfg DecoderConfig) *Decoder {
	maxFollowUps := cfg.MaxFollowUps
	if maxFollowUps <= 0 {
		maxFollowUps = DefaultMaxFollowUps
	}

	observe := cfg.Observe
	if observe == nil {
		observe = func(State) {}
	}

	return &Decoder{
		src:          src,
		requireToken: cfg.RequireSequenceToken,
		maxFollowUps: maxFollowUps,
		observe:      observe,
	}
}

// Decode reads the response to exchange seq according to rule.
//
// The header is read first and its sequence token checked against seq. The
// rule then decides how many follow-up lines belong to the response; they are
// read unconditionally, whatever their content. Every error returned by Decode
// leaves the conversation unusable.
func (d *Decoder) Decode(ctx context.Context, seq uint64, rule Rule) (*Response, error) {
	return d.DecodeToken(ctx, seq, seq, rule)
}

// DecodeToken is Decode for a command that carried its own "[token]": the
// header must echo token, while the Response still reports seq.
func (d *Decoder) DecodeToken(ctx context.Context, seq, token uint64, rule Rule) (*Response, error) {
	header, err := d.src.Next(ctx)
	if err != nil {
		if rule.MayClose && stderrors.Is(err, io.EOF) {
			return &Response{Sequence: seq, Closed: true}, nil
		}

		if ctx.Err() != nil {
			return nil, err
		}

		return nil, &errors.TruncatedResponseError{Sequence: seq, Expected: -1, Err: err}
	}

	d.observe(StateHeaderReceived)

	got, payload, hasToken := splitSequenceToken(header)
	if hasToken && got != token {
		return nil, &errors.SequenceMismatchError{Expected: token, Got: got, Header: header}
	}

	if !hasToken && d.requireToken {
		return nil, &errors.SequenceMismatchError{Expected: token, Header: header}
	}

	n := rule.FollowUps(payload)
	if n > d.maxFollowUps {
		return nil, fmt.Errorf("%w: %d follow-up lines declared, limit %d: %q",
			errors.ErrMalformedHeader, n, d.maxFollowUps, header)
	}

	resp := &Response{
		Sequence:  seq,
		Header:    payload,
		RawHeader: header,
		Lines:     make([]string, 0, n),
	}

	if n > 0 {
		d.observe(StateCollectingLines)
	}

	for len(resp.Lines) < n {
		line, err := d.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}

			return nil, &errors.TruncatedResponseError{
				Sequence: seq,
				Expected: n,
				Received: len(resp.Lines),
				Err:      err,
			}
		}

		resp.Lines = append(resp.Lines, line)
	}

	d.observe(StateComplete)

	return resp, nil
}
