package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/wagiedev/linebridge-go/internal/errors"
)

// LineWriter writes one command line to the worker.
//
// The implementation appends the trailing newline.
type LineWriter interface {
	WriteLine(ctx context.Context, line string) error
}

// SequencerConfig configures a Sequencer.
type SequencerConfig struct {
	// Rules decodes responses by command kind. Missing kinds are single-line.
	Rules RuleTable

	// SequenceTokens prefixes every command with "[n] ", n being the
	// exchange's sequence number, so the worker can echo it in the header.
	// Commands that already start with a "[n]" token are never stamped.
	SequenceTokens bool

	// RequireSequenceToken rejects headers without a "[n]" token.
	RequireSequenceToken bool

	// MaxFollowUps bounds the follow-up count a header may declare.
	MaxFollowUps int
}

// SubmitOptions tunes a single exchange.
type SubmitOptions struct {
	// Rule overrides the rule table entry for this exchange.
	Rule *Rule

	// Deadline bounds how long the caller waits. Zero means no deadline.
	Deadline time.Duration
}

// Stats is a snapshot of the sequencer's counters.
type Stats struct {
	State        State
	Submitted    uint64
	Completed    uint64
	Failed       uint64
	TimedOut     uint64
	Abandoned    uint64
	Queued       int
	LastSequence uint64
}

// exchange status values.
const (
	exchangeQueued int32 = iota
	exchangeAdmitted
	exchangeAbandoned
)

// exchange is one command waiting for, or holding, the in-flight slot.
type exchange struct {
	id        string
	command   string
	rule      Rule
	terminate bool
	status    atomic.Int32
	released  atomic.Bool
	seq       atomic.Uint64
	result    chan exchangeResult
}

type exchangeResult struct {
	resp *Response
	err  error
}

func newExchange(command string, rule Rule, terminate bool) *exchange {
	return &exchange{
		id:        ulid.Make().String(),
		command:   command,
		rule:      rule,
		terminate: terminate,
		result:    make(chan exchangeResult, 1),
	}
}

// Sequencer serializes concurrent exchanges into one ordered conversation.
//
// Exchanges are admitted strictly in submission order by a single dispatcher
// goroutine, which writes the command, decodes the full response and only
// then admits the next exchange. Each caller waits on a channel of its own,
// so a completion wakes exactly one caller.
//
// Any protocol failure breaks the conversation: queued and later exchanges
// fail with ErrProcessUnavailable.
type Sequencer struct {
	log     *slog.Logger
	writer  LineWriter
	stream  *LineStream
	decoder *Decoder
	rules   RuleTable
	stamp   bool

	mu        sync.Mutex
	queue     []*exchange
	accepting bool
	rejectErr error
	fatalErr  error
	lastSeq   uint64

	state atomic.Int32

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	timedOut  atomic.Uint64
	abandoned atomic.Uint64

	wake     chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSequencer creates a sequencer writing commands to writer and reading
// responses from stream. Call Start before submitting.
func NewSequencer(
	log *slog.Logger,
	writer LineWriter,
	stream *LineStream,
	cfg SequencerConfig,
) *Sequencer {
	s := &Sequencer{
		log:       log.With("component", "sequencer"),
		writer:    writer,
		stream:    stream,
		rules:     cfg.Rules,
		stamp:     cfg.SequenceTokens,
		rejectErr: errors.ErrNotStarted,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	s.decoder = NewDecoder(stream, DecoderConfig{
		RequireSequenceToken: cfg.RequireSequenceToken,
		MaxFollowUps:         cfg.MaxFollowUps,
		Observe:              s.setState,
	})

	return s
}

// Start launches the dispatcher. The dispatcher stops when ctx is cancelled,
// when Stop is called, after a termination exchange, or when the
// conversation breaks.
func (s *Sequencer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.accepting = true
	s.rejectErr = nil
	s.mu.Unlock()

	s.wg.Go(func() {
		s.run(ctx)
	})

	s.log.Debug("Sequencer started")
}

// Stop cancels the dispatcher, waits for it to exit and fails every exchange
// still queued. It's safe to call Stop multiple times.
func (s *Sequencer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		s.wg.Wait()
		s.shutdown(errors.ErrSequencerStopped)
		s.log.Debug("Sequencer stopped")
	})
}

// Done returns a channel that is closed when the dispatcher exits.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// FatalError returns the error that broke the conversation, if any.
func (s *Sequencer) FatalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fatalErr
}

// State returns the current conversation state.
func (s *Sequencer) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the sequencer's counters.
func (s *Sequencer) Stats() Stats {
	s.mu.Lock()
	queued := len(s.queue)
	lastSeq := s.lastSeq
	s.mu.Unlock()

	return Stats{
		State:        s.State(),
		Submitted:    s.submitted.Load(),
		Completed:    s.completed.Load(),
		Failed:       s.failed.Load(),
		TimedOut:     s.timedOut.Load(),
		Abandoned:    s.abandoned.Load(),
		Queued:       queued,
		LastSequence: lastSeq,
	}
}

// ValidateCommand reports whether command can be framed as a single line.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: empty command", errors.ErrInvalidCommand)
	}

	if strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("%w: command contains a line break", errors.ErrInvalidCommand)
	}

	return nil
}

// Submit queues a command and waits for its complete response.
//
// The caller is suspended until every earlier exchange has completed, its
// command has been written and its response decoded. When ctx (or
// opts.Deadline) expires first, Submit returns ErrTimeout; an exchange that
// was already admitted keeps the in-flight slot until the worker answers,
// and its response is discarded. An exchange still queued when the caller
// gives up is dropped: its command is never written, so ErrTimeout from a
// queued exchange guarantees the worker did not execute it.
func (s *Sequencer) Submit(ctx context.Context, command string, opts SubmitOptions) (*Response, error) {
	if err := ValidateCommand(command); err != nil {
		return nil, err
	}

	rule := s.rules.Lookup(command)
	if opts.Rule != nil {
		rule = *opts.Rule
	}

	if opts.Deadline > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	ex := newExchange(command, rule, false)
	if err := s.enqueue(ex); err != nil {
		return nil, err
	}

	return s.await(ctx, ex)
}

// SubmitTermination queues the termination command as an ordinary exchange
// and closes admission behind it. Exchanges queued earlier still run; later
// submits fail with ErrProcessUnavailable. The worker may answer the
// termination command or simply close its output.
func (s *Sequencer) SubmitTermination(ctx context.Context, command string) (*Response, error) {
	if err := ValidateCommand(command); err != nil {
		return nil, err
	}

	ex := newExchange(command, Rule{CountField: -1, MayClose: true}, true)
	if err := s.enqueue(ex); err != nil {
		return nil, err
	}

	return s.await(ctx, ex)
}

// enqueue appends ex to the pending queue and wakes the dispatcher.
func (s *Sequencer) enqueue(ex *exchange) error {
	s.mu.Lock()

	if !s.accepting {
		reason := s.rejectErr
		s.mu.Unlock()

		return fmt.Errorf("%w: %w", errors.ErrProcessUnavailable, reason)
	}

	if ex.terminate {
		s.accepting = false
		s.rejectErr = errors.ErrBridgeClosed
	}

	s.queue = append(s.queue, ex)
	depth := len(s.queue)
	s.mu.Unlock()

	s.submitted.Add(1)
	s.log.Debug("Exchange queued", "exchange_id", ex.id, "queue_depth", depth)

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return nil
}

// await blocks until ex has a result or ctx is done.
func (s *Sequencer) await(ctx context.Context, ex *exchange) (*Response, error) {
	select {
	case res := <-ex.result:
		return res.resp, res.err

	case <-ctx.Done():
		// Prefer a result that raced with the deadline.
		select {
		case res := <-ex.result:
			return res.resp, res.err
		default:
		}

		if ex.status.CompareAndSwap(exchangeQueued, exchangeAbandoned) {
			s.abandoned.Add(1)
			s.log.Debug("Exchange abandoned before admission", "exchange_id", ex.id)
		} else {
			ex.released.Store(true)
			s.log.Warn("Caller released while exchange in flight",
				"exchange_id", ex.id,
				"seq", ex.seq.Load(),
			)
		}

		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.timedOut.Add(1)

			return nil, fmt.Errorf("%w: %w", errors.ErrTimeout, ctx.Err())
		}

		return nil, ctx.Err()
	}
}

// next pops the first exchange whose caller is still waiting.
func (s *Sequencer) next() *exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 {
		ex := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]

		if ex.status.CompareAndSwap(exchangeQueued, exchangeAdmitted) {
			s.lastSeq++
			ex.seq.Store(s.lastSeq)

			return ex
		}
	}

	return nil
}

// run is the dispatcher loop. It owns the in-flight slot.
func (s *Sequencer) run(ctx context.Context) {
	defer close(s.done)
	defer s.log.Debug("Dispatcher stopped")

	for {
		ex := s.next()
		if ex == nil {
			if !s.idle(ctx) {
				return
			}

			continue
		}

		if stop := s.serve(ctx, ex); stop {
			return
		}
	}
}

// idle waits for the next exchange while watching the worker output.
// It returns false when the dispatcher must exit.
func (s *Sequencer) idle(ctx context.Context) bool {
	select {
	case <-s.wake:
		return true

	case line, ok := <-s.stream.lines:
		if ok {
			s.fail(fmt.Errorf("%w: %q", errors.ErrUnexpectedOutput, line))

			return false
		}

		s.fail(fmt.Errorf("worker output closed: %w", s.stream.terminalErr()))

		return false

	case <-ctx.Done():
		s.shutdown(ctx.Err())

		return false
	}
}

// serve runs one exchange in the in-flight slot. It returns true when the
// dispatcher must exit.
func (s *Sequencer) serve(ctx context.Context, ex *exchange) bool {
	seq := ex.seq.Load()
	log := s.log.With("exchange_id", ex.id, "seq", seq)

	// A command that already starts with "[n]" is written as is and its
	// header must echo n.
	line := ex.command
	token := seq

	if own, _, ok := splitSequenceToken(ex.command); ok {
		token = own
	} else if s.stamp {
		line = stampCommand(seq, ex.command)
	}

	s.setState(StateCommandSent)
	log.Debug("Writing command", "kind", CommandKind(ex.command))

	if err := s.writer.WriteLine(ctx, line); err != nil {
		err = fmt.Errorf("%w: write command: %w", errors.ErrProcessUnavailable, err)
		s.fail(err)
		s.deliver(ex, nil, err)

		return true
	}

	resp, err := s.decoder.DecodeToken(ctx, seq, token, ex.rule)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", errors.ErrProcessUnavailable, err)
			s.shutdown(err)
			s.deliver(ex, nil, err)

			return true
		}

		log.Error("Exchange failed", "error", err)
		s.fail(err)
		s.deliver(ex, nil, err)

		return true
	}

	log.Debug("Exchange complete", "follow_ups", len(resp.Lines))
	s.deliver(ex, resp, nil)
	s.setState(StateIdle)

	if ex.terminate {
		log.Info("Termination exchange complete", "closed", resp.Closed)

		return true
	}

	return false
}

// deliver hands the result to the exchange's caller. The result channel is
// buffered, so a released caller never blocks the dispatcher.
func (s *Sequencer) deliver(ex *exchange, resp *Response, err error) {
	if err != nil {
		s.failed.Add(1)
	} else {
		s.completed.Add(1)
	}

	if ex.released.Load() {
		s.log.Debug("Discarding result for released caller", "exchange_id", ex.id, "error", err)
	}

	ex.result <- exchangeResult{resp: resp, err: err}
}

// fail breaks the conversation: the first error is kept as the fatal error
// and every queued exchange is failed.
func (s *Sequencer) fail(err error) {
	s.mu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
		s.rejectErr = err
	}
	s.mu.Unlock()

	s.setState(StateBroken)
	s.log.Error("Conversation broken", "error", err)
	s.shutdown(err)
}

// shutdown closes admission and fails every queued exchange with
// ErrProcessUnavailable wrapping reason.
func (s *Sequencer) shutdown(reason error) {
	s.mu.Lock()

	if s.accepting {
		s.rejectErr = reason
	}

	s.accepting = false
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, ex := range queued {
		if ex.status.CompareAndSwap(exchangeQueued, exchangeAdmitted) {
			s.deliver(ex, nil, fmt.Errorf("%w: %w", errors.ErrProcessUnavailable, reason))
		}
	}
}

func (s *Sequencer) setState(state State) {
	if s.State() == StateBroken {
		return
	}

	s.state.Store(int32(state))
}
