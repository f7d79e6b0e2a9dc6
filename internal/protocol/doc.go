// Package protocol implements the ordered command/response conversation with
// the worker process.
//
// The protocol package provides a Sequencer that turns many concurrent
// callers into one conversation, and a Decoder that splits the worker's
// output back into one Response per exchange.
//
// The Sequencer handles:
//   - FIFO admission of exchanges into a single in-flight slot
//   - Sequence numbering and "[n] " command stamping
//   - Caller deadlines that release the caller but never the slot
//   - Breaking the conversation on protocol corruption
//
// The Decoder handles:
//   - Sequence token stripping and verification
//   - Follow-up line counts described by a per-command Rule
//   - Truncation detection when the output ends early
//
// Example usage:
//
//	lines, errs := transport.ReadLines(ctx)
//	seq := protocol.NewSequencer(log, transport, protocol.NewLineStream(lines, errs),
//	    protocol.SequencerConfig{Rules: protocol.TicketSystemRules(), SequenceTokens: true})
//	seq.Start(ctx)
//
//	resp, err := seq.Submit(ctx, "query_order -u alice", protocol.SubmitOptions{Deadline: 5 * time.Second})
package protocol
