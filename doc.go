// Package linebridge drives a line-oriented command-line worker as a
// request/response service.
//
// The worker reads one command per line on stdin and answers on stdout with
// a header line followed by a number of follow-up lines that depends on the
// command. linebridge frames those answers into complete responses and
// serializes exchanges so that concurrent callers never interleave: commands
// are written in submission order, at most one is in flight at a time, and
// each caller receives exactly the response to its own command.
//
// # Basic Usage
//
// Use NewBridge, or the WithBridge helper for automatic lifecycle management:
//
//	err := linebridge.WithBridge(ctx, func(b linebridge.Bridge) error {
//	    resp, err := b.Submit(ctx, "query_ticket -s A -t B -d 06-01")
//	    if err != nil {
//	        return err
//	    }
//	    for _, line := range resp.Lines {
//	        fmt.Println(line)
//	    }
//	    return nil
//	},
//	    linebridge.WithWorkerPath("./train-ticket-system"),
//	    linebridge.WithLogger(slog.Default()),
//	)
//
// # Response Framing
//
// How many follow-up lines a header announces is decided by a Rule looked up
// by the command's first token. TicketSystemRules covers the train ticket
// system; WithRules replaces the table and WithRule overrides it for one
// exchange.
//
// # Error Handling
//
// Failures that break the conversation, such as a truncated response or a
// mismatched sequence token, move the bridge to StateBroken: every queued and
// later exchange fails with ErrProcessUnavailable and the worker is stopped.
// A caller whose deadline elapses gets ErrTimeout while the bridge keeps
// running.
//
//	resp, err := b.Submit(ctx, "query_order -u alice", linebridge.WithDeadline(time.Second))
//	if errors.Is(err, linebridge.ErrTimeout) {
//	    // The worker is slow; the bridge is still usable.
//	}
//
//	var truncated *linebridge.TruncatedResponseError
//	if errors.As(err, &truncated) {
//	    fmt.Printf("got %d of %d lines\n", truncated.Received, truncated.Expected)
//	}
//
// # Shutdown
//
// Shutdown queues the termination command behind every exchange already
// submitted, closes the worker's input once it has been answered, and kills
// the worker if it outlives the grace period. Close kills it immediately.
package linebridge
