// Package bridge implements the Bridge that owns one worker process and the
// ordered conversation with it.
//
// The bridge package ties the process transport to the protocol Sequencer
// and manages the lifecycle around them:
//   - Start acquires the optional worker lock, starts the transport and the
//     Sequencer
//   - Submit runs one exchange, applying the default timeout
//   - Shutdown routes the termination command through the Sequencer, then
//     waits for the worker to exit before killing it
//   - Close tears everything down immediately
//
// A broken conversation kills the worker: nothing it writes afterwards can be
// attributed to an exchange.
package bridge
