// Package eventloop provides the single-threaded cooperative scheduler every
// emulated request runs on.
//
// All suspension points of an emulated request are explicit continuations
// posted to a Loop. A Loop never blocks on I/O itself: work that must block
// (reading a streamed body, performing a real network round trip) runs on its
// own goroutine and posts its results back with Post.
//
// Two ways to drive a Loop:
//
//   - Run(ctx) processes tasks on the calling goroutine until ctx is done.
//     The intercept engine does this on a dedicated goroutine.
//   - RunPending() drains the queue once and returns. Tests combine this with
//     a ManualClock to step through timers deterministically:
//
//	clock := eventloop.NewManualClock()
//	loop := eventloop.New(eventloop.WithClock(clock))
//	loop.AfterFunc(50*time.Millisecond, fire)
//	clock.Advance(50 * time.Millisecond)
//	loop.RunPending() // fire runs here
package eventloop
