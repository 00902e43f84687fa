// Package pipeline provides the hop chain that relays tainted values from an
// entry operation toward the dispatcher.
//
// # Hops
//
// A hop is pure pass-through: it may suspend, but it never transforms or
// sanitizes. The chain verifies this and fails with a MutationError if a hop
// hands back a different value.
//
//   - Relay: synchronous forwarder
//   - AsyncHop: hands the value to a scheduled continuation and suspends
//     until it resumes
//
// # Ordering and failure
//
// Hops run in ascending Order, one at a time, so resumption never reorders a
// request's own chain. A failure in any hop ends the chain with a
// *domain.ChainFailure naming the hop. A context deadline or cancellation
// observed at a suspension point is reported the same way.
//
//	chain := pipeline.NewChain(pipeline.ChainConfig{Hops: []pipeline.HopConfig{
//		{Name: "forwarder", Order: 1, Hop: pipeline.NewRelay("forwarder")},
//		{Name: "async", Order: 2, Hop: pipeline.NewAsyncHop("async", 10*time.Millisecond)},
//	}})
//	out, err := chain.Forward(ctx, domain.Tainted("a;b"))
package pipeline
