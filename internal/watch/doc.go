// Package watch waits for order slots to be published.
//
// Stores are passive, so publication is observed by polling. Each target
// is polled immediately and then with an interval that grows by Multiplier
// after every empty read, capped at MaxInterval, plus random jitter so
// many waiters do not poll in lockstep:
//
//	rec, err := watch.Wait(ctx, st, watch.Target{Seed: seed, Slot: store.SlotBuyer}, watch.Config{})
//
// Poller does the same for many targets at once from a single goroutine.
package watch
