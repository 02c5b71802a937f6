// Package broadcast provides a type-safe one-to-many fan-out of
// messages to subscribers, used for pushing job progress events to
// zero or more observers.
//
// Sends are non-blocking: a subscriber whose buffer is full is dropped
// rather than allowed to stall the producer, since a progress channel
// is an optimization and every consumer has a pull-based fallback.
//
// Basic usage:
//
//	b := broadcast.NewMemoryBroadcaster[int](16)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	go func() {
//		for msg := range sub.Receive() {
//			fmt.Println(msg.Data)
//		}
//	}()
//
//	b.Broadcast(broadcast.Message[int]{Data: 42})
package broadcast
