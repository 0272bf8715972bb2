// Package signal implements subscribable event streams.
//
// A Channel owns a set of handlers and one delivery goroutine. Events handed
// to Deliver are copied into a private arena, queued, and passed to every
// handler that was registered when the event arrived and is still
// registered when its turn comes. Handlers of one channel run one at a time
// in event order, never on the goroutine that delivered the event.
//
//	ch, err := svc.Subscribe(ctx, "signal")
//	id, err := ch.AddHandler(func(payload []*value.Value) {
//		key, _ := payload[0].ToString()
//		fmt.Println("changed:", key)
//	})
//	...
//	ch.RemoveHandler(id)
//
// Payload values are released once all handlers returned; a handler that
// wants to keep one must Clone it.
package signal
