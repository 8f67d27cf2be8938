// Package calcq provides a bounded asynchronous dispatch pipeline for
// aggregate calculations. Producers submit calculation requests against an
// asset; a background worker computes the aggregate (currently the arithmetic
// mean of a signal column), records a notification, and delivers the result
// to the requesting user in real time, best-effort.
//
// Calcq is designed as a library, not a service. Two transports implement the
// same pipeline:
//
//   - the in-process path: a capacity-limited queue (package queue) drained
//     by a single worker loop (package worker), wired together by the
//     Dispatcher in this package;
//   - the broker path: durable RabbitMQ queues with bounded-depth publishing,
//     prefetch-1 consumption and explicit acknowledgement (package broker),
//     for running the calculation side in a separate process.
//
// # Quick Start
//
//	d, err := calcq.New(
//	    calcq.WithSignalStore(signals),
//	    calcq.WithNotificationStore(notifications),
//	    calcq.WithQueueCapacity(3),
//	)
//	if err != nil { ... }
//	d.Start(ctx)
//	defer d.Stop(ctx)
//
//	req, err := d.Submit(ctx, calcq.SubmitInput{
//	    AssetID:    assetID,
//	    ColumnName: "Strength",
//	    UserID:     userID,
//	})
//
// A Submit that cannot be admitted within the configured patience fails with
// ErrQueueFull, which callers should map to a retryable rejection.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package calcq
