// Package multicast shares one physical iteration of a pipeline among many
// independent consumers.
//
// Publish wraps a source pipeline in a Connector. Every iterator obtained from
// the connector is a cursor into a shared, append-only log of the records the
// source has produced so far. A cursor that is behind the log reads cached
// records; a cursor at the end of the log asks the upstream driver to advance
// the source. Concurrent requests for the same index are coalesced, so the
// source is pulled exactly once per log entry no matter how many cursors are
// waiting.
//
// Cursors start at the log length at the moment they are created: cursors
// created before any consumption see the whole sequence, late joiners only see
// what is produced after they joined. Once the source completes or fails, the
// terminal record is replayed to every cursor that reaches it, and failures
// are delivered as the identical error value.
//
// PublishWith is the selector form: each iteration builds a fresh connector,
// hands its pipeline to a selector and iterates the derived pipeline, tearing
// the connector down when the derived pipeline ends.
//
// # Usage
//
//	conn := multicast.Publish(src, multicast.WithLogger(log))
//	defer conn.Close()
//
//	a := conn.Iter(ctx)
//	b := conn.Iter(ctx)
//	defer a.Close()
//	defer b.Close()
//
//	pairs := multicast.PublishWith(src, func(shared *pipeline.Pipeline[int]) (*pipeline.Pipeline[int], error) {
//	    return pipeline.Zip(shared, shared, add), nil
//	})
//
// Shared state lives until the connector and every cursor it handed out are
// closed. A cursor that is dropped without Close keeps the source connection
// open.
package multicast
