// Package dispatch runs engine work either inline or on a fixed worker pool.
//
// Work is expressed as shards. A Dispatcher runs a batch of shards and
// reports the first error any of them returned. Map splits a slice into
// contiguous shards and writes each result at its input index, so the output
// does not depend on the pool size or on completion order.
//
// The Parallel dispatcher starts its workers on first use and keeps them for
// its lifetime. Batches submitted concurrently are queued and run one after
// another in arrival order.
package dispatch
