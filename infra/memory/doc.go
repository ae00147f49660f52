// Package memory holds the allocation primitives behind the order book:
// a fixed-block arena Pool that hands out generation-checked handles, an
// intrusive FIFO Queue threaded through pool-owned elements, and a
// single-producer/single-consumer Ring used to hand fills off the matching
// thread.
//
// None of these types are safe for concurrent use except Ring, which allows
// exactly one producer and one consumer goroutine.
package memory
