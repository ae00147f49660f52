/*
Package service drives the order book.

MatchingEngine is the only write entry point into a book: it times each
order, matches it, rests the residual and records the latency sample.
Runner pulls orders from a source through an engine and fans the fills
out to the journal, the fill ring and the metrics collectors.

Nothing here is safe for concurrent use except LockedEngine.
*/
package service
