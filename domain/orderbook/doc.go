// Package orderbook implements a single-instrument limit order book with
// price-time priority matching.
//
// Each side is a Ladder of PriceLevels ordered best first. A level holds a
// FIFO of orders whose storage lives in a memory.Pool; the queue is threaded
// through the orders themselves, so resting an order costs one pool slot and
// no other allocation once the pool and ladder have warmed up.
//
// Match consumes opposite-side liquidity and emits trades at the resting
// order's price. It never rests the residual; callers Add what is left.
// Building with -tags tickbookdebug runs CheckInvariants after every
// mutation and panics on the first violation.
package orderbook
