//go:build tickbookdebug

package orderbook

const debugChecks = true
