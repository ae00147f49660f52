// Package snapshot captures an aggregated, best-first view of both book
// sides and renders it as text or CSV.
package snapshot
