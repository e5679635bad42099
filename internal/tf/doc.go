// Package tf owns the per-frame-pair transform history.
//
// Responsibilities: timestamped rigid transforms (Stamped), ordered
// insertion with rolling retention (Chain), and point-in-time lookup with
// exact match, interpolation between bracketing samples, or latest-sample
// semantics.
// Key types: Stamp, Transform, Stamped, Chain, Query.
//
// A Chain is a plain in-memory structure with no locking. Callers that
// share a Chain between goroutines guard it themselves; see the tfbuffer
// package for the per-pair locked registry.
//
// No I/O, logging or clock access is allowed in this package.
package tf
