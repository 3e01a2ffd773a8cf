// Package gate decides, for a session snapshot and a route path, whether the
// route may render or the client must be sent elsewhere.
//
// All route restrictions live in one Table. Evaluate is a pure function;
// Observer adds the per-view deduplication that keeps repeated evaluation of
// the same state from navigating twice. Nothing is decided while the
// session is loading.
package gate
