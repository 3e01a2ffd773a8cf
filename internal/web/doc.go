// Package web serves the local EV Market shell: the session API, the
// WebSocket event stream and the gated page routes.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := web.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Access gate
//
// Every page route passes through the gate before it renders. A Decision
// that requires navigation becomes a 303 redirect; while the initial
// session check is running the page renders with loading set and no
// access decision is made. Connected WebSocket clients report their
// current path and receive a navigate command whenever a session change
// makes that path forbidden.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package web
