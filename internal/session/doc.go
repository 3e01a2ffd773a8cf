// Package session holds the client's single session state machine.
//
// States run Uninitialized → Loading → {Authenticated, Anonymous}. Init
// performs the one initial check against the stored credentials; Login,
// Register and Logout move between the settled states; UpdateProfile
// replaces the user in place. Each transition produces an immutable
// Snapshot with a strictly increasing Version.
//
// One Manager exists per process run and is injected into the web layer and
// the event publisher. Results of calls that complete after a newer
// transition, or after Close, are discarded.
package session
