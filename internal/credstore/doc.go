// Package credstore persists client credentials and preferences across
// process restarts.
//
// The store is a flat string key/value map. Only the auth client writes the
// credential keys (KeyToken, KeyRefreshToken, KeyUser); the web layer owns
// KeyTheme. Reads never touch disk: SQLiteStore keeps an in-memory copy that
// is loaded once at open and updated after every successful write.
package credstore
