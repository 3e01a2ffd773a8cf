package credstore

import "errors"

// Key names a value in the store.
type Key string

// Storage keys. These names are shared with the browser shell's localStorage
// layout, so they must not change.
const (
	KeyToken        Key = "token"
	KeyRefreshToken Key = "refreshToken"
	KeyUser         Key = "user"
	KeyTheme        Key = "theme"
)

// CredentialKeys are removed on logout. KeyTheme survives a logout.
var CredentialKeys = []Key{KeyToken, KeyRefreshToken, KeyUser}

// ErrEmptyKey is returned when a write is attempted with an empty key.
var ErrEmptyKey = errors.New("credstore: empty key")

// Store is a synchronous string key/value store.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key Key) (string, bool)

	// Set stores value under key, replacing any previous value.
	Set(key Key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(key Key) error

	// Clear deletes every key.
	Clear() error
}
