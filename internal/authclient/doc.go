// Package authclient talks to the marketplace backend's /auth endpoints and
// owns the credentials kept in the credential store.
//
// It is the only component that reads or writes the token, refreshToken and
// user keys. Every failure is an *APIError whose Error() is the backend's own
// message, and whose kind can be tested with errors.Is:
//
//	_, err := client.Login(ctx, email, password)
//	if errors.Is(err, authclient.ErrInvalidCredentials) {
//	    // show err.Error() next to the form
//	}
//
// A 401 from /auth/me and any refresh failure clear the stored credentials
// before returning, so a stale token can never leave the client stuck in an
// authenticated-but-empty state.
package authclient
