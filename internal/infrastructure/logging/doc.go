// Package logging builds the slog logger shared by every component.
//
// Entries carry service and version fields and honour the configured level
// and format (json or text):
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stdout"
//
// Attributes named token, access_token, refresh_token, password or
// authorization are written as "[redacted]". Log the user id or email
// instead of a credential.
package logging
