package mqtt

import "fmt"

// DefaultTopicPrefix is used when no topic prefix is configured.
const DefaultTopicPrefix = "evmarket"

// Topics provides builders for EV Market MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Prefix: "evmarket"}
//	topics.SessionState()
//	// Returns: "evmarket/session/state"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SessionState returns the retained topic carrying the current session state.
//
// Example: evmarket/session/state
func (t Topics) SessionState() string {
	return fmt.Sprintf("%s/session/state", t.prefix())
}

// GateRedirect returns the topic for access gate redirect events.
//
// Example: evmarket/gate/redirect
func (t Topics) GateRedirect() string {
	return fmt.Sprintf("%s/gate/redirect", t.prefix())
}

// SessionCommand returns the topic for a remote session command.
//
// Example: evmarket/session/command/logout
func (t Topics) SessionCommand(command string) string {
	return fmt.Sprintf("%s/session/command/%s", t.prefix(), command)
}

// LogoutCommand returns the topic that signs this device out.
func (t Topics) LogoutCommand() string {
	return t.SessionCommand("logout")
}

// SystemStatus returns the topic for online/offline status (LWT).
//
// Example: evmarket/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}
