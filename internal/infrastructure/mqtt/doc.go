// Package mqtt provides MQTT client connectivity for EV Market Web.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The broker carries diagnostic session events off the device and remote
// session commands onto it:
//
//	evmarket-web → {prefix}/session/state, {prefix}/gate/redirect → broker
//	broker → {prefix}/session/command/logout → evmarket-web
//
// MQTT is optional. When disabled, no client is created and the publisher
// in internal/events is not wired.
//
// # Security Considerations
//
//   - Use TLS outside local development (cfg.Broker.TLS=true)
//   - Payloads never contain tokens or passwords
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().LogoutCommand(), 1,
//	    func(topic string, payload []byte) error {
//	        manager.Logout()
//	        return nil
//	    })
package mqtt
