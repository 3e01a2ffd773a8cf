package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eco-green-group4/evmarket-web/internal/gate"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/logging"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/mqtt"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// queueSize bounds the events waiting to be published.
const queueSize = 64

// Publisher is the MQTT surface the Bridge needs. *mqtt.Client satisfies it.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	PublishEvent(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Topics() mqtt.Topics
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge connects the session manager and the access gate to MQTT.
//
// SessionChanged and Redirected only enqueue; Run publishes in order so a
// slow broker never holds up a session transition.
type Bridge struct {
	pub      Publisher
	deviceID string
	qos      byte
	logger   *logging.Logger
	now      func() time.Time
	queue    chan outbound
}

// NewBridge creates a Bridge publishing as deviceID.
func NewBridge(pub Publisher, deviceID string, qos byte, logger *logging.Logger) *Bridge {
	return &Bridge{
		pub:      pub,
		deviceID: deviceID,
		qos:      qos,
		logger:   logger.With("component", "events"),
		now:      time.Now,
		queue:    make(chan outbound, queueSize),
	}
}

// Run publishes queued events until ctx is done. Events still queued at
// that point are published before it returns.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-b.queue:
					b.publish(ev)
				default:
					return
				}
			}
		case ev := <-b.queue:
			b.publish(ev)
		}
	}
}

func (b *Bridge) publish(ev outbound) {
	var err error
	if ev.retained {
		err = b.pub.PublishRetained(ev.topic, ev.payload)
	} else {
		err = b.pub.PublishEvent(ev.topic, ev.payload)
	}
	if err != nil {
		b.logger.Warn("publishing event failed", "topic", ev.topic, "error", err)
	}
}

func (b *Bridge) enqueue(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("encoding event failed", "topic", topic, "error", err)
		return
	}
	select {
	case b.queue <- outbound{topic: topic, payload: payload, retained: retained}:
	default:
		b.logger.Warn("event queue full, dropping event", "topic", topic)
	}
}

// SessionChanged publishes snap as the retained session state. The loading
// states are skipped; only settled sessions are retained.
func (b *Bridge) SessionChanged(snap session.Snapshot) {
	if snap.Loading {
		return
	}
	b.enqueue(b.pub.Topics().SessionState(), newSessionState(uuid.NewString(), b.deviceID, snap), true)
}

// Redirected publishes a gate navigation.
func (b *Bridge) Redirected(d gate.Decision, from string) {
	if !d.Navigate {
		return
	}
	b.enqueue(b.pub.Topics().GateRedirect(), newGateRedirect(uuid.NewString(), b.deviceID, d, from, b.now()), false)
}

// ListenForCommands subscribes to the logout command topic. logout runs
// on the MQTT client's goroutine for every command addressed to this
// device.
func (b *Bridge) ListenForCommands(logout func()) error {
	topic := b.pub.Topics().LogoutCommand()
	err := b.pub.Subscribe(topic, b.qos, func(_ string, payload []byte) error {
		var cmd LogoutCommand
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return fmt.Errorf("decoding logout command: %w", err)
			}
		}
		if cmd.DeviceID != "" && cmd.DeviceID != b.deviceID {
			return nil
		}
		b.logger.Info("remote logout requested", "reason", cmd.Reason)
		logout()
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

// StopCommands unsubscribes from the logout command topic.
func (b *Bridge) StopCommands() error {
	topic := b.pub.Topics().LogoutCommand()
	if err := b.pub.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}
	return nil
}
