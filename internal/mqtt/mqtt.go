// Package mqtt publishes the event stream to an MQTT broker.
//
// Every event is published to <prefix>/<event type>. Status updates are
// also published, retained, to <prefix>/chargers/<ip> so a new subscriber
// sees the last known state of each charger; a removal clears that topic.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"raywatch/internal/domain"
	"raywatch/internal/log"
)

const (
	DefaultTopicPrefix = "raywatch"
	defaultTimeout     = 10 * time.Second
	defaultQueueSize   = 256
)

// Config describes the broker connection
type Config struct {
	// Broker is a URL such as tcp://localhost:1883 or ssl://host:8883
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// publishFunc sends one message
type publishFunc func(topic string, retained bool, payload []byte) error

// ErrQueueFull is returned by Emit when the broker cannot keep up
var ErrQueueFull = errors.New("mqtt publish queue full")

type outgoing struct {
	topic    string
	retained bool
	payload  []byte
}

// Sink publishes events to MQTT. Emit only queues messages; a single
// worker publishes them in order so a slow or reconnecting broker never
// holds up the caller.
type Sink struct {
	prefix  string
	publish publishFunc
	drain   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan outgoing
	done   chan struct{}

	disconnect func()
}

// Connect dials the broker and returns a sink publishing to it
func Connect(cfg Config) (*Sink, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "raywatch-" + uuid.NewString()[:8]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(cfg.Timeout)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}

	publish := func(topic string, retained bool, payload []byte) error {
		t := client.Publish(topic, cfg.QoS, retained, payload)
		if !t.WaitTimeout(cfg.Timeout) {
			return fmt.Errorf("publish %s: timed out", topic)
		}
		return t.Error()
	}

	s := newSink(cfg.TopicPrefix, publish, defaultQueueSize)
	s.drain = cfg.Timeout
	s.disconnect = func() { client.Disconnect(250) }
	return s, nil
}

func newSink(prefix string, publish publishFunc, queueSize int) *Sink {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	s := &Sink{
		prefix:  prefix,
		publish: publish,
		drain:   defaultTimeout,
		queue:   make(chan outgoing, queueSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	defer close(s.done)

	ctx := context.Background()
	for m := range s.queue {
		if err := s.publish(m.topic, m.retained, m.payload); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "mqtt publish failed",
				slog.String("topic", m.topic),
				slog.Any("error", err))
		}
	}
}

// Emit implements service.Sink
func (s *Sink) Emit(_ context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msgs := []outgoing{{topic: s.prefix + "/" + string(ev.Type), payload: payload}}

	switch ev.Type {
	case domain.EventStatusUpdate:
		status, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		msgs = append(msgs, outgoing{topic: s.chargerTopic(ev.Address()), retained: true, payload: status})
	case domain.EventRemoved:
		// an empty retained message deletes the retained status
		msgs = append(msgs, outgoing{topic: s.chargerTopic(ev.Address()), retained: true})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("mqtt sink closed")
	}
	for _, m := range msgs {
		select {
		case s.queue <- m:
		default:
			return fmt.Errorf("%w: dropped %s", ErrQueueFull, m.topic)
		}
	}
	return nil
}

func (s *Sink) chargerTopic(addr string) string {
	return s.prefix + "/chargers/" + addr
}

// Close stops accepting events, waits a bounded time for queued messages
// to be published and disconnects from the broker
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	t := time.NewTimer(s.drain)
	defer t.Stop()
	select {
	case <-s.done:
	case <-t.C:
		log.Ctx(context.Background()).Warn("mqtt queue not drained before close", slog.Int("pending", len(s.queue)))
	}

	if s.disconnect != nil {
		s.disconnect()
	}
}
