// Package monitor periodically polls a chiller and publishes its readings
// over MQTT, so lab telemetry can follow coolant temperatures without
// touching the serial line directly.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/chillerlab/go-lk220/lk220"
	"github.com/chillerlab/go-lk220/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultTopicPrefix = "lk220"
	DefaultInterval    = 5 * time.Second
)

// Publisher is the subset of mqtt.Client the monitor needs; it is satisfied
// by a connected paho client.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// Sample is one published temperature reading.
type Sample struct {
	Time  time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// StatusSample carries the opaque device state word.
type StatusSample struct {
	Time   time.Time `json:"ts"`
	Status string    `json:"status"`
}

// Config holds the monitor settings. Zero values fall back to defaults.
type Config struct {
	// TopicPrefix prefixes the published topics:
	// <prefix>/actual, <prefix>/target and <prefix>/status.
	TopicPrefix string

	// Interval is the polling period.
	Interval time.Duration

	Logger logger.Logger
}

// Monitor polls one Controller on a fixed interval and publishes samples.
//
// The monitor issues commands through the controller's normal transaction
// gate, so it coexists with foreground callers: a tick that collides with
// an in-flight command is skipped, not queued.
type Monitor struct {
	ctrl     *lk220.Controller
	pub      Publisher
	prefix   string
	interval time.Duration
	logger   logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Monitor for the given controller and publisher.
func New(ctrl *lk220.Controller, pub Publisher, cfg Config) *Monitor {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	return &Monitor{
		ctrl:     ctrl,
		pub:      pub,
		prefix:   cfg.TopicPrefix,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
}

// Start launches the polling goroutine. It returns immediately; use Stop
// (or cancel ctx) to terminate.
func (m *Monitor) Start(ctx context.Context) {
	if m.done != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go m.run(ctx)
}

// Stop terminates the polling goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	if m.done == nil {
		return
	}

	m.cancel()
	<-m.done
	m.done = nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	t := time.NewTicker(m.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor: stopped", "topicPrefix", m.prefix)

			return
		case <-t.C:
			m.poll()
		}
	}
}

// poll reads one round of values and publishes them. A busy serial line
// means a foreground command is in flight; the tick is dropped.
func (m *Monitor) poll() {
	now := time.Now()

	actual, err := m.ctrl.ActualTemp()
	if m.skip(err, "actual") {
		return
	}
	m.publish(m.prefix+"/actual", Sample{Time: now, Value: actual})

	target, err := m.ctrl.TargetTemp()
	if m.skip(err, "target") {
		return
	}
	m.publish(m.prefix+"/target", Sample{Time: now, Value: target})

	status, err := m.ctrl.DeviceStatus()
	if m.skip(err, "status") {
		return
	}
	m.publish(m.prefix+"/status", StatusSample{Time: now, Status: status})
}

func (m *Monitor) skip(err error, what string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, lk220.ErrBusy) {
		m.logger.Debug("monitor: serial line busy, skipping tick", "reading", what)
	} else {
		m.logger.Warn("monitor: poll failed", "reading", what, "error", err)
	}

	return true
}

func (m *Monitor) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("monitor: marshal sample", "topic", topic, "error", err)

		return
	}

	if tok := m.pub.Publish(topic, 0, false, payload); tok.Wait() && tok.Error() != nil {
		m.logger.Error("monitor: publish failed", "topic", topic, "error", tok.Error())
	}
}
