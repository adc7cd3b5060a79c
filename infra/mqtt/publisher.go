package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/obsched/core/events"
	"github.com/kilianp07/obsched/infra/logger"
)

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("publish timed out")

// EventSource is the subscription side of the playback event bus.
type EventSource interface {
	Subscribe() <-chan events.PlaybackEvent
	Unsubscribe(<-chan events.PlaybackEvent)
}

// Publisher mirrors playback events to MQTT.
type Publisher struct {
	cli     pahoClient
	cfg     Config
	log     logger.Logger
	backoff time.Duration
}

// NewPublisher connects to the broker. The status topic is set to online on
// every (re)connect; the broker publishes offline if the connection drops.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt")
	p := &Publisher{cfg: cfg, log: log, backoff: time.Duration(cfg.BackoffMS) * time.Millisecond}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		if token := c.Publish(cfg.StatusTopic(), cfg.QoS, true, StatusOnline); token.Wait() && token.Error() != nil {
			log.Errorf("status publish error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// Publish sends ev to the playback topic, retrying with exponential backoff.
func (p *Publisher) Publish(ev events.PlaybackEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic := p.cfg.PlaybackTopic()
	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, p.cfg.QoS, p.cfg.retained(), payload)
		if token.WaitTimeout(publishTimeout) {
			publishErr = token.Error()
		} else {
			publishErr = errPublishTimeout
		}
		if publishErr == nil {
			p.log.Debugf("published %s for %s to %s", ev.Action, ev.SourceID, topic)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.cfg.MaxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Run forwards events from src until ctx is done or the bus closes.
func (p *Publisher) Run(ctx context.Context, src EventSource) {
	sub := src.Subscribe()
	defer src.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := p.Publish(ev); err != nil {
				p.log.Warnf("dropping playback event: %v", err)
			}
		}
	}
}

// Close marks the publisher offline and disconnects.
func (p *Publisher) Close() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	token := p.cli.Publish(p.cfg.StatusTopic(), p.cfg.QoS, true, StatusOffline)
	token.WaitTimeout(time.Second)
	p.cli.Disconnect(250)
}
