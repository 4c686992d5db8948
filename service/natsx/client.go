package natsx

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds client connection settings.
type Config struct {
	Servers       []string
	Name          string
	User          string
	Password      string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Client wraps one core NATS connection. Delivery envelopes are transient
// by contract (lost on restart is acceptable), so plain core pub/sub is
// used: no JetStream persistence.
type Client struct {
	cfg Config
	nc  *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, nc: nc}, nil
}

// Close drains all subscriptions and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		_ = sub.Drain()
	}
	c.subs = nil
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

func (c *Client) send(subject string, data []byte, hdr map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (c *Client) track(sub *nats.Subscription) {
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
}
