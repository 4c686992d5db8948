package natsx

import (
	"context"

	"github.com/nats-io/nats.go"
)

// Consumer is the subscribe side.
type Consumer struct {
	c   *Client
	mws []Middleware
}

func NewConsumer(c *Client, mws ...Middleware) *Consumer {
	return &Consumer{c: c, mws: mws}
}

// Subscribe attaches h to the subject (wildcards allowed). A non-empty
// queue makes members of the same group share the subject.
func (cs *Consumer) Subscribe(subject, queue string, h Handler) error {
	h = Chain(h, cs.mws...)
	cb := func(m *nats.Msg) {
		_ = h(context.Background(), Message{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		})
	}
	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = cs.c.nc.Subscribe(subject, cb)
	} else {
		sub, err = cs.c.nc.QueueSubscribe(subject, queue, cb)
	}
	if err != nil {
		return err
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)
	cs.c.track(sub)
	return nil
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
