package natsx

import "context"

// Producer is the publish side.
type Producer struct{ c *Client }

func NewProducer(c *Client) *Producer { return &Producer{c: c} }

func (p *Producer) Publish(ctx context.Context, subject string, data []byte, hdr map[string]string) error {
	_ = ctx
	return p.c.send(subject, data, hdr)
}

// PublishOnce publishes with a Nats-Msg-Id header so subscribers running
// the idempotency middleware drop duplicates.
func (p *Producer) PublishOnce(ctx context.Context, subject string, data []byte, hdr map[string]string, msgID string) error {
	if hdr == nil {
		hdr = map[string]string{}
	}
	if msgID != "" {
		hdr["Nats-Msg-Id"] = msgID
	}
	return p.Publish(ctx, subject, data, hdr)
}
