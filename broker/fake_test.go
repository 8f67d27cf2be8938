package broker_test

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/calcq/broker"
)

// fakeChannel implements broker.Channel in memory.
type fakeChannel struct {
	mu sync.Mutex

	depth      int
	passiveErr error // returned once by QueueDeclarePassive, then cleared

	declared   []string
	published  []amqp.Publishing
	routedTo   []string
	publishErr error

	qosPrefetch int
	deliveries  chan amqp.Delivery
	consumed    []string
	closed      bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name, Messages: c.depth}, nil
}

func (c *fakeChannel) QueueDeclarePassive(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.passiveErr != nil {
		err := c.passiveErr
		c.passiveErr = nil
		return amqp.Queue{}, err
	}
	return amqp.Queue{Name: name, Messages: c.depth}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, msg)
	c.routedTo = append(c.routedTo, key)
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qosPrefetch = prefetchCount
	return nil
}

func (c *fakeChannel) Consume(queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumed = append(c.consumed, queue)
	return c.deliveries, nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.deliveries)
	}
	return nil
}

func (c *fakeChannel) setDepth(n int) {
	c.mu.Lock()
	c.depth = n
	c.mu.Unlock()
}

func (c *fakeChannel) publishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func (c *fakeChannel) lastPublished() (amqp.Publishing, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.published)
	return c.published[n-1], c.routedTo[n-1]
}

func (c *fakeChannel) declaredQueues() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.declared))
	copy(out, c.declared)
	return out
}

// fakeOpener hands out channels in order, repeating the last one.
type fakeOpener struct {
	mu       sync.Mutex
	channels []*fakeChannel
	opens    int
}

var _ broker.ChannelOpener = (*fakeOpener)(nil)

func (o *fakeOpener) OpenChannel() (broker.Channel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := o.opens
	if i >= len(o.channels) {
		i = len(o.channels) - 1
	}
	o.opens++
	return o.channels[i], nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// recAck records acknowledgements for fabricated deliveries.
type recAck struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeued bool
}

var _ amqp.Acknowledger = (*recAck)(nil)

func (a *recAck) Ack(_ uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *recAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *recAck) Reject(_ uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *recAck) counts() (acks, nacks int, requeued bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, a.nacks, a.requeued
}
