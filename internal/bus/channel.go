// Package bus provides event bus implementations for addrrisk.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// ChannelBus implements EventBus using Go channels.
// Used as the Community tier event bus.
//
// Delivery semantics differ by topic:
//   - TopicAnalysisRequested is a work queue: exactly one subscriber
//     (round-robin across however many analysis workers are attached)
//     claims each request, and the send blocks briefly rather than
//     dropping, since a skipped request means an address never gets
//     scored. This mirrors the queue-group subscription the Pro tier
//     uses against NATS for the same topic.
//   - TopicAnalysisAlert (critical-risk notifications) is broadcast to
//     every subscriber and also blocks briefly rather than dropping,
//     since a silently dropped alert defeats the point of alerting.
//   - Every other topic (analysis.completed, and any tenant-defined
//     topic) is best-effort broadcast: a slow or absent consumer does
//     not back-pressure the publisher.
type ChannelBus struct {
	mu            sync.RWMutex
	bufferSize    int
	subscriptions map[string][]*channelSubscription
	roundRobin    map[string]int
	closed        bool
}

type channelSubscription struct {
	id       string
	tenantID string
	topic    string
	handler  domain.MessageHandler
	msgCh    chan *domain.Message
	ctx      context.Context
	cancel   context.CancelFunc
}

// deliveryBlockWait bounds how long Publish waits for a slot in a
// subscriber's channel for topics that require guaranteed delivery,
// before giving up and reporting the backlog.
const deliveryBlockWait = 200 * time.Millisecond

// NewChannelBus creates a new channel-based event bus.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize:    bufferSize,
		subscriptions: make(map[string][]*channelSubscription),
		roundRobin:    make(map[string]int),
	}
}

// Publish sends a message to a topic.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
	stampTraceID(ctx, msg)

	key := b.makeKey(tenantID, topic)
	subs := b.subscriptions[key]
	b.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	if topic == domain.TopicAnalysisRequested {
		return b.deliverToOne(key, subs, msg)
	}

	guaranteed := topic == domain.TopicAnalysisAlert
	for _, sub := range subs {
		b.deliver(sub, msg, guaranteed)
	}
	return nil
}

// deliverToOne hands a work item to exactly one subscriber, rotating
// across the subscriber list so concurrent analysis workers share the
// load instead of each redundantly re-running the same request.
func (b *ChannelBus) deliverToOne(key string, subs []*channelSubscription, msg *domain.Message) error {
	b.mu.Lock()
	idx := b.roundRobin[key] % len(subs)
	b.roundRobin[key] = idx + 1
	b.mu.Unlock()

	if !b.deliver(subs[idx], msg, true) {
		return fmt.Errorf("analysis worker backlog full for topic %s", msg.Topic)
	}
	return nil
}

// deliver sends msg to sub's channel. When guaranteed is true it
// blocks up to deliveryBlockWait before giving up instead of dropping
// the message immediately.
func (b *ChannelBus) deliver(sub *channelSubscription, msg *domain.Message, guaranteed bool) bool {
	if !guaranteed {
		select {
		case sub.msgCh <- msg:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(deliveryBlockWait)
	defer timer.Stop()
	select {
	case sub.msgCh <- msg:
		return true
	case <-timer.C:
		return false
	case <-sub.ctx.Done():
		return false
	}
}

// Subscribe registers a handler for a topic.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)

	sub := &channelSubscription{
		id:       uuid.New().String(),
		tenantID: tenantID,
		topic:    topic,
		handler:  handler,
		msgCh:    make(chan *domain.Message, b.bufferSize),
		ctx:      subCtx,
		cancel:   cancel,
	}

	go b.handleMessages(sub)

	key := b.makeKey(tenantID, topic)
	b.subscriptions[key] = append(b.subscriptions[key], sub)

	return sub, nil
}

// handleMessages processes messages for a subscription.
func (b *ChannelBus) handleMessages(sub *channelSubscription) {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg := <-sub.msgCh:
			if msg != nil {
				_ = sub.handler(sub.ctx, msg)
			}
		}
	}
}

// Request implements request-reply pattern using channels.
func (b *ChannelBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, tenantID, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, tenantID, topic, payload); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("request timeout")
	}
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close closes the event bus.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			sub.cancel()
			close(sub.msgCh)
		}
	}

	b.subscriptions = make(map[string][]*channelSubscription)
	b.roundRobin = make(map[string]int)
	return nil
}

func (b *ChannelBus) makeKey(tenantID, topic string) string {
	return tenantID + ":" + topic
}

// stampTraceID copies the active span's trace ID, if any, into the
// message so a single address analysis can be followed across the
// HTTP request that requested it, the bus hop, and the worker (or
// handler) that produced the result.
func stampTraceID(ctx context.Context, msg *domain.Message) {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		msg.Metadata["traceId"] = sc.TraceID().String()
	}
}

// Unsubscribe stops receiving messages.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
