package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultFlushInterval = time.Second
	defaultBufferSize    = 1000
	closeTimeout         = 5 * time.Second
)

var ErrProducerClosed = errors.New("event producer is closed")

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, m Message) error
	Close(ctx context.Context) error
}

// EventProducer queues messages in a bounded channel drained by a single loop on
// a fixed interval. Publish blocks while the channel is full.
type EventProducer struct {
	queue         chan Message
	doneCh        chan struct{}
	stoppedCh     chan struct{}
	writer        Writer
	topic         string
	flushInterval time.Duration
	bufferSize    int

	lock      sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		doneCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
		writer:        w,
		topic:         defaultTopic,
		flushInterval: defaultFlushInterval,
		bufferSize:    defaultBufferSize,
	}

	for _, o := range opts {
		o(ep)
	}
	ep.queue = make(chan Message, ep.bufferSize)

	go ep.run()
	return ep
}

// Publish queues payload, encoded as json, under kind.
func (ep *EventProducer) Publish(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ep.lock.RLock()
	defer ep.lock.RUnlock()
	if ep.closed {
		return ErrProducerClosed
	}

	msg := Message{
		ID:     uuid.NewString(),
		Kind:   kind,
		Source: messageSource,
		Time:   time.Now().UTC(),
		Data:   data,
	}

	select {
	case ep.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages, writes the pending ones and closes the writer.
func (ep *EventProducer) Close() error {
	ep.closeOnce.Do(func() {
		ep.lock.Lock()
		ep.closed = true
		ep.lock.Unlock()

		close(ep.doneCh)
		<-ep.stoppedCh

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := ep.writer.Close(ctx); err != nil {
			zap.S().Named("event_producer").Errorw("event producer closed with error", "error", err)
			ep.closeErr = err
			return
		}

		zap.S().Named("event_producer").Info("event producer closed")
	})
	return ep.closeErr
}

func (ep *EventProducer) run() {
	defer close(ep.stoppedCh)

	ticker := time.NewTicker(ep.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ep.doneCh:
			ep.flush()
			return
		case <-ticker.C:
			ep.flush()
		}
	}
}

// flush writes every message queued so far.
func (ep *EventProducer) flush() {
	for {
		select {
		case msg := <-ep.queue:
			if err := ep.writer.Write(context.TODO(), ep.topic, msg); err != nil {
				zap.S().Named("event_producer").Errorw("failed to send message", "error", err, "id", msg.ID, "kind", msg.Kind)
			}
		default:
			return
		}
	}
}
