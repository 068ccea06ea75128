package events

import "time"

type ProducerOptions func(e *EventProducer)

func WithOutputTopic(topic string) ProducerOptions {
	return func(e *EventProducer) {
		e.topic = topic
	}
}

func WithFlushInterval(interval time.Duration) ProducerOptions {
	return func(e *EventProducer) {
		if interval > 0 {
			e.flushInterval = interval
		}
	}
}

func WithBufferSize(size int) ProducerOptions {
	return func(e *EventProducer) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}
