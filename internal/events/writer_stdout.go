package events

import (
	"context"

	"go.uber.org/zap"
)

// event writer used in dev
type StdoutWriter struct{}

func (s *StdoutWriter) Write(ctx context.Context, topic string, m Message) error {
	zap.S().Named("stdout_writer").Infow("event wrote", "topic", topic, "id", m.ID, "kind", m.Kind, "data", string(m.Data))
	return nil
}

func (s *StdoutWriter) Close(_ context.Context) error {
	return nil
}
