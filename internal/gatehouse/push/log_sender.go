package push

import (
	"context"

	"go.uber.org/zap"
)

// LogSender reports every token as delivered. Used when no provider
// credentials are configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("push.log")}
}

func (s *LogSender) Send(_ context.Context, tokens []string, msg Message) ([]Result, error) {
	s.logger.Info("push",
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.String("event_type", string(msg.Kind)),
		zap.Int("devices", len(tokens)))
	out := make([]Result, len(tokens))
	for i, t := range tokens {
		out[i] = Result{Token: t}
	}
	return out, nil
}
