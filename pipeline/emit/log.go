package emit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogEmitter writes node lifecycle events through a logrus.FieldLogger,
// one structured log line per event.
type LogEmitter struct {
	log logrus.FieldLogger
}

// NewLogEmitter creates a LogEmitter writing through log. A nil log falls
// back to logrus.StandardLogger().
func NewLogEmitter(log logrus.FieldLogger) *LogEmitter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogEmitter{log: log}
}

func (l *LogEmitter) Emit(event Event) {
	entry := l.log.WithField("node", event.Node).WithField("event", string(event.Type))
	for k, v := range event.Meta {
		entry = entry.WithField(k, v)
	}
	if event.Err != nil {
		entry.WithError(event.Err).Error("node event")
		return
	}
	entry.Debug("node event")
}

func (l *LogEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.Emit(e)
	}
	return nil
}

func (l *LogEmitter) Flush(context.Context) error { return nil }
