package eventbus

import (
	"context"
	"log/slog"
)

// LogEvents logs every event published on b at debug level until the
// returned stop function is called. stop waits for the logger goroutine.
func LogEvents(ctx context.Context, b *Bus, logger *slog.Logger) (stop func()) {
	id, ch := b.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			logger.DebugContext(ctx, "store event",
				"component", "eventbus", "op", string(ev.Type), "task_id", ev.TaskID, "version", ev.Version)
		}
	}()
	return func() {
		b.Unsubscribe(id)
		<-done
	}
}
