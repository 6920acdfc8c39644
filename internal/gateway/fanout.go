package gateway

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shaiso/Relay/internal/telemetry"
)

// FanOut отправляет уведомления пачками ограниченного размера.
//
// Пачки идут последовательно, получатели внутри пачки — конкурентно:
// пиковая нагрузка на шлюз ограничена batchSize, а не размером рассылки.
// Ошибка одного получателя логируется и не прерывает доставку остальным.
//
// Возвращает количество успешно переданных уведомлений.
func FanOut(ctx context.Context, gw Gateway, pushes []Push, batchSize int, logger *slog.Logger) int {
	if batchSize < 1 {
		batchSize = 1
	}

	var delivered atomic.Int64

	for start := 0; start < len(pushes); start += batchSize {
		end := min(start+batchSize, len(pushes))

		var wg sync.WaitGroup
		for _, push := range pushes[start:end] {
			wg.Add(1)
			go func(push Push) {
				defer wg.Done()

				if err := gw.Send(ctx, push); err != nil {
					telemetry.PushSent.WithLabelValues("error").Inc()
					logger.Warn("push delivery failed",
						"recipient", MaskToken(push.Token),
						"error", err,
					)
					return
				}

				telemetry.PushSent.WithLabelValues("ok").Inc()
				delivered.Add(1)
			}(push)
		}
		wg.Wait()
	}

	return int(delivered.Load())
}
