package visits

import (
	"context"
	"time"
)

// RunAutoAdvance ticks every active visit once per interval until ctx is
// done. A non-positive interval disables it.
func (r *Registry) RunAutoAdvance(ctx context.Context, interval time.Duration, batchSize int) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		count, err := r.AdvanceAll(tickCtx, batchSize)
		cancel()
		if err != nil {
			r.log.WithError(err).Warn("auto advance error")
			continue
		}
		if count > 0 {
			r.log.WithField("visits", count).Info("auto advance processed visits")
		}
	}
}
