package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"kglogistics/utils"
)

// Sweeper is a storage that drops expired entries on demand.
type Sweeper interface {
	Sweep() int
}

// SweepWorker periodically purges expired drafts and limiter counters from
// an in-process storage. Redis expires keys on its own and needs no worker.
type SweepWorker struct {
	storage  Sweeper
	interval time.Duration
	logger   *logrus.Entry
}

func NewSweepWorker(storage Sweeper, interval time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepWorker{
		storage:  storage,
		interval: interval,
		logger:   utils.Logger("sweep_worker"),
	}
}

// Start blocks until ctx is cancelled.
func (sw *SweepWorker) Start(ctx context.Context) {
	sw.logger.WithField("interval", sw.interval.String()).Info("Starting sweep worker")
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := sw.storage.Sweep(); n > 0 {
				sw.logger.WithField("removed", n).Debug("Swept expired entries")
			}
		case <-ctx.Done():
			sw.logger.Info("Stopping sweep worker")
			return
		}
	}
}
