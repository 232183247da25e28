package scheduler

import (
	"context"
	"time"

	"github.com/agrisync/agrisync/internal/syncqueue"
	"github.com/rs/zerolog"
)

// PruneQueueJob removes synced operations that have aged past the
// retention window, keeping the queue store from growing unbounded on
// long-lived devices.
type PruneQueueJob struct {
	Name      string
	Log       zerolog.Logger
	QueueSvc  syncqueue.Service
	Retention time.Duration
}

func (j *PruneQueueJob) Run() {
	ctx := context.Background()

	pruned, err := j.QueueSvc.PruneDone(ctx, j.Retention)
	if err != nil {
		j.Log.Error().Err(err).Msg("could not prune completed operations")
		return
	}

	if pruned > 0 {
		j.Log.Info().Int("count", pruned).Msg("pruned completed operations past retention")
	}
}
