package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type idleCloser interface {
	CloseIdle(ctx context.Context, before time.Time) (int64, error)
}

// IdleSweepJob periodically closes open conversations with no inbound
// activity past the idle threshold. Closure is an internal state change;
// nothing is sent to the customer.
type IdleSweepJob struct {
	conversations idleCloser
	idleAfter     time.Duration
	interval      time.Duration
	done          chan struct{}
}

func NewIdleSweepJob(conversations idleCloser, idleAfter, interval time.Duration) *IdleSweepJob {
	return &IdleSweepJob{
		conversations: conversations,
		idleAfter:     idleAfter,
		interval:      interval,
		done:          make(chan struct{}),
	}
}

func (j *IdleSweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("idleAfter", j.idleAfter).Msg("idle sweep job started")
}

func (j *IdleSweepJob) Stop() {
	close(j.done)
	log.Info().Msg("idle sweep job stopped")
}

func (j *IdleSweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *IdleSweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.conversations.CloseIdle(ctx, time.Now().Add(-j.idleAfter))
	if err != nil {
		log.Error().Err(err).Msg("idle sweep failed")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("idle conversations closed")
	}
}
