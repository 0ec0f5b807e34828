// Package maintenance runs the engine's periodic housekeeping: rule
// directory rescans and expired-blob and expired-stream sweeps. It
// schedules no health-reporting job. It is ambient infrastructure, not one of
// spec's numbered components, but every production deployment needs it.
package maintenance

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/scanforge/filescand/internal/blobstore"
	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/taste"
	"github.com/scanforge/filescand/pkg/log"
)

// Sweeper is anything that can expire its own stale entries, reporting
// how many it removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Scheduler owns the gocron scheduler and wires it to the engine's
// housekeeping jobs.
type Scheduler struct {
	sched gocron.Scheduler
}

// Config controls which jobs are registered and at what interval. A
// zero Duration disables that job.
type Config struct {
	RuleRescanInterval time.Duration
	SweepInterval      time.Duration
}

// New builds and starts a Scheduler. taster may be nil if rule
// rescanning is not configured; blobs/sink are swept only when they
// implement Sweeper (the in-memory backends do; S3/NATS backends rely
// on the remote system's own TTLs instead).
func New(cfg Config, taster *taste.Taster, blobs blobstore.Backend, sink eventsink.Backend) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sc := &Scheduler{sched: s}

	if taster != nil && cfg.RuleRescanInterval > 0 {
		if _, err := s.NewJob(
			gocron.DurationJob(cfg.RuleRescanInterval),
			gocron.NewTask(func() {
				log.Debugf("maintenance: periodic rule rescan")
				if err := taster.Reload(); err != nil {
					log.Warnf("maintenance: rule rescan failed: %v", err)
				}
			}),
		); err != nil {
			return nil, err
		}
	}

	if cfg.SweepInterval > 0 {
		if _, err := s.NewJob(
			gocron.DurationJob(cfg.SweepInterval),
			gocron.NewTask(func() { sc.sweepOnce(blobs, sink) }),
		); err != nil {
			return nil, err
		}
	}

	s.Start()
	return sc, nil
}

func (sc *Scheduler) sweepOnce(blobs blobstore.Backend, sink eventsink.Backend) {
	now := time.Now()
	if sweeper, ok := blobs.(Sweeper); ok {
		if n := sweeper.Sweep(now); n > 0 {
			log.Infof("maintenance: swept %d expired blob entries", n)
		}
	}
	if sweeper, ok := sink.(Sweeper); ok {
		if n := sweeper.Sweep(now); n > 0 {
			log.Infof("maintenance: swept %d expired event streams", n)
		}
	}
}

// Shutdown stops the scheduler, waiting for in-flight jobs to finish.
func (sc *Scheduler) Shutdown() error {
	return sc.sched.Shutdown()
}
