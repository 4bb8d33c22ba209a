// Package scheduler requests sync runs on the cron of each saved sync
// configuration.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/beexponential/insights/internal/events"
	syncrepo "github.com/beexponential/insights/internal/repository/syncs"
	"github.com/beexponential/insights/internal/schedule"
	"github.com/beexponential/insights/pkg/metrics"
)

// Source lists the configurations to schedule.
type Source interface {
	ListEnabled(ctx context.Context) ([]syncrepo.Config, error)
}

type entry struct {
	cron string
	job  *gocron.Job
}

// Scheduler keeps one gocron job per enabled sync configuration.
type Scheduler struct {
	src    Source
	emit   events.Emitter
	logger *zap.SugaredLogger
	cron   *gocron.Scheduler

	mu   sync.Mutex
	jobs map[string]entry
}

// New returns a scheduler running in UTC. A nil logger discards output.
func New(src Source, emit events.Emitter, logger *zap.SugaredLogger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scheduler{
		src:    src,
		emit:   emit,
		logger: logger,
		cron:   gocron.NewScheduler(time.UTC),
		jobs:   map[string]entry{},
	}
}

// Reload brings the registered jobs in line with the source. Jobs whose
// cron changed are re-registered; configurations that disappeared are
// removed. Invalid expressions are logged and skipped.
func (s *Scheduler) Reload(ctx context.Context) error {
	cfgs, err := s.src.ListEnabled(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		seen[c.ID] = true
		if e, ok := s.jobs[c.ID]; ok {
			if e.cron == c.Cron {
				continue
			}
			s.cron.RemoveByReference(e.job)
			delete(s.jobs, c.ID)
		}
		if err := schedule.ValidateCron(c.Cron); err != nil {
			s.logger.Warnw("skip sync with invalid cron", "sync", c.ID, "cron", c.Cron, "err", err)
			continue
		}
		job, err := s.cron.Cron(c.Cron).Do(s.fire, c)
		if err != nil {
			s.logger.Errorw("schedule sync", "sync", c.ID, "err", err)
			continue
		}
		s.jobs[c.ID] = entry{cron: c.Cron, job: job}
		s.logger.Debugw("scheduled sync", "sync", c.ID, "tenant", c.TenantID, "cron", c.Cron)
	}
	for id, e := range s.jobs {
		if !seen[id] {
			s.cron.RemoveByReference(e.job)
			delete(s.jobs, id)
			s.logger.Debugw("unscheduled sync", "sync", id)
		}
	}
	return nil
}

func (s *Scheduler) fire(c syncrepo.Config) {
	s.logger.Infow("sync run due", "sync", c.ID, "tenant", c.TenantID, "type", c.SyncType)
	metrics.SyncRuns.WithLabelValues(string(c.SyncType), "scheduled").Inc()
	if s.emit == nil {
		return
	}
	s.emit.Dispatch(context.Background(), events.New(events.SyncRunRequested, c.TenantID, syncrepo.RunRequest{SyncID: c.ID, SyncType: c.SyncType}))
}

// Jobs returns the cron expression of every scheduled configuration.
func (s *Scheduler) Jobs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.jobs))
	for id, e := range s.jobs {
		out[id] = e.cron
	}
	return out
}

// Start loads the jobs, reloads them every interval and runs the cron loop
// until ctx is done.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	if interval > 0 {
		if _, err := s.cron.Every(interval).WaitForSchedule().Do(func() {
			if err := s.Reload(ctx); err != nil {
				s.logger.Errorw("reload sync schedules", "err", err)
			}
		}); err != nil {
			return err
		}
	}
	s.cron.StartAsync()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}
