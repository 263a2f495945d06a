package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/notifier"
	"github.com/mauv0809/ideal-pong/internal/players"
)

// Job names.
const (
	JobCheckStalled = "check-stalled"
	JobArchive      = "archive-tournaments"
	JobLeaderboard  = "post-leaderboard"
)

const jobTimeout = time.Minute

// StalledChecker re-runs stuck bracket work and reports what is left.
type StalledChecker interface {
	CheckStalled(ctx context.Context) ([]bracket.Node, error)
}

// Archiver evicts settled tournaments from memory.
type Archiver interface {
	ArchiveExpired(ctx context.Context, retention time.Duration) (int, error)
}

type Options struct {
	HealthCheckInterval time.Duration
	Retention           time.Duration
	// LeaderboardHour is the local hour the daily leaderboard is posted at.
	LeaderboardHour uint
	DryRun          bool
	Clock           clockwork.Clock
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	sched    gocron.Scheduler
	checker  StalledChecker
	archiver Archiver
	players  players.PlayerStore
	notifier notifier.Notifier
	opts     Options
	jobs     map[string]gocron.Job
}

func New(checker StalledChecker, archiver Archiver, playerStore players.PlayerStore, n notifier.Notifier, opts Options) (*Scheduler, error) {
	var schedOpts []gocron.SchedulerOption
	if opts.Clock != nil {
		schedOpts = append(schedOpts, gocron.WithClock(opts.Clock))
	}
	sched, err := gocron.NewScheduler(schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		sched:    sched,
		checker:  checker,
		archiver: archiver,
		players:  playerStore,
		notifier: n,
		opts:     opts,
		jobs:     make(map[string]gocron.Job),
	}

	archiveEvery := max(opts.Retention/4, time.Minute)
	defs := []struct {
		name string
		def  gocron.JobDefinition
		run  func(ctx context.Context) error
	}{
		{JobCheckStalled, gocron.DurationJob(opts.HealthCheckInterval), s.CheckStalled},
		{JobArchive, gocron.DurationJob(archiveEvery), s.Archive},
		{JobLeaderboard, gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(opts.LeaderboardHour, 0, 0))), s.PostLeaderboard},
	}
	for _, d := range defs {
		job, err := sched.NewJob(d.def, gocron.NewTask(s.wrap(d.name, d.run)),
			gocron.WithName(d.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", d.name, err)
		}
		s.jobs[d.name] = job
	}
	return s, nil
}

func (s *Scheduler) wrap(name string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := run(ctx); err != nil {
			log.Error("Scheduled job failed", "job", name, "error", err)
			return
		}
		log.Debug("Scheduled job finished", "job", name, "duration", time.Since(start))
	}
}

func (s *Scheduler) Start() {
	s.sched.Start()
	log.Info("Scheduler started", "jobs", len(s.jobs))
}

// RunNow triggers a registered job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// CheckStalled is the bracket health check.
func (s *Scheduler) CheckStalled(ctx context.Context) error {
	stalled, err := s.checker.CheckStalled(ctx)
	if err != nil {
		return err
	}
	if len(stalled) > 0 {
		log.Warn("Bracket health check found stalled matches", "count", len(stalled))
	}
	return nil
}

// Archive evicts completed and cancelled tournaments older than the retention.
func (s *Scheduler) Archive(ctx context.Context) error {
	n, err := s.archiver.ArchiveExpired(ctx, s.opts.Retention)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("Archived tournaments", "count", n)
	}
	return nil
}

// PostLeaderboard sends the current standings to the notifier.
func (s *Scheduler) PostLeaderboard(ctx context.Context) error {
	stats, err := s.players.GetPlayerStats()
	if err != nil {
		return fmt.Errorf("failed to load player stats: %w", err)
	}
	return s.notifier.SendLeaderboard(stats, s.opts.DryRun)
}
