package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Monitor is one periodic due-scan.
type Monitor interface {
	Name() string
	Tick(ctx context.Context) error
}

// Job pairs a monitor with its tick interval.
type Job struct {
	Monitor  Monitor
	Interval time.Duration
}

// MonitorScheduler drives monitors from a cron engine. Ticks of all monitors
// share one mutex, so there is a single logical timeline per process.
type MonitorScheduler struct {
	mu          sync.Mutex
	cronEngine  *cron.Cron
	running     bool
	jobs        []Job
	tickMu      sync.Mutex
	tickTimeout time.Duration
	logger      *logrus.Entry
}

func NewMonitorScheduler(jobs []Job, tickTimeout time.Duration, logger *logrus.Entry) *MonitorScheduler {
	if tickTimeout <= 0 {
		tickTimeout = 5 * time.Minute
	}
	return &MonitorScheduler{
		jobs:        jobs,
		tickTimeout: tickTimeout,
		logger:      logger.WithField("component", "scheduler"),
	}
}

// Start runs one tick of every monitor right away, then schedules recurring
// ticks. Calling Start again before Stop does nothing.
func (s *MonitorScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("Scheduler already running. Ignoring duplicate start.")
		return nil
	}

	cronLogger := cron.PrintfLogger(s.logger)
	engine := cron.New(
		cron.WithLocation(time.Local),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("monitor %s has no tick interval", job.Monitor.Name())
		}
		monitor := job.Monitor
		spec := fmt.Sprintf("@every %s", job.Interval)
		if _, err := engine.AddFunc(spec, func() { s.RunTick(monitor) }); err != nil {
			return fmt.Errorf("could not schedule monitor %s: %w", monitor.Name(), err)
		}
		s.logger.WithFields(logrus.Fields{"monitor": monitor.Name(), "interval": job.Interval.String()}).Info("Monitor scheduled")
	}

	s.cronEngine = engine
	s.running = true

	for _, job := range s.jobs {
		s.RunTick(job.Monitor)
	}
	engine.Start()
	s.logger.Info("Monitor scheduler started.")
	return nil
}

// RunTick executes one tick of m, serialized with every other tick.
func (s *MonitorScheduler) RunTick(m Monitor) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
	defer cancel()

	log := s.logger.WithField("monitor", m.Name())
	log.Debug("Tick started")
	if err := m.Tick(ctx); err != nil {
		log.WithError(err).Error("Tick failed")
		return
	}
	log.Debug("Tick completed")
}

// Stop cancels future ticks and waits for an in-flight tick to finish.
// It is safe to call at any time and more than once.
func (s *MonitorScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	engine := s.cronEngine
	s.running = false
	s.cronEngine = nil
	s.mu.Unlock()

	s.logger.Info("Stopping monitor scheduler...")
	ctx := engine.Stop() // no new jobs start; ctx is done once running jobs return
	<-ctx.Done()
	s.logger.Info("Monitor scheduler gracefully stopped.")
}

// Running reports whether Start has been called without a matching Stop.
func (s *MonitorScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
