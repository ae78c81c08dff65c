package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "movies_backend_backup_last_success_timestamp_seconds",
	Help: "Unix time of the last successful database backup.",
})

func init() {
	prometheus.MustRegister(lastSuccess)
}

// Scheduler runs periodic backups in a background goroutine.
type Scheduler struct {
	backupFn func(ctx context.Context) error
	interval time.Duration
	timeout  time.Duration
	mu       sync.Mutex // one backup at a time (scheduled + on-demand)
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates and starts a periodic backup scheduler. backupFn is
// called on each tick with a context bounded by timeout (0 = no bound).
// If interval is 0, no goroutine is started.
func NewScheduler(backupFn func(ctx context.Context) error, interval, timeout time.Duration) *Scheduler {
	s := &Scheduler{
		backupFn: backupFn,
		interval: interval,
		timeout:  timeout,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if interval > 0 {
		go s.run()
	} else {
		close(s.done)
	}
	return s
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.RunOnce(ctx); err != nil {
		slog.Error("scheduled backup failed", "error", err)
	}
}

// RunOnce executes a single backup, serialized with scheduled runs.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.backupFn(ctx); err != nil {
		return err
	}
	lastSuccess.SetToCurrentTime()
	slog.Debug("backup finished", "duration", time.Since(start))
	return nil
}

// Shutdown stops the periodic scheduler and waits for it to finish.
func (s *Scheduler) Shutdown() {
	close(s.stop)
	<-s.done
}
