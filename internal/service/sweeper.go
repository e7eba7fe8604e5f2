package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/logger"
	"battle_rooms/internal/metrics"
)

const (
	DefaultSweepInterval = time.Second
	DefaultSweepBatch    = 100
)

// SweepStatus - состояние фонового процесса для health-отчета
type SweepStatus struct {
	Interval  time.Duration
	LastSweep time.Time
	NextSweep time.Time
	Stats     domain.RoomStats
	// итог последнего прохода
	Resolved int
	Flagged  int
	Failed   int
}

// Sweeper периодически разрешает комнаты с наступившим дедлайном.
// Несколько инстансов могут работать одновременно: захват идет через CAS.
type Sweeper struct {
	svc      *PvPService
	interval time.Duration
	batch    int
	log      *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
	status  SweepStatus
}

// NewSweeper создает новый sweeper
func NewSweeper(svc *PvPService, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		batch:    batch,
		log:      logger.Component("sweeper"),
		status:   SweepStatus{Interval: interval, Stats: domain.NewRoomStats()},
	}
}

func (w *Sweeper) Interval() time.Duration { return w.interval }

// Start запускает sweeper в фоновом режиме
func (w *Sweeper) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	stop, done := w.stop, w.done
	w.mu.Unlock()

	w.log.Info("запуск sweeper", "interval", w.interval, "batch", w.batch)

	go func() {
		defer close(done)

		// первый проход сразу: после рестарта могли накопиться дедлайны
		w.SweepOnce(context.Background())

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.SweepOnce(context.Background())
			case <-stop:
				w.log.Info("остановка sweeper")
				return
			}
		}
	}()
}

// Stop останавливает sweeper и ждет завершения текущего прохода
func (w *Sweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stop)
	w.running = false
	done := w.done
	w.mu.Unlock()
	<-done
}

// SweepOnce - один проход: срез, разрешение просроченных, обновление счетчиков
func (w *Sweeper) SweepOnce(ctx context.Context) SweepStatus {
	started := time.Now()
	now := w.svc.Now()

	due, err := w.svc.store.DueRooms(ctx, now, w.batch)
	if err != nil {
		w.log.Error("due rooms query failed", "error", err)
	}

	var resolved, flagged, failed int
	for _, r := range due {
		rctx := logger.WithRoom(ctx, r.ID)
		ev, err := w.svc.ResolveDue(rctx, r.ID)
		switch {
		case IsUnderReview(err):
			flagged++
			metrics.SweepResolutions.WithLabelValues("flagged").Inc()
		case err != nil:
			// комнату могли удалить или забрать другим инстансом
			failed++
			metrics.SweepResolutions.WithLabelValues("failed").Inc()
			logger.WithContext(rctx, w.log).Warn("resolve failed", "error", err)
		case ev != "":
			resolved++
			metrics.SweepResolutions.WithLabelValues(string(ev)).Inc()
		}
	}

	// счетчики после разрешения: stale показывает то, что осталось
	stats, err := w.svc.store.Stats(ctx, w.svc.Now())
	if err != nil {
		w.log.Error("room stats failed", "error", err)
		stats = domain.NewRoomStats()
	} else {
		metrics.ObserveStats(stats)
	}
	metrics.SweepDuration.Observe(time.Since(started).Seconds())

	if resolved+flagged+failed > 0 {
		w.log.Debug("sweep pass", "due", len(due), "resolved", resolved, "flagged", flagged, "failed", failed)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = SweepStatus{
		Interval:  w.interval,
		LastSweep: now,
		NextSweep: now.Add(w.interval),
		Stats:     stats,
		Resolved:  resolved,
		Flagged:   flagged,
		Failed:    failed,
	}
	return w.status
}

// Status возвращает итог последнего прохода
func (w *Sweeper) Status() SweepStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}
