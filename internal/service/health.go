package service

import (
	"context"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/metrics"
)

type CronReport struct {
	SweepIntervalMs int64  `json:"sweepIntervalMs"`
	LastSweepAt     *int64 `json:"lastSweepAt"`
	LastSweepISO    string `json:"lastSweepIso,omitempty"`
	NextSweepAt     *int64 `json:"nextSweepAt"`
	NextSweepISO    string `json:"nextSweepIso,omitempty"`
}

// HealthReport - ответ GET /admin/pvp/health
type HealthReport struct {
	ServerNow    int64          `json:"serverNow"`
	ServerNowISO string         `json:"serverNowIso"`
	Cron         CronReport     `json:"cron"`
	UptimeSec    int64          `json:"uptimeSec"`
	Counts       map[string]int `json:"counts"`
	Stale        map[string]int `json:"stale"`
	Review       int            `json:"review"`
}

// HealthService собирает отчет для операторов. Счетчики берутся из
// хранилища в момент запроса, чтобы stale соответствовал serverNow.
type HealthService struct {
	svc       *PvPService
	sweeper   *Sweeper
	startedAt time.Time
}

func NewHealthService(svc *PvPService, sweeper *Sweeper) *HealthService {
	return &HealthService{svc: svc, sweeper: sweeper, startedAt: svc.Now()}
}

func (h *HealthService) Report(ctx context.Context) (*HealthReport, error) {
	now := h.svc.Now()
	stats, err := h.svc.store.Stats(ctx, now)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStats(stats)

	report := &HealthReport{
		ServerNow:    now.UnixMilli(),
		ServerNowISO: isoTime(now),
		UptimeSec:    int64(now.Sub(h.startedAt).Seconds()),
		Counts:       make(map[string]int, len(stats.Counts)),
		Stale:        make(map[string]int, len(stats.Stale)),
		Review:       stats.Review,
	}
	for _, st := range domain.RoomStatuses {
		report.Counts[string(st)] = stats.Counts[st]
	}
	for _, gt := range domain.GameTypes {
		report.Stale[string(gt)] = stats.Stale[gt]
	}

	if h.sweeper != nil {
		status := h.sweeper.Status()
		report.Cron.SweepIntervalMs = status.Interval.Milliseconds()
		if !status.LastSweep.IsZero() {
			last := status.LastSweep.UnixMilli()
			next := status.NextSweep.UnixMilli()
			report.Cron.LastSweepAt = &last
			report.Cron.LastSweepISO = isoTime(status.LastSweep)
			report.Cron.NextSweepAt = &next
			report.Cron.NextSweepISO = isoTime(status.NextSweep)
		}
	}
	return report, nil
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
