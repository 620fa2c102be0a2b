// Package watcher polls the shop's low-stock report and notifies a Telegram
// chat when parts run low or become critical.
package watcher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vespa-garage/vespa-admin/internal/storage"
	"github.com/vespa-garage/vespa-admin/internal/vespa"
)

const (
	// DefaultPollInterval is the time between polling cycles.
	DefaultPollInterval = 10 * time.Minute

	// InitialDelay lets the rest of the agent start before the first poll.
	InitialDelay = 5 * time.Second
)

// StockSource provides the current low-stock report.
type StockSource interface {
	GetLowStockParts(ctx context.Context) (*vespa.LowStockReport, error)
}

// Notifier delivers a batch of stock alerts.
type Notifier interface {
	NotifyLowStock(ctx context.Context, parts []vespa.LowStockPart) error
}

// Service is the background watcher that polls for low stock.
type Service struct {
	source       StockSource
	alerts       storage.AlertStore
	notifier     Notifier
	pollInterval time.Duration
	initialDelay time.Duration
}

// NewService creates a new watcher service. A non-positive interval falls
// back to DefaultPollInterval.
func NewService(source StockSource, alerts storage.AlertStore, notifier Notifier, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Service{
		source:       source,
		alerts:       alerts,
		notifier:     notifier,
		pollInterval: interval,
		initialDelay: InitialDelay,
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.pollInterval).Msg("starting stock watcher")

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.initialDelay):
	}
	s.poll(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stock watcher stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Service) poll(ctx context.Context) {
	if err := s.Poll(ctx); err != nil {
		if vespa.IsSessionExpired(err) {
			log.Error().Err(err).Msg("stock poll failed: session expired, run `vespactl login` to sign in again")
			return
		}
		log.Error().Err(err).Msg("stock poll failed")
	}
}

// Poll runs one cycle. Parts are notified when they first appear in the
// report or escalate from LOW to CRITICAL. A part that drops back from
// CRITICAL to LOW is recorded without a notification. Alerts for parts that
// left the report are cleared so a later shortage is reported again.
func (s *Service) Poll(ctx context.Context) error {
	log.Debug().Msg("starting stock poll")

	report, err := s.source.GetLowStockParts(ctx)
	if err != nil {
		return err
	}

	alerted, err := s.alerts.AlertedParts(ctx)
	if err != nil {
		return err
	}

	var (
		fresh      []vespa.LowStockPart
		downgraded []storage.StockAlert
		current    = make(map[int]bool)
	)
	for _, part := range report.Parts() {
		current[part.ID] = true
		prev, ok := alerted[part.ID]
		switch {
		case !ok || (part.IsCritical() && prev.StockStatus != vespa.StockStatusCritical):
			fresh = append(fresh, part)
		case !part.IsCritical() && prev.StockStatus == vespa.StockStatusCritical:
			// Track the drop back to LOW so a second escalation is notified.
			downgraded = append(downgraded, storage.StockAlert{
				PartID:      part.ID,
				StockStatus: part.StockStatus,
				NotifiedAt:  prev.NotifiedAt,
			})
		}
	}

	if err := s.alerts.MarkAlerted(ctx, downgraded); err != nil {
		log.Error().Err(err).Msg("failed to record stock status downgrades")
	}

	var recovered []int
	for id := range alerted {
		if !current[id] {
			recovered = append(recovered, id)
		}
	}
	if err := s.alerts.ClearAlerts(ctx, recovered); err != nil {
		log.Error().Err(err).Ints("partIDs", recovered).Msg("failed to clear recovered stock alerts")
	} else if len(recovered) > 0 {
		log.Info().Int("count", len(recovered)).Msg("parts back in stock")
	}

	if len(fresh) == 0 {
		log.Debug().Int("alerts", report.TotalAlerts).Msg("no new stock alerts")
		return nil
	}

	log.Info().Int("new", len(fresh)).Int("total", report.TotalAlerts).Msg("found new stock alerts")

	// Only mark after a successful send so a failed delivery is retried next cycle.
	if err := s.notifier.NotifyLowStock(ctx, fresh); err != nil {
		return err
	}

	marks := make([]storage.StockAlert, len(fresh))
	for i, part := range fresh {
		marks[i] = storage.StockAlert{PartID: part.ID, StockStatus: part.StockStatus}
	}
	if err := s.alerts.MarkAlerted(ctx, marks); err != nil {
		log.Error().Err(err).Msg("failed to record stock alerts")
	}
	return nil
}
