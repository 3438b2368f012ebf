package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"Gin_postgres_redis_equipment_tool/clock"
)

const reminderInterval = 24 * time.Hour

// Scanner sends overdue reminders and low-stock alerts. Reminders are
// claimed in the database so a request is reminded at most once a day even
// across restarts; low-stock alerts are deduplicated in memory.
type Scanner struct {
	store    Store
	monitor  *StockMonitor
	notifier Notifier
	clock    clock.Clock

	mu      sync.Mutex
	alerted map[string]time.Time
}

func NewScanner(store Store, monitor *StockMonitor, n Notifier, clk clock.Clock) *Scanner {
	return &Scanner{
		store:    store,
		monitor:  monitor,
		notifier: n,
		clock:    clk,
		alerted:  make(map[string]time.Time),
	}
}

type ScanResult struct {
	Reminded int
	Alerted  int
}

// RunOnce runs one scan cycle. Delivery failures are logged and do not
// stop the cycle.
func (s *Scanner) RunOnce(ctx context.Context) (res ScanResult, err error) {
	ctx, span := tracer.Start(ctx, "Scanner.RunOnce")
	defer func() { endSpan(span, err) }()

	now := s.clock.Now()
	reminded, remindErr := s.remindOverdue(ctx, now)
	res.Reminded = reminded
	alerted, alertErr := s.alertLowStock(ctx, now)
	res.Alerted = alerted
	return res, errors.Join(remindErr, alertErr)
}

func (s *Scanner) remindOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.store.ListOverdueRequests(ctx, now)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, o := range overdue {
		n, err := s.store.ClaimReminder(ctx, o.RequestID, now, now.Add(-reminderInterval))
		if err != nil {
			log.Printf("scanner: claim reminder %s: %v", o.RequestID, err)
			continue
		}
		if n == 0 {
			continue
		}
		if err := s.notifier.OverdueReminder(ctx, o.Email, o.EquipmentName, o.DueDate); err != nil {
			log.Printf("scanner: reminder to %s: %v", o.Email, err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Scanner) alertLowStock(ctx context.Context, now time.Time) (int, error) {
	low, err := s.monitor.LowStock(ctx)
	if err != nil {
		return 0, err
	}
	if len(low) == 0 {
		return 0, nil
	}
	admins, err := s.store.ListAdminEmails(ctx)
	if err != nil {
		return 0, err
	}
	if len(admins) == 0 {
		return 0, nil
	}

	sent := 0
	for _, g := range low {
		id := g.GroupKey + "|" + g.Name + "|" + g.Type
		if !s.claimAlert(id, now) {
			continue
		}
		if err := s.notifier.LowStockAlert(ctx, admins, g.GroupKey, g.Name, g.AvailableCount, g.StockThreshold); err != nil {
			log.Printf("scanner: low stock alert %s: %v", g.GroupKey, err)
			s.releaseAlert(id)
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Scanner) claimAlert(id string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.alerted[id]; ok && now.Sub(last) < reminderInterval {
		return false
	}
	s.alerted[id] = now
	return true
}

func (s *Scanner) releaseAlert(id string) {
	s.mu.Lock()
	delete(s.alerted, id)
	s.mu.Unlock()
}

// StartScanner runs s every interval until ctx is done. A failed cycle is
// logged and the next tick still runs.
func StartScanner(ctx context.Context, interval time.Duration, s *Scanner) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("scanner: started interval=%s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("scanner: stopped")
			return
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				log.Printf("scanner: cycle failed: %v", err)
				continue
			}
			if res.Reminded > 0 || res.Alerted > 0 {
				log.Printf("scanner: reminded=%d alerted=%d", res.Reminded, res.Alerted)
			}
		}
	}
}
