package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AlertStore tracks which parts the stock watcher has already reported.
type AlertStore interface {
	AlertedParts(ctx context.Context) (map[int]StockAlert, error)
	MarkAlerted(ctx context.Context, alerts []StockAlert) error
	ClearAlerts(ctx context.Context, partIDs []int) error
}

// StockAlert records that a part was reported to the shop as low on stock.
type StockAlert struct {
	PartID      int
	StockStatus string
	NotifiedAt  time.Time
}

// AlertedParts returns every part that has an outstanding alert, keyed by part ID.
func (s *SQLiteStore) AlertedParts(ctx context.Context) (map[int]StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT part_id, stock_status, notified_at FROM stock_alerts")
	if err != nil {
		return nil, fmt.Errorf("failed to query stock alerts: %w", err)
	}
	defer rows.Close()

	alerts := make(map[int]StockAlert)
	for rows.Next() {
		var a StockAlert
		if err := rows.Scan(&a.PartID, &a.StockStatus, &a.NotifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock alert: %w", err)
		}
		alerts[a.PartID] = a
	}

	return alerts, rows.Err()
}

// MarkAlerted upserts alerts. A zero NotifiedAt is replaced with the current time.
func (s *SQLiteStore) MarkAlerted(ctx context.Context, alerts []StockAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range alerts {
		notifiedAt := a.NotifiedAt
		if notifiedAt.IsZero() {
			notifiedAt = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_alerts (part_id, stock_status, notified_at)
			VALUES (?, ?, ?)
			ON CONFLICT(part_id) DO UPDATE SET
				stock_status = excluded.stock_status,
				notified_at = excluded.notified_at
		`, a.PartID, a.StockStatus, notifiedAt)
		if err != nil {
			return fmt.Errorf("failed to mark part %d alerted: %w", a.PartID, err)
		}
	}

	return tx.Commit()
}

// ClearAlerts forgets alerts for parts that are back in stock.
func (s *SQLiteStore) ClearAlerts(ctx context.Context, partIDs []int) error {
	if len(partIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range partIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM stock_alerts WHERE part_id = ?", id); err != nil {
			return fmt.Errorf("failed to clear alert for part %d: %w", id, err)
		}
	}

	return tx.Commit()
}

func (s *MemoryStore) AlertedParts(context.Context) (map[int]StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alerts := make(map[int]StockAlert, len(s.alerts))
	for id, a := range s.alerts {
		alerts[id] = a
	}
	return alerts, nil
}

func (s *MemoryStore) MarkAlerted(_ context.Context, alerts []StockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alerts {
		if a.NotifiedAt.IsZero() {
			a.NotifiedAt = time.Now()
		}
		s.alerts[a.PartID] = a
	}
	return nil
}

func (s *MemoryStore) ClearAlerts(_ context.Context, partIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range partIDs {
		delete(s.alerts, id)
	}
	return nil
}

// Redis keeps alerts in one hash; each field is the part ID and each value
// "STATUS|unix-seconds".
const redisAlertsKey = "stock_alerts"

func (s *RedisStore) AlertedParts(ctx context.Context) (map[int]StockAlert, error) {
	fields, err := s.client.HGetAll(ctx, s.key(redisAlertsKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query stock alerts: %w", err)
	}

	alerts := make(map[int]StockAlert, len(fields))
	for field, value := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid stock alert part id %q: %w", field, err)
		}
		status, ts, _ := strings.Cut(value, "|")
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid stock alert timestamp for part %d: %w", id, err)
		}
		alerts[id] = StockAlert{PartID: id, StockStatus: status, NotifiedAt: time.Unix(unix, 0)}
	}
	return alerts, nil
}

func (s *RedisStore) MarkAlerted(ctx context.Context, alerts []StockAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	values := make([]any, 0, len(alerts)*2)
	for _, a := range alerts {
		notifiedAt := a.NotifiedAt
		if notifiedAt.IsZero() {
			notifiedAt = time.Now()
		}
		values = append(values, strconv.Itoa(a.PartID), fmt.Sprintf("%s|%d", a.StockStatus, notifiedAt.Unix()))
	}

	if err := s.client.HSet(ctx, s.key(redisAlertsKey), values...).Err(); err != nil {
		return fmt.Errorf("failed to mark parts alerted: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearAlerts(ctx context.Context, partIDs []int) error {
	if len(partIDs) == 0 {
		return nil
	}

	fields := make([]string, len(partIDs))
	for i, id := range partIDs {
		fields[i] = strconv.Itoa(id)
	}
	if err := s.client.HDel(ctx, s.key(redisAlertsKey), fields...).Err(); err != nil {
		return fmt.Errorf("failed to clear stock alerts: %w", err)
	}
	return nil
}
