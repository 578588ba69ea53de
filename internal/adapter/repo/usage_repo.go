package repo

import (
	"context"
	"encoding/json"

	"talkingphoto/internal/infra"
	"talkingphoto/internal/sqlinline"
)

// UsageEvent is one recorded generation request, kept for the operations
// dashboard. It is analytics, not the entitlement counter.
type UsageEvent struct {
	RequestID  string
	EventType  string
	Provider   string
	Success    bool
	LatencyMS  int
	Locale     string
	Country    string
	Properties map[string]any
}

// UsageStat aggregates events of one type over the last day.
type UsageStat struct {
	EventType string `json:"event_type"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// UsageRepositoryPG records usage events in PostgreSQL.
type UsageRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUsageRepository constructs the repository.
func NewUsageRepository(sql infra.SQLExecutor) *UsageRepositoryPG {
	return &UsageRepositoryPG{sql: sql}
}

// Record inserts one usage event.
func (r *UsageRepositoryPG) Record(ctx context.Context, ev UsageEvent) error {
	props := ev.Properties
	if props == nil {
		props = map[string]any{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertUsageEvent,
		ev.RequestID,
		ev.EventType,
		ev.Provider,
		ev.Success,
		ev.LatencyMS,
		ev.Locale,
		ev.Country,
		propsJSON,
	)
	return err
}

// Stats24h returns per-event-type success and failure counts for the last
// 24 hours.
func (r *UsageRepositoryPG) Stats24h(ctx context.Context) ([]UsageStat, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QUsageStats24h)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []UsageStat
	for rows.Next() {
		var stat UsageStat
		if err := rows.Scan(&stat.EventType, &stat.Succeeded, &stat.Failed); err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}
