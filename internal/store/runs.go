package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run is the outcome of one time analysis: how the threshold was chosen
// and the error rates at the last reported time of each view.
type Run struct {
	ID             string    `json:"id"`
	Created        time.Time `json:"created"`
	Protocol       string    `json:"protocol"`
	Supports       []string  `json:"supports"`
	Criterion      string    `json:"criterion"` // "eer" or "hter"
	Threshold      float64   `json:"threshold"`
	RunningAverage bool      `json:"running_average"`
	WindowSize     int       `json:"window_size"`
	Overlap        int       `json:"overlap"`
	LastTime       int       `json:"last_time"`

	InstFAR  float64 `json:"inst_far"`
	InstFRR  float64 `json:"inst_frr"`
	InstHTER float64 `json:"inst_hter"`
	CumFAR   float64 `json:"cum_far"`
	CumFRR   float64 `json:"cum_frr"`
	CumHTER  float64 `json:"cum_hter"`
}

// RecordRun stores r, assigning an ID and creation time when unset.
func (db *DB) RecordRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_unix, protocol, supports, criterion, threshold,
			running_average, window_size, overlap, last_time,
			inst_far, inst_frr, inst_hter, cum_far, cum_frr, cum_hter
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Created.Unix(), r.Protocol, strings.Join(r.Supports, " "), r.Criterion, r.Threshold,
		r.RunningAverage, r.WindowSize, r.Overlap, r.LastTime,
		r.InstFAR, r.InstFRR, r.InstHTER, r.CumFAR, r.CumFRR, r.CumHTER)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns every recorded run, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, created_unix, protocol, supports, criterion, threshold,
			running_average, window_size, overlap, last_time,
			inst_far, inst_frr, inst_hter, cum_far, cum_frr, cum_hter
		FROM runs ORDER BY created_unix DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var created int64
		var supports string
		if err := rows.Scan(&r.ID, &created, &r.Protocol, &supports, &r.Criterion, &r.Threshold,
			&r.RunningAverage, &r.WindowSize, &r.Overlap, &r.LastTime,
			&r.InstFAR, &r.InstFRR, &r.InstHTER, &r.CumFAR, &r.CumFRR, &r.CumHTER); err != nil {
			return nil, err
		}
		r.Created = time.Unix(created, 0)
		r.Supports = strings.Fields(supports)
		out = append(out, r)
	}
	return out, rows.Err()
}
