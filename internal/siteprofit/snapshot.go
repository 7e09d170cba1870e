package siteprofit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitebooks/sitebooks/internal/platform/db"
)

// ErrSnapshotWindow is returned when a snapshot is requested without a closed window.
var ErrSnapshotWindow = errors.New("siteprofit: snapshot window requires from and to")

// SnapshotStore persists captured summaries.
type SnapshotStore interface {
	ReplaceSnapshots(ctx context.Context, from, to, capturedAt time.Time, rows []Summary) error
	ListSnapshots(ctx context.Context, filter Filter) ([]Snapshot, error)
}

// Summarizer produces the summaries a snapshot captures.
type Summarizer interface {
	Summaries(ctx context.Context, filter Filter) ([]Summary, error)
}

// SnapshotService captures the report for a window and stores it for later comparison.
type SnapshotService struct {
	summaries Summarizer
	store     SnapshotStore
	now       func() time.Time
}

// NewSnapshotService wires the aggregator with a snapshot store.
func NewSnapshotService(summaries Summarizer, store SnapshotStore) *SnapshotService {
	return &SnapshotService{
		summaries: summaries,
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the capture clock for testing.
func (s *SnapshotService) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// MonthToDate returns the window from the first day of now's month to now's date.
func MonthToDate(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Capture computes summaries for every site within [from, to] and replaces any
// snapshot previously stored for the same window. It returns the number of rows stored.
func (s *SnapshotService) Capture(ctx context.Context, from, to time.Time) (int, error) {
	if from.IsZero() || to.IsZero() {
		return 0, ErrSnapshotWindow
	}
	if from.After(to) {
		return 0, fmt.Errorf("%w: from must not be after to", ErrInvalidFilter)
	}
	rows, err := s.summaries.Summaries(ctx, Filter{From: from, To: to})
	if err != nil {
		return 0, err
	}
	if err := s.store.ReplaceSnapshots(ctx, from, to, s.now(), rows); err != nil {
		return 0, fmt.Errorf("siteprofit: store snapshot: %w", err)
	}
	return len(rows), nil
}

// List returns stored snapshots whose window lies within the filter bounds,
// narrowed to filter.SiteID when set.
func (s *SnapshotService) List(ctx context.Context, filter Filter) ([]Snapshot, error) {
	snapshots, err := s.store.ListSnapshots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("siteprofit: list snapshots: %w", err)
	}
	return snapshots, nil
}

const (
	deleteSnapshotsSQL = `DELETE FROM site_profit_snapshots WHERE period_from = $1 AND period_to = $2`

	insertSnapshotSQL = `
INSERT INTO site_profit_snapshots (
	id, period_from, period_to, captured_at, site_id, site_name, department, status,
	expenses, amount_received, profit, material_purchase_cost, labour_contractor_cost
) VALUES ($1, $2, $3, $4, $5::uuid, $6, $7, $8, $9::numeric, $10::numeric, $11::numeric, $12::numeric, $13::numeric)`

	listSnapshotsSQL = `
SELECT id::text, period_from, period_to, captured_at, site_id::text, site_name, department, status,
	expenses::text, amount_received::text, profit::text, material_purchase_cost::text, labour_contractor_cost::text
FROM site_profit_snapshots
WHERE ($1::text = '' OR site_id::text = $1)
  AND ($2::date IS NULL OR period_from >= $2::date)
  AND ($3::date IS NULL OR period_to <= $3::date)
ORDER BY period_from DESC, period_to DESC, site_name ASC`
)

var _ SnapshotStore = (*pgSnapshotStore)(nil)

type pgSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository returns a SnapshotStore backed by PostgreSQL.
func NewSnapshotRepository(pool *pgxpool.Pool) SnapshotStore {
	return &pgSnapshotStore{pool: pool}
}

func (r *pgSnapshotStore) ReplaceSnapshots(ctx context.Context, from, to, capturedAt time.Time, rows []Summary) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteSnapshotsSQL, dateParam(from), dateParam(to)); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(insertSnapshotSQL,
				uuid.New(), dateParam(from), dateParam(to), capturedAt,
				row.SiteID, row.SiteName, row.Department, row.Status,
				row.Expenses.String(), row.AmountReceived.String(), row.Profit.String(),
				row.MaterialPurchaseCost.String(), row.LabourContractorCost.String(),
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *pgSnapshotStore) ListSnapshots(ctx context.Context, filter Filter) ([]Snapshot, error) {
	rows, err := r.pool.Query(ctx, listSnapshotsSQL, filterArgs(filter)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			snap                                         Snapshot
			expenses, received, profit, material, labour string
		)
		if err := rows.Scan(
			&snap.ID, &snap.PeriodFrom, &snap.PeriodTo, &snap.CapturedAt,
			&snap.SiteID, &snap.SiteName, &snap.Department, &snap.Status,
			&expenses, &received, &profit, &material, &labour,
		); err != nil {
			return nil, err
		}
		if snap.Expenses, err = scanDecimal(expenses); err != nil {
			return nil, err
		}
		if snap.AmountReceived, err = scanDecimal(received); err != nil {
			return nil, err
		}
		if snap.Profit, err = scanDecimal(profit); err != nil {
			return nil, err
		}
		if snap.MaterialPurchaseCost, err = scanDecimal(material); err != nil {
			return nil, err
		}
		if snap.LabourContractorCost, err = scanDecimal(labour); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
