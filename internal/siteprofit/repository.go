package siteprofit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	listSitesSQL = `
SELECT s.id::text, s.name, COALESCE(d.name, ''), s.status
FROM sites s
LEFT JOIN departments d ON d.id = s.department_id
WHERE s.is_deleted = FALSE
  AND ($1::text = '' OR s.id::text = $1)
ORDER BY s.name ASC`

	sumTransactionsSQL = `
SELECT site_id::text, nature, COALESCE(SUM(amount), 0)::text
FROM site_transactions
WHERE is_deleted = FALSE
  AND ($1::text = '' OR site_id::text = $1)
  AND ($2::date IS NULL OR txn_date >= $2::date)
  AND ($3::date IS NULL OR txn_date <= $3::date)
GROUP BY site_id, nature`

	listMaterialEntriesSQL = `
SELECT site_id::text, COALESCE(qty::text, ''), COALESCE(rate::text, ''), COALESCE(total_amt::text, '')
FROM material_supplier_ledger
WHERE is_deleted = FALSE
  AND ($1::text = '' OR site_id::text = $1)
  AND ($2::date IS NULL OR entry_date >= $2::date)
  AND ($3::date IS NULL OR entry_date <= $3::date)`

	sumLabourPaymentsSQL = `
SELECT site_id::text, COALESCE(SUM(amount), 0)::text
FROM labour_payments
WHERE is_deleted = FALSE
  AND ($1::text = '' OR site_id::text = $1)
  AND ($2::date IS NULL OR payment_date >= $2::date)
  AND ($3::date IS NULL OR payment_date <= $3::date)
GROUP BY site_id`
)

// Ensure implementation
var _ Store = (*pgStore)(nil)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Store backed by PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (r *pgStore) ListSites(ctx context.Context, siteID string) ([]Site, error) {
	rows, err := r.pool.Query(ctx, listSitesSQL, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.ID, &site.Name, &site.Department, &site.Status); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (r *pgStore) SumTransactionsGroupedByNature(ctx context.Context, filter Filter) ([]NatureTotal, error) {
	rows, err := r.pool.Query(ctx, sumTransactionsSQL, filterArgs(filter)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []NatureTotal
	for rows.Next() {
		var (
			row    NatureTotal
			nature string
			amount string
		)
		if err := rows.Scan(&row.SiteID, &nature, &amount); err != nil {
			return nil, err
		}
		row.Nature = Nature(nature)
		if row.Amount, err = scanDecimal(amount); err != nil {
			return nil, err
		}
		totals = append(totals, row)
	}
	return totals, rows.Err()
}

func (r *pgStore) ListMaterialEntries(ctx context.Context, filter Filter) ([]MaterialEntry, error) {
	rows, err := r.pool.Query(ctx, listMaterialEntriesSQL, filterArgs(filter)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []MaterialEntry
	for rows.Next() {
		var entry MaterialEntry
		if err := rows.Scan(&entry.SiteID, &entry.Qty, &entry.Rate, &entry.TotalAmt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *pgStore) SumLabourPaymentsGroupedBySite(ctx context.Context, filter Filter) ([]LabourTotal, error) {
	rows, err := r.pool.Query(ctx, sumLabourPaymentsSQL, filterArgs(filter)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []LabourTotal
	for rows.Next() {
		var (
			row    LabourTotal
			amount string
		)
		if err := rows.Scan(&row.SiteID, &amount); err != nil {
			return nil, err
		}
		if row.Amount, err = scanDecimal(amount); err != nil {
			return nil, err
		}
		totals = append(totals, row)
	}
	return totals, rows.Err()
}

func filterArgs(filter Filter) []any {
	return []any{filter.SiteID, dateParam(filter.From), dateParam(filter.To)}
}

func dateParam(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func scanDecimal(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("siteprofit: scan numeric %q: %w", raw, err)
	}
	return v, nil
}
