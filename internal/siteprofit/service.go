package siteprofit

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Store exposes the read queries the aggregator relies on.
type Store interface {
	ListSites(ctx context.Context, siteID string) ([]Site, error)
	SumTransactionsGroupedByNature(ctx context.Context, filter Filter) ([]NatureTotal, error)
	ListMaterialEntries(ctx context.Context, filter Filter) ([]MaterialEntry, error)
	SumLabourPaymentsGroupedBySite(ctx context.Context, filter Filter) ([]LabourTotal, error)
}

// ServiceConfig tunes the aggregator.
type ServiceConfig struct {
	// MissingDepartment labels sites without a department. Defaults to "N/A".
	MissingDepartment string
	// MaxParallelReads bounds concurrent store reads; 1 runs them sequentially.
	MaxParallelReads int
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.MissingDepartment == "" {
		c.MissingDepartment = DefaultMissingDepartment
	}
	if c.MaxParallelReads <= 0 {
		c.MaxParallelReads = 4
	}
	return c
}

// Service computes per-site profit summaries.
type Service struct {
	store Store
	cfg   ServiceConfig
}

// NewService wires a Store with the aggregator configuration.
func NewService(store Store, cfg ServiceConfig) *Service {
	return &Service{store: store, cfg: cfg.withDefaults()}
}

type siteTotals struct {
	debit    decimal.Decimal
	credit   decimal.Decimal
	material decimal.Decimal
	labour   decimal.Decimal
}

// Summaries returns one summary per site matching filter.SiteID, in the store's
// site order. Date bounds only narrow the ledgers being folded, never the sites.
func (s *Service) Summaries(ctx context.Context, filter Filter) ([]Summary, error) {
	var (
		sites     []Site
		natures   []NatureTotal
		materials []MaterialEntry
		labour    []LabourTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallelReads)
	g.Go(func() error {
		var err error
		if sites, err = s.store.ListSites(gctx, filter.SiteID); err != nil {
			return fmt.Errorf("siteprofit: list sites: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if natures, err = s.store.SumTransactionsGroupedByNature(gctx, filter); err != nil {
			return fmt.Errorf("siteprofit: sum transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if materials, err = s.store.ListMaterialEntries(gctx, filter); err != nil {
			return fmt.Errorf("siteprofit: list material entries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if labour, err = s.store.SumLabourPaymentsGroupedBySite(gctx, filter); err != nil {
			return fmt.Errorf("siteprofit: sum labour payments: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals := make(map[string]*siteTotals, len(sites))
	bucket := func(siteID string) *siteTotals {
		t, ok := totals[siteID]
		if !ok {
			t = &siteTotals{}
			totals[siteID] = t
		}
		return t
	}
	for _, row := range natures {
		switch row.Nature {
		case NatureDebit:
			t := bucket(row.SiteID)
			t.debit = t.debit.Add(row.Amount)
		case NatureCredit:
			t := bucket(row.SiteID)
			t.credit = t.credit.Add(row.Amount)
		}
	}
	for _, entry := range materials {
		t := bucket(entry.SiteID)
		t.material = t.material.Add(MaterialCost(entry))
	}
	for _, row := range labour {
		t := bucket(row.SiteID)
		t.labour = t.labour.Add(row.Amount)
	}

	out := make([]Summary, 0, len(sites))
	for _, site := range sites {
		t, ok := totals[site.ID]
		if !ok {
			t = &siteTotals{}
		}
		expenses := t.debit.Add(t.material).Add(t.labour)
		department := site.Department
		if strings.TrimSpace(department) == "" {
			department = s.cfg.MissingDepartment
		}
		out = append(out, Summary{
			SiteID:               site.ID,
			Department:           department,
			SiteName:             site.Name,
			Expenses:             expenses,
			AmountReceived:       t.credit,
			Profit:               t.credit.Sub(expenses),
			Status:               site.Status,
			MaterialPurchaseCost: t.material,
			LabourContractorCost: t.labour,
		})
	}
	return out, nil
}

// MaterialCost returns the entry's total amount when it is a well-formed number,
// otherwise quantity times rate with unusable operands counted as zero.
func MaterialCost(entry MaterialEntry) decimal.Decimal {
	if total, ok := parseAmount(entry.TotalAmt); ok {
		return total
	}
	qty, _ := parseAmount(entry.Qty)
	rate, _ := parseAmount(entry.Rate)
	return qty.Mul(rate)
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}
