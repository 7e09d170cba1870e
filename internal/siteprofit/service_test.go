package siteprofit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTxn struct {
	siteID string
	nature Nature
	amount string
	date   time.Time
}

type memMaterial struct {
	entry MaterialEntry
	date  time.Time
}

type memLabour struct {
	siteID string
	amount string
	date   time.Time
}

type memoryStore struct {
	mu        sync.Mutex
	sites     []Site
	txns      []memTxn
	materials []memMaterial
	labour    []memLabour
	failOn    string
	calls     map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{calls: make(map[string]int)}
}

func (m *memoryStore) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if m.failOn == op {
		return errors.New("connection reset by peer")
	}
	return nil
}

func inWindow(f Filter, siteID string, date time.Time) bool {
	if f.SiteID != "" && f.SiteID != siteID {
		return false
	}
	if f.HasFrom() && date.Before(f.From) {
		return false
	}
	if f.HasTo() && date.After(f.To) {
		return false
	}
	return true
}

func (m *memoryStore) ListSites(ctx context.Context, siteID string) ([]Site, error) {
	if err := m.record("sites"); err != nil {
		return nil, err
	}
	var out []Site
	for _, s := range m.sites {
		if siteID == "" || s.ID == siteID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) SumTransactionsGroupedByNature(ctx context.Context, f Filter) ([]NatureTotal, error) {
	if err := m.record("transactions"); err != nil {
		return nil, err
	}
	type key struct {
		site   string
		nature Nature
	}
	sums := map[key]decimal.Decimal{}
	var order []key
	for _, t := range m.txns {
		if !inWindow(f, t.siteID, t.date) {
			continue
		}
		k := key{t.siteID, t.nature}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] = sums[k].Add(decimal.RequireFromString(t.amount))
	}
	out := make([]NatureTotal, 0, len(order))
	for _, k := range order {
		out = append(out, NatureTotal{SiteID: k.site, Nature: k.nature, Amount: sums[k]})
	}
	return out, nil
}

func (m *memoryStore) ListMaterialEntries(ctx context.Context, f Filter) ([]MaterialEntry, error) {
	if err := m.record("materials"); err != nil {
		return nil, err
	}
	var out []MaterialEntry
	for _, e := range m.materials {
		if inWindow(f, e.entry.SiteID, e.date) {
			out = append(out, e.entry)
		}
	}
	return out, nil
}

func (m *memoryStore) SumLabourPaymentsGroupedBySite(ctx context.Context, f Filter) ([]LabourTotal, error) {
	if err := m.record("labour"); err != nil {
		return nil, err
	}
	sums := map[string]decimal.Decimal{}
	var order []string
	for _, l := range m.labour {
		if !inWindow(f, l.siteID, l.date) {
			continue
		}
		if _, ok := sums[l.siteID]; !ok {
			order = append(order, l.siteID)
		}
		sums[l.siteID] = sums[l.siteID].Add(decimal.RequireFromString(l.amount))
	}
	out := make([]LabourTotal, 0, len(order))
	for _, id := range order {
		out = append(out, LabourTotal{SiteID: id, Amount: sums[id]})
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "%s: want %s got %s", field, want, got.String())
}

// devSiteStore builds the worked example: a site with one debit, one credit,
// material costing 3000 and labour costing 2000, plus an idle site.
func devSiteStore() *memoryStore {
	store := newMemoryStore()
	store.sites = []Site{
		{ID: "site-dev", Name: "Dev Site", Department: "Civil", Status: "ACTIVE"},
		{ID: "site-idle", Name: "Anchor Yard", Status: "ON_HOLD"},
	}
	store.txns = []memTxn{
		{siteID: "site-dev", nature: NatureDebit, amount: "5000", date: day("2025-01-10")},
		{siteID: "site-dev", nature: NatureCredit, amount: "20000", date: day("2025-01-15")},
	}
	store.materials = []memMaterial{
		{entry: MaterialEntry{SiteID: "site-dev", Qty: "10", Rate: "200", TotalAmt: ""}, date: day("2025-01-12")},
		{entry: MaterialEntry{SiteID: "site-dev", Qty: "3", Rate: "999", TotalAmt: "1000"}, date: day("2025-01-20")},
	}
	store.labour = []memLabour{
		{siteID: "site-dev", amount: "1500", date: day("2025-01-11")},
		{siteID: "site-dev", amount: "500", date: day("2025-01-25")},
	}
	return store
}

func findSummary(t *testing.T, rows []Summary, siteID string) Summary {
	t.Helper()
	for _, row := range rows {
		if row.SiteID == siteID {
			return row
		}
	}
	t.Fatalf("site %s missing from %v", siteID, rows)
	return Summary{}
}

func TestSummariesWorkedExample(t *testing.T) {
	svc := NewService(devSiteStore(), ServiceConfig{})

	rows, err := svc.Summaries(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	dev := findSummary(t, rows, "site-dev")
	assert.Equal(t, "Dev Site", dev.SiteName)
	assert.Equal(t, "Civil", dev.Department)
	assert.Equal(t, "ACTIVE", dev.Status)
	assertAmount(t, "10000", dev.Expenses, "expenses")
	assertAmount(t, "20000", dev.AmountReceived, "amountReceived")
	assertAmount(t, "10000", dev.Profit, "profit")
	assertAmount(t, "3000", dev.MaterialPurchaseCost, "materialPurchaseCost")
	assertAmount(t, "2000", dev.LabourContractorCost, "labourContractorCost")
}

func TestSummariesIdleSiteIsZeroed(t *testing.T) {
	svc := NewService(devSiteStore(), ServiceConfig{})

	rows, err := svc.Summaries(context.Background(), Filter{})
	require.NoError(t, err)

	idle := findSummary(t, rows, "site-idle")
	assert.Equal(t, DefaultMissingDepartment, idle.Department)
	for field, v := range map[string]decimal.Decimal{
		"expenses":             idle.Expenses,
		"amountReceived":       idle.AmountReceived,
		"profit":               idle.Profit,
		"materialPurchaseCost": idle.MaterialPurchaseCost,
		"labourContractorCost": idle.LabourContractorCost,
	} {
		assertAmount(t, "0", v, field)
	}
}

func TestSummariesOrderedBySiteName(t *testing.T) {
	store := newMemoryStore()
	store.sites = []Site{
		{ID: "c", Name: "Charlie Tower"},
		{ID: "a", Name: "Alpha Bridge"},
		{ID: "b", Name: "Bravo Mall"},
	}
	store.txns = []memTxn{
		{siteID: "c", nature: NatureCredit, amount: "1", date: day("2025-02-01")},
		{siteID: "b", nature: NatureDebit, amount: "2", date: day("2025-02-01")},
		{siteID: "a", nature: NatureDebit, amount: "3", date: day("2025-02-01")},
	}
	store.labour = []memLabour{
		{siteID: "c", amount: "4", date: day("2025-02-02")},
		{siteID: "a", amount: "5", date: day("2025-02-02")},
	}
	svc := NewService(store, ServiceConfig{})

	rows, err := svc.Summaries(context.Background(), Filter{})
	require.NoError(t, err)

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.SiteName)
	}
	assert.Equal(t, []string{"Alpha Bridge", "Bravo Mall", "Charlie Tower"}, names)
}

func TestSummariesSiteFilter(t *testing.T) {
	svc := NewService(devSiteStore(), ServiceConfig{})

	rows, err := svc.Summaries(context.Background(), Filter{SiteID: "site-dev"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "site-dev", rows[0].SiteID)
	assertAmount(t, "10000", rows[0].Profit, "profit")

	rows, err = svc.Summaries(context.Background(), Filter{SiteID: "does-not-exist"})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSummariesDateWindowNarrowsLedgersNotSites(t *testing.T) {
	svc := NewService(devSiteStore(), ServiceConfig{})

	filter := Filter{From: day("2025-01-11"), To: day("2025-01-15")}
	rows, err := svc.Summaries(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, rows, 2, "date bounds must not drop sites")

	dev := findSummary(t, rows, "site-dev")
	// In window: CREDIT 20000 (15th), material 10x200 (12th), labour 1500 (11th).
	assertAmount(t, "0", dev.Expenses.Sub(dev.MaterialPurchaseCost).Sub(dev.LabourContractorCost), "debit")
	assertAmount(t, "2000", dev.MaterialPurchaseCost, "materialPurchaseCost")
	assertAmount(t, "1500", dev.LabourContractorCost, "labourContractorCost")
	assertAmount(t, "3500", dev.Expenses, "expenses")
	assertAmount(t, "20000", dev.AmountReceived, "amountReceived")
	assertAmount(t, "16500", dev.Profit, "profit")
}

func TestSummariesBoundsAreInclusive(t *testing.T) {
	svc := NewService(devSiteStore(), ServiceConfig{})

	rows, err := svc.Summaries(context.Background(), Filter{From: day("2025-01-10"), To: day("2025-01-10")})
	require.NoError(t, err)

	dev := findSummary(t, rows, "site-dev")
	assertAmount(t, "5000", dev.Expenses, "expenses")
	assertAmount(t, "-5000", dev.Profit, "profit")
}

func TestSummariesProfitIdentityHoldsForAllFilters(t *testing.T) {
	store := devSiteStore()
	filters := []Filter{
		{},
		{SiteID: "site-dev"},
		{From: day("2025-01-12")},
		{To: day("2025-01-12")},
		{SiteID: "site-idle", From: day("2025-01-01"), To: day("2025-01-31")},
	}
	for _, f := range filters {
		rows, err := NewService(store, ServiceConfig{}).Summaries(context.Background(), f)
		require.NoError(t, err)
		for _, row := range rows {
			debit := decimal.Zero
			for _, txn := range store.txns {
				if txn.nature == NatureDebit && inWindow(Filter{SiteID: row.SiteID, From: f.From, To: f.To}, txn.siteID, txn.date) {
					debit = debit.Add(decimal.RequireFromString(txn.amount))
				}
			}
			assertAmount(t, debit.Add(row.MaterialPurchaseCost).Add(row.LabourContractorCost).String(), row.Expenses, "expenses")
			assertAmount(t, row.AmountReceived.Sub(row.Expenses).String(), row.Profit, "profit")
		}
	}
}

func TestSummariesKeepsDecimalPrecision(t *testing.T) {
	store := newMemoryStore()
	store.sites = []Site{{ID: "s", Name: "Precision Plaza"}}
	for i := 0; i < 10; i++ {
		store.txns = append(store.txns, memTxn{siteID: "s", nature: NatureCredit, amount: "0.1", date: day("2025-03-01")})
	}
	store.materials = []memMaterial{{entry: MaterialEntry{SiteID: "s", Qty: "0.3", Rate: "0.1"}, date: day("2025-03-01")}}
	svc := NewService(store, ServiceConfig{})

	rows, err := svc.Summaries(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertAmount(t, "1", rows[0].AmountReceived, "amountReceived")
	assertAmount(t, "0.03", rows[0].MaterialPurchaseCost, "materialPurchaseCost")
	assertAmount(t, "0.97", rows[0].Profit, "profit")
}

func TestSummariesStoreFailureAbortsWholeReport(t *testing.T) {
	for _, op := range []string{"sites", "transactions", "materials", "labour"} {
		t.Run(op, func(t *testing.T) {
			store := devSiteStore()
			store.failOn = op
			svc := NewService(store, ServiceConfig{})

			rows, err := svc.Summaries(context.Background(), Filter{})
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.Contains(t, err.Error(), "connection reset by peer")
		})
	}
}

func TestSummariesSequentialReads(t *testing.T) {
	store := devSiteStore()
	svc := NewService(store, ServiceConfig{MaxParallelReads: 1, MissingDepartment: "Unassigned"})

	rows, err := svc.Summaries(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Unassigned", findSummary(t, rows, "site-idle").Department)
	for _, op := range []string{"sites", "transactions", "materials", "labour"} {
		assert.Equal(t, 1, store.calls[op], op)
	}
}

func TestSummariesIgnoresUnknownNature(t *testing.T) {
	store := devSiteStore()
	store.txns = append(store.txns, memTxn{siteID: "site-dev", nature: Nature("REVERSAL"), amount: "999", date: day("2025-01-10")})
	svc := NewService(store, ServiceConfig{})

	rows, err := svc.Summaries(context.Background(), Filter{SiteID: "site-dev"})
	require.NoError(t, err)
	assertAmount(t, "10000", rows[0].Expenses, "expenses")
}

func TestMaterialCost(t *testing.T) {
	cases := []struct {
		name  string
		entry MaterialEntry
		want  string
	}{
		{"total present wins", MaterialEntry{Qty: "10", Rate: "200", TotalAmt: "1750.50"}, "1750.50"},
		{"total absent falls back", MaterialEntry{Qty: "10", Rate: "200"}, "2000"},
		{"total blank falls back", MaterialEntry{Qty: "10", Rate: "200", TotalAmt: "   "}, "2000"},
		{"total non-numeric falls back", MaterialEntry{Qty: "10", Rate: "200", TotalAmt: "n/a"}, "2000"},
		{"total zero is used", MaterialEntry{Qty: "10", Rate: "200", TotalAmt: "0"}, "0"},
		{"missing rate is zero", MaterialEntry{Qty: "10"}, "0"},
		{"non-numeric qty is zero", MaterialEntry{Qty: "ten", Rate: "200"}, "0"},
		{"fractional operands", MaterialEntry{Qty: "2.5", Rate: "12.40"}, "31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertAmount(t, tc.want, MaterialCost(tc.entry), "cost")
		})
	}
}
