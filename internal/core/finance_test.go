package core_test

import (
	"testing"
	"time"

	"hardstock/internal/core"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", date(2026, 3, 15), date(2026, 3, 15), 0},
		{"same month later day", date(2026, 3, 1), date(2026, 3, 28), 0},
		{"exactly one month", date(2026, 3, 15), date(2026, 4, 15), 1},
		{"one month minus a day", date(2026, 3, 15), date(2026, 4, 14), 0},
		{"across year boundary", date(2025, 11, 10), date(2026, 2, 10), 3},
		{"partial month not counted", date(2025, 1, 31), date(2025, 3, 30), 1},
		{"b before a clamps to zero", date(2026, 5, 1), date(2026, 4, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.MonthsBetween(tt.a, tt.b); got != tt.want {
				t.Errorf("MonthsBetween(%s, %s) = %d, want %d",
					tt.a.Format("2006-01-02"), tt.b.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestAggregateAssignments(t *testing.T) {
	d := decimal.NewFromInt

	assignments := []core.Assignment{
		// buy with a custom resale price: 180 × 2 = 360
		{Kind: core.KindBuy, Quantity: 2, PurchasePrice: d(120), ClientPrice: d(180)},
		// buy without a resale price: falls back to purchase, 50 × 3 = 150
		{Kind: core.KindBuy, Quantity: 3, PurchasePrice: d(50), ClientPrice: decimal.Zero},
		// rent: only the fee counts, quantity must NOT multiply it
		{Kind: core.KindRent, Quantity: 5, MonthlyFee: d(15), PurchasePrice: d(45), ClientPrice: d(60)},
	}

	totals := core.AggregateAssignments(assignments)

	if want := d(510); !totals.InstallationAmount.Equal(want) {
		t.Errorf("InstallationAmount = %s, want %s", totals.InstallationAmount, want)
	}
	if want := d(510); !totals.HardwarePrice.Equal(want) {
		t.Errorf("HardwarePrice = %s, want %s", totals.HardwarePrice, want)
	}
	if want := d(15); !totals.TotalMonthlyFee.Equal(want) {
		t.Errorf("TotalMonthlyFee = %s, want %s (fee is per-assignment, not per-unit)", totals.TotalMonthlyFee, want)
	}
	if totals.TotalQuantity != 10 {
		t.Errorf("TotalQuantity = %d, want 10", totals.TotalQuantity)
	}
}

func TestAggregateAssignments_FeeCountsForBuyToo(t *testing.T) {
	// The fee sum runs over ALL assignments regardless of kind.
	assignments := []core.Assignment{
		{Kind: core.KindBuy, Quantity: 1, MonthlyFee: decimal.NewFromInt(10), PurchasePrice: decimal.NewFromInt(100)},
		{Kind: core.KindRent, Quantity: 1, MonthlyFee: decimal.NewFromInt(20)},
	}
	totals := core.AggregateAssignments(assignments)
	if want := decimal.NewFromInt(30); !totals.TotalMonthlyFee.Equal(want) {
		t.Errorf("TotalMonthlyFee = %s, want %s", totals.TotalMonthlyFee, want)
	}
}

func TestAggregateAssignments_Empty(t *testing.T) {
	totals := core.AggregateAssignments(nil)
	if !totals.InstallationAmount.IsZero() || !totals.TotalMonthlyFee.IsZero() ||
		!totals.HardwarePrice.IsZero() || totals.TotalQuantity != 0 {
		t.Errorf("empty aggregation should be all zero, got %+v", totals)
	}
}

func TestMonthsToCover(t *testing.T) {
	d := decimal.NewFromInt
	tests := []struct {
		name                                 string
		installation, fee, starter, hardware int64
		want                                 int
	}{
		{"classic payback", 1000, 100, 0, 0, 10}, // net month 1 = -900 → 1 + ceil(9)
		{"covered by one-shots", 500, 200, 100, 500, 0},
		{"no recurring fee", 1000, 0, 0, 0, 0},
		{"nothing owed nothing billed", 0, 0, 0, 0, 0},
		{"net month one exactly zero", 1000, 100, 400, 500, 0},
		{"fractional remainder rounds up", 1000, 300, 0, 0, 4}, // -700 → 1 + ceil(2.33)
		{"one cent short needs a full month", 201, 100, 0, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := core.PayoffInput{
				InstallationAmount: d(tt.installation),
				MonthlyFee:         d(tt.fee),
				StarterPackPrice:   d(tt.starter),
				HardwarePrice:      d(tt.hardware),
			}
			got := in.MonthsToCover()
			if got != tt.want {
				t.Fatalf("MonthsToCover() = %d, want %d", got, tt.want)
			}

			// The ceiling must land on the first month where cumulative
			// revenue covers the installation, and one month earlier must
			// not, except in the degenerate fee-less case.
			if tt.fee > 0 && got > 0 {
				covered := in.ProfitOneShot().
					Add(in.MonthlyFee.Mul(d(int64(got)))).
					Sub(in.InstallationAmount)
				if covered.IsNegative() {
					t.Errorf("%d months do not cover the investment (net %s)", got, covered)
				}
				prev := in.ProfitOneShot().
					Add(in.MonthlyFee.Mul(d(int64(got - 1)))).
					Sub(in.InstallationAmount)
				if !prev.IsNegative() {
					t.Errorf("%d months already cover the investment (net %s), count is too high", got-1, prev)
				}
			}
		})
	}
}

func TestComputeClientMetrics(t *testing.T) {
	d := decimal.NewFromInt
	in := core.PayoffInput{
		InstallationAmount: d(1000),
		MonthlyFee:         d(100),
	}
	start := date(2026, 1, 10)

	t.Run("profitability date is start plus monthsToCover-1", func(t *testing.T) {
		m := core.ComputeClientMetrics(in, &start, date(2026, 1, 10))
		if m.MonthsToCover != 10 {
			t.Fatalf("MonthsToCover = %d, want 10", m.MonthsToCover)
		}
		if want := date(2026, 10, 10); !m.ProfitabilityDate.Equal(want) {
			t.Errorf("ProfitabilityDate = %s, want %s", m.ProfitabilityDate, want)
		}
		if m.ElapsedMonths != 1 {
			t.Errorf("ElapsedMonths = %d, want 1 (month 1 starts on the start date)", m.ElapsedMonths)
		}
		if want := d(-900); !m.NetCashFlow.Equal(want) {
			t.Errorf("NetCashFlow = %s, want %s", m.NetCashFlow, want)
		}
		if m.Profitable {
			t.Error("client should not be profitable after one month")
		}
	})

	t.Run("net cash flow keeps accumulating past coverage", func(t *testing.T) {
		m := core.ComputeClientMetrics(in, &start, date(2027, 1, 10))
		if m.ElapsedMonths != 13 {
			t.Fatalf("ElapsedMonths = %d, want 13", m.ElapsedMonths)
		}
		if want := d(300); !m.NetCashFlow.Equal(want) {
			t.Errorf("NetCashFlow = %s, want %s", m.NetCashFlow, want)
		}
		if !m.Profitable {
			t.Error("client should be profitable after 13 months")
		}
	})

	t.Run("before contract start nothing is billed", func(t *testing.T) {
		m := core.ComputeClientMetrics(in, &start, date(2025, 12, 1))
		if m.ElapsedMonths != 0 {
			t.Errorf("ElapsedMonths = %d, want 0", m.ElapsedMonths)
		}
		if want := d(-1000); !m.NetCashFlow.Equal(want) {
			t.Errorf("NetCashFlow = %s, want %s", m.NetCashFlow, want)
		}
	})

	t.Run("nil start treats today as month one", func(t *testing.T) {
		asOf := date(2026, 6, 1)
		m := core.ComputeClientMetrics(in, nil, asOf)
		if m.ElapsedMonths != 1 {
			t.Errorf("ElapsedMonths = %d, want 1", m.ElapsedMonths)
		}
		if want := date(2027, 3, 1); !m.ProfitabilityDate.Equal(want) {
			t.Errorf("ProfitabilityDate = %s, want %s", m.ProfitabilityDate, want)
		}
	})

	t.Run("short payback adds one month to the start date", func(t *testing.T) {
		quick := core.PayoffInput{InstallationAmount: d(150), MonthlyFee: d(100)}
		if quick.MonthsToCover() != 2 {
			t.Fatalf("MonthsToCover = %d, want 2", quick.MonthsToCover())
		}
		m := core.ComputeClientMetrics(quick, &start, start)
		if want := date(2026, 2, 10); !m.ProfitabilityDate.Equal(want) {
			t.Errorf("ProfitabilityDate = %s, want %s", m.ProfitabilityDate, want)
		}
	})

	t.Run("covered up front keeps the start date", func(t *testing.T) {
		covered := core.PayoffInput{InstallationAmount: d(100), MonthlyFee: d(100), StarterPackPrice: d(50)}
		m := core.ComputeClientMetrics(covered, &start, start)
		if m.MonthsToCover != 0 {
			t.Fatalf("MonthsToCover = %d, want 0", m.MonthsToCover)
		}
		if !m.ProfitabilityDate.Equal(start) {
			t.Errorf("ProfitabilityDate = %s, want %s", m.ProfitabilityDate, start)
		}
	})
}
