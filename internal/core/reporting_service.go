package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// ClientPayback is one row of the payback dashboard.
type ClientPayback struct {
	ClientID          int             `json:"client_id"`
	Name              string          `json:"name"`
	Status            ClientStatus    `json:"status"`
	MonthlyFee        decimal.Decimal `json:"monthly_fee"`
	MonthsToCover     int             `json:"months_to_cover"`
	ProfitabilityDate time.Time       `json:"profitability_date"`
	NetCashFlow       decimal.Decimal `json:"net_cash_flow"`
	Profitable        bool            `json:"profitable"`
}

// RevenuePoint is one month of the revenue series. Recurring is the fee
// income of clients whose contract had started by that month; OneShot is
// starter pack and hardware revenue booked in contract start months.
type RevenuePoint struct {
	Period    string          `json:"period"` // YYYY-MM
	Recurring decimal.Decimal `json:"recurring"`
	OneShot   decimal.Decimal `json:"one_shot"`
}

// DashboardSummary aggregates the whole book of business.
type DashboardSummary struct {
	TotalClients            int             `json:"total_clients"`
	ActiveClients           int             `json:"active_clients"`
	ProfitableClients       int             `json:"profitable_clients"`
	CoveringClients         int             `json:"covering_clients"` // still paying back their installation
	MonthlyRecurringRevenue decimal.Decimal `json:"monthly_recurring_revenue"`
	OutstandingInvestment   decimal.Decimal `json:"outstanding_investment"` // Σ uncovered balances
	StockValue              decimal.Decimal `json:"stock_value"`            // on-hand units at purchase price
	HardwareUnitsSold       int             `json:"hardware_units_sold"`
	Clients                 []ClientPayback `json:"clients"`
	Revenue                 []RevenuePoint  `json:"revenue"`
}

// ReportingService produces read-only dashboard aggregates.
type ReportingService interface {
	// GetDashboard evaluates every client's payback position as of now and
	// builds a trailing revenue series covering the given number of months.
	GetDashboard(ctx context.Context, months int) (*DashboardSummary, error)
}

type reportingService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewReportingService constructs a ReportingService backed by PostgreSQL.
func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool, now: time.Now}
}

func (s *reportingService) GetDashboard(ctx context.Context, months int) (*DashboardSummary, error) {
	if months <= 0 {
		months = 12
	}
	asOf := s.now()

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, status, installation_amount, monthly_fee, starter_pack_price,
		       hardware_price, contract_start_date
		FROM clients
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients for dashboard: %w", err)
	}
	defer rows.Close()

	type clientRow struct {
		id      int
		name    string
		status  ClientStatus
		payoff  PayoffInput
		started *time.Time
	}
	var clients []clientRow
	for rows.Next() {
		var c clientRow
		if err := rows.Scan(&c.id, &c.name, &c.status,
			&c.payoff.InstallationAmount, &c.payoff.MonthlyFee,
			&c.payoff.StarterPackPrice, &c.payoff.HardwarePrice, &c.started,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client for dashboard: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		MonthlyRecurringRevenue: decimal.Zero,
		OutstandingInvestment:   decimal.Zero,
		StockValue:              decimal.Zero,
	}

	for _, c := range clients {
		summary.TotalClients++
		if c.status == StatusActive {
			summary.ActiveClients++
			summary.MonthlyRecurringRevenue = summary.MonthlyRecurringRevenue.Add(c.payoff.MonthlyFee)
		}

		m := ComputeClientMetrics(c.payoff, c.started, asOf)
		if m.Profitable {
			summary.ProfitableClients++
		} else {
			summary.CoveringClients++
			summary.OutstandingInvestment = summary.OutstandingInvestment.Add(m.NetCashFlow.Neg())
		}
		summary.Clients = append(summary.Clients, ClientPayback{
			ClientID:          c.id,
			Name:              c.name,
			Status:            c.status,
			MonthlyFee:        c.payoff.MonthlyFee,
			MonthsToCover:     m.MonthsToCover,
			ProfitabilityDate: m.ProfitabilityDate,
			NetCashFlow:       m.NetCashFlow,
			Profitable:        m.Profitable,
		})
	}

	// Trailing revenue series, oldest month first.
	firstOfMonth := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	for i := months - 1; i >= 0; i-- {
		monthStart := firstOfMonth.AddDate(0, -i, 0)
		monthEnd := monthStart.AddDate(0, 1, 0)
		point := RevenuePoint{
			Period:    monthStart.Format("2006-01"),
			Recurring: decimal.Zero,
			OneShot:   decimal.Zero,
		}
		for _, c := range clients {
			if c.started == nil || !c.started.Before(monthEnd) {
				continue
			}
			if !c.started.Before(monthStart) {
				// Contract started this month: one-shot revenue lands here.
				point.OneShot = point.OneShot.Add(c.payoff.ProfitOneShot())
			}
			point.Recurring = point.Recurring.Add(c.payoff.MonthlyFee)
		}
		summary.Revenue = append(summary.Revenue, point)
	}

	// Stock position across the catalog.
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(stock_on_hand * purchase_price), 0), COALESCE(SUM(hardware_total), 0)
		FROM products
		WHERE is_active = true
	`).Scan(&summary.StockValue, &summary.HardwareUnitsSold)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock position: %w", err)
	}

	return summary, nil
}
