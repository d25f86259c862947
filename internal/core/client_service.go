package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AssignmentInput is one product line in a client create/update payload.
// ClientPrice, if non-nil, is a custom resale price for buy lines; nil means
// "use the product's current selling price". Either way the resolved value is
// snapshotted onto the assignment and never refreshed afterwards.
type AssignmentInput struct {
	ProductID   int              `json:"product_id"`
	Quantity    int              `json:"quantity"`
	Kind        AssignmentKind   `json:"kind"`
	MonthlyFee  decimal.Decimal  `json:"monthly_fee"`
	ClientPrice *decimal.Decimal `json:"client_price,omitempty"`
}

// ClientInput is the payload for creating or updating a client.
//
// InstallationAmount, MonthlyFee, HardwarePrice, and MonthsToCover are
// derived from the assignments when nil; a non-nil value is a manual
// override.
type ClientInput struct {
	Name              string            `json:"name"`
	Status            ClientStatus      `json:"status,omitempty"`
	StarterPackPrice  decimal.Decimal   `json:"starter_pack_price"`
	ContractStartDate *time.Time        `json:"contract_start_date,omitempty"`
	Assignments       []AssignmentInput `json:"assignments"`

	InstallationAmount *decimal.Decimal `json:"installation_amount,omitempty"`
	MonthlyFee         *decimal.Decimal `json:"monthly_fee,omitempty"`
	HardwarePrice      *decimal.Decimal `json:"hardware_price,omitempty"`
	MonthsToCover      *int             `json:"months_to_cover,omitempty"`
}

// ClientService manages clients and keeps product stock counters consistent
// with every assignment change. All stock side effects of one client
// mutation commit in a single transaction: a failing line rolls back the
// whole operation instead of leaving products half-updated.
type ClientService interface {
	ListClients(ctx context.Context, status *ClientStatus) ([]Client, error)
	GetClient(ctx context.Context, id int) (*Client, error)
	CreateClient(ctx context.Context, in ClientInput) (*Client, error)
	UpdateClient(ctx context.Context, id int, in ClientInput) (*Client, error)
	// DeleteClient removes the client and hands all held stock back to the
	// products. HardwareTotal counters stay where they are.
	DeleteClient(ctx context.Context, id int) error
	SetStatus(ctx context.Context, id int, status ClientStatus) (*Client, error)
	// GetMetrics evaluates the client's payback position as of now.
	GetMetrics(ctx context.Context, id int) (*ClientMetrics, error)

	ListCommissions(ctx context.Context, clientID int) ([]Commission, error)
	RecordCommission(ctx context.Context, clientID int, period string, amount decimal.Decimal, note string) (*Commission, error)
}

type clientService struct {
	pool   *pgxpool.Pool
	ledger StockLedger
	now    func() time.Time
}

// NewClientService constructs a ClientService backed by PostgreSQL.
func NewClientService(pool *pgxpool.Pool) ClientService {
	return &clientService{pool: pool, now: time.Now}
}

// ── Reads ─────────────────────────────────────────────────────────────────────

const clientColumns = `
	id, name, status, installation_amount, monthly_fee, starter_pack_price,
	hardware_price, contract_start_date, months_to_cover, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.Name, &c.Status, &c.InstallationAmount, &c.MonthlyFee,
		&c.StarterPackPrice, &c.HardwarePrice, &c.ContractStartDate,
		&c.MonthsToCover, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *clientService) ListClients(ctx context.Context, status *ClientStatus) ([]Client, error) {
	query := "SELECT " + clientColumns + " FROM clients"
	args := []any{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range clients {
		assignments, err := s.fetchAssignments(ctx, s.pool, clients[i].ID)
		if err != nil {
			return nil, err
		}
		clients[i].Assignments = assignments
	}
	return clients, nil
}

func (s *clientService) GetClient(ctx context.Context, id int) (*Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("client id=%d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch client %d: %w", id, err)
	}

	c.Assignments, err = s.fetchAssignments(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// querier is the subset of pgxpool.Pool and pgx.Tx used by read helpers.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *clientService) fetchAssignments(ctx context.Context, q querier, clientID int) ([]Assignment, error) {
	rows, err := q.Query(ctx, `
		SELECT a.id, a.client_id, a.product_id, p.code, p.name,
		       a.quantity, a.kind, a.monthly_fee, a.purchase_price, a.client_price, a.added_at
		FROM client_assignments a
		JOIN products p ON p.id = a.product_id
		WHERE a.client_id = $1
		ORDER BY a.added_at, a.id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments for client %d: %w", clientID, err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(
			&a.ID, &a.ClientID, &a.ProductID, &a.ProductCode, &a.ProductName,
			&a.Quantity, &a.Kind, &a.MonthlyFee, &a.PurchasePrice, &a.ClientPrice, &a.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ── Validation ────────────────────────────────────────────────────────────────

func validateClientInput(in ClientInput) error {
	fe := FieldErrors{}
	if in.Name == "" {
		fe.Add("name", "client name is required")
	}
	if in.Status != "" && in.Status != StatusActive && in.Status != StatusInactive {
		fe.Add("status", "must be active or inactive")
	}
	if in.StarterPackPrice.IsNegative() {
		fe.Add("starter_pack_price", "must not be negative")
	}
	if in.InstallationAmount != nil && in.InstallationAmount.IsNegative() {
		fe.Add("installation_amount", "must not be negative")
	}
	if in.HardwarePrice != nil && in.HardwarePrice.IsNegative() {
		fe.Add("hardware_price", "must not be negative")
	}
	if in.MonthlyFee != nil && in.MonthlyFee.IsNegative() {
		fe.Add("monthly_fee", "must not be negative")
	}

	seen := map[int]bool{}
	for i, a := range in.Assignments {
		field := func(name string) string { return fmt.Sprintf("assignments[%d].%s", i, name) }
		if a.ProductID <= 0 {
			fe.Add(field("product_id"), "product is required")
		}
		if seen[a.ProductID] {
			fe.Add(field("product_id"), "duplicate product: one assignment per product")
		}
		seen[a.ProductID] = true
		if a.Quantity <= 0 {
			fe.Add(field("quantity"), "must be a positive integer")
		}
		if !a.Kind.Valid() {
			fe.Add(field("kind"), "must be buy or rent")
		}
		if a.MonthlyFee.IsNegative() {
			fe.Add(field("monthly_fee"), "must not be negative")
		}
		if a.ClientPrice != nil && a.ClientPrice.IsNegative() {
			fe.Add(field("client_price"), "must not be negative")
		}
	}

	if len(fe) > 0 {
		return fe
	}
	return nil
}

// validateMonthsOverride enforces the input-time invariant that a manual
// months-to-cover override is at least 1 whenever a recurring fee exists.
func validateMonthsOverride(in ClientInput, monthlyFee decimal.Decimal) error {
	if in.MonthsToCover != nil && monthlyFee.IsPositive() && *in.MonthsToCover < 1 {
		return FieldErrors{"months_to_cover": "must be at least 1 when a monthly fee is set"}
	}
	return nil
}

// ── Financial derivation ──────────────────────────────────────────────────────

// resolveFinancials computes the stored client figures, honoring overrides.
func resolveFinancials(in ClientInput, assignments []Assignment) (installation, fee, hardware decimal.Decimal, months int, err error) {
	totals := AggregateAssignments(assignments)

	installation = totals.InstallationAmount
	if in.InstallationAmount != nil {
		installation = *in.InstallationAmount
	}
	fee = totals.TotalMonthlyFee
	if in.MonthlyFee != nil {
		fee = *in.MonthlyFee
	}
	hardware = totals.HardwarePrice
	if in.HardwarePrice != nil {
		hardware = *in.HardwarePrice
	}

	if err = validateMonthsOverride(in, fee); err != nil {
		return
	}

	if in.MonthsToCover != nil {
		months = *in.MonthsToCover
	} else {
		months = PayoffInput{
			InstallationAmount: installation,
			MonthlyFee:         fee,
			StarterPackPrice:   in.StarterPackPrice,
			HardwarePrice:      hardware,
		}.MonthsToCover()
	}
	return
}

// ── Mutations ─────────────────────────────────────────────────────────────────

func (s *clientService) CreateClient(ctx context.Context, in ClientInput) (*Client, error) {
	if err := validateClientInput(in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = StatusActive
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Build assignments with price snapshots from the current catalog.
	now := s.now()
	assignments := make([]Assignment, len(in.Assignments))
	for i, ai := range in.Assignments {
		var purchasePrice, sellingPrice decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT purchase_price, selling_price FROM products WHERE id = $1 AND is_active = true",
			ai.ProductID,
		).Scan(&purchasePrice, &sellingPrice)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, FieldErrors{fmt.Sprintf("assignments[%d].product_id", i): "product not found"}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch product %d: %w", ai.ProductID, err)
		}

		clientPrice := sellingPrice
		if ai.ClientPrice != nil {
			clientPrice = *ai.ClientPrice
		}
		assignments[i] = Assignment{
			ProductID:     ai.ProductID,
			Quantity:      ai.Quantity,
			Kind:          ai.Kind,
			MonthlyFee:    ai.MonthlyFee,
			PurchasePrice: purchasePrice,
			ClientPrice:   clientPrice,
			AddedAt:       now,
		}
	}

	installation, fee, hardware, months, err := resolveFinancials(in, assignments)
	if err != nil {
		return nil, err
	}

	var clientID int
	err = tx.QueryRow(ctx, `
		INSERT INTO clients (name, status, installation_amount, monthly_fee, starter_pack_price,
		                     hardware_price, contract_start_date, months_to_cover)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, in.Name, in.Status, installation, fee, in.StarterPackPrice, hardware, in.ContractStartDate, months).Scan(&clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert client %s: %w", in.Name, err)
	}

	// Lock products in id order so concurrent multi-line writes cannot deadlock.
	order := make([]int, len(assignments))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return assignments[order[a]].ProductID < assignments[order[b]].ProductID
	})

	for _, i := range order {
		a := assignments[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO client_assignments (client_id, product_id, quantity, kind, monthly_fee, purchase_price, client_price, added_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, clientID, a.ProductID, a.Quantity, a.Kind, a.MonthlyFee, a.PurchasePrice, a.ClientPrice, a.AddedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert assignment for product %d: %w", a.ProductID, err)
		}

		t := Transition{From: StateNone, To: StateOf(a.Kind), FromQty: 0, ToQty: a.Quantity}
		err = s.ledger.ApplyTx(ctx, tx, a.ProductID, &clientID, t, MovementAssign,
			fmt.Sprintf("assigned to client %s (%s)", in.Name, a.Kind))
		if errors.Is(err, ErrInsufficientStock) {
			return nil, FieldErrors{fmt.Sprintf("assignments[%d].quantity", i): err.Error()}
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit client creation: %w", err)
	}
	return s.GetClient(ctx, clientID)
}

func (s *clientService) UpdateClient(ctx context.Context, id int, in ClientInput) (*Client, error) {
	if err := validateClientInput(in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanClient(tx.QueryRow(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("client id=%d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock client %d: %w", id, err)
	}

	oldAssignments, err := s.fetchAssignments(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	oldByProduct := make(map[int]Assignment, len(oldAssignments))
	for _, a := range oldAssignments {
		oldByProduct[a.ProductID] = a
	}

	newByProduct := make(map[int]int, len(in.Assignments)) // productID → input index
	for i, ai := range in.Assignments {
		newByProduct[ai.ProductID] = i
	}

	// Walk the union of touched products in a stable order so two concurrent
	// edits lock product rows in the same sequence.
	productIDs := make([]int, 0, len(oldByProduct)+len(newByProduct))
	for pid := range oldByProduct {
		productIDs = append(productIDs, pid)
	}
	for pid := range newByProduct {
		if _, ok := oldByProduct[pid]; !ok {
			productIDs = append(productIDs, pid)
		}
	}
	sort.Ints(productIDs)

	now := s.now()
	var resulting []Assignment
	for _, pid := range productIDs {
		old, hadOld := oldByProduct[pid]
		idx, hasNew := newByProduct[pid]

		t := Transition{From: StateNone, To: StateNone}
		if hadOld {
			t.From = StateOf(old.Kind)
			t.FromQty = old.Quantity
		}

		switch {
		case hasNew:
			ai := in.Assignments[idx]
			t.To = StateOf(ai.Kind)
			t.ToQty = ai.Quantity

			a := Assignment{ClientID: id, ProductID: pid, Quantity: ai.Quantity, Kind: ai.Kind, MonthlyFee: ai.MonthlyFee}
			if hadOld {
				// Surviving assignment: keep the original snapshots and
				// added_at; only quantity, kind, and fee may change.
				a.PurchasePrice = old.PurchasePrice
				a.ClientPrice = old.ClientPrice
				if ai.ClientPrice != nil {
					a.ClientPrice = *ai.ClientPrice
				}
				a.AddedAt = old.AddedAt
				_, err := tx.Exec(ctx, `
					UPDATE client_assignments
					SET quantity = $1, kind = $2, monthly_fee = $3, client_price = $4
					WHERE client_id = $5 AND product_id = $6
				`, a.Quantity, a.Kind, a.MonthlyFee, a.ClientPrice, id, pid)
				if err != nil {
					return nil, fmt.Errorf("failed to update assignment for product %d: %w", pid, err)
				}
			} else {
				var purchasePrice, sellingPrice decimal.Decimal
				err := tx.QueryRow(ctx,
					"SELECT purchase_price, selling_price FROM products WHERE id = $1 AND is_active = true",
					pid,
				).Scan(&purchasePrice, &sellingPrice)
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, FieldErrors{fmt.Sprintf("assignments[%d].product_id", idx): "product not found"}
				}
				if err != nil {
					return nil, fmt.Errorf("failed to fetch product %d: %w", pid, err)
				}
				a.PurchasePrice = purchasePrice
				a.ClientPrice = sellingPrice
				if ai.ClientPrice != nil {
					a.ClientPrice = *ai.ClientPrice
				}
				a.AddedAt = now
				_, err = tx.Exec(ctx, `
					INSERT INTO client_assignments (client_id, product_id, quantity, kind, monthly_fee, purchase_price, client_price, added_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				`, id, pid, a.Quantity, a.Kind, a.MonthlyFee, a.PurchasePrice, a.ClientPrice, a.AddedAt)
				if err != nil {
					return nil, fmt.Errorf("failed to insert assignment for product %d: %w", pid, err)
				}
			}
			resulting = append(resulting, a)

		default:
			// Removed from the client: hand the units back.
			if _, err := tx.Exec(ctx,
				"DELETE FROM client_assignments WHERE client_id = $1 AND product_id = $2", id, pid,
			); err != nil {
				return nil, fmt.Errorf("failed to delete assignment for product %d: %w", pid, err)
			}
		}

		err = s.ledger.ApplyTx(ctx, tx, pid, &id, t, MovementAssign,
			fmt.Sprintf("client %s edit: %s(%d) -> %s(%d)", existing.Name, t.From, t.FromQty, t.To, t.ToQty))
		if errors.Is(err, ErrInsufficientStock) {
			field := "assignments"
			if hasNew {
				field = fmt.Sprintf("assignments[%d].quantity", idx)
			}
			return nil, FieldErrors{field: err.Error()}
		}
		if err != nil {
			return nil, err
		}
	}

	installation, fee, hardware, months, err := resolveFinancials(in, resulting)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = existing.Status
	}
	_, err = tx.Exec(ctx, `
		UPDATE clients
		SET name = $1, status = $2, installation_amount = $3, monthly_fee = $4,
		    starter_pack_price = $5, hardware_price = $6, contract_start_date = $7,
		    months_to_cover = $8, updated_at = NOW()
		WHERE id = $9
	`, in.Name, status, installation, fee, in.StarterPackPrice, hardware, in.ContractStartDate, months, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update client %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit client update: %w", err)
	}
	return s.GetClient(ctx, id)
}

func (s *clientService) DeleteClient(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var name string
	err = tx.QueryRow(ctx, "SELECT name FROM clients WHERE id = $1 FOR UPDATE", id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("client id=%d not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to lock client %d: %w", id, err)
	}

	assignments, err := s.fetchAssignments(ctx, tx, id)
	if err != nil {
		return err
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ProductID < assignments[j].ProductID })

	for _, a := range assignments {
		t := Transition{From: StateOf(a.Kind), To: StateNone, FromQty: a.Quantity}
		if err := s.ledger.ApplyTx(ctx, tx, a.ProductID, &id, t, MovementRelease,
			fmt.Sprintf("client %s deleted, %d units returned", name, a.Quantity)); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM client_assignments WHERE client_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete assignments for client %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM commissions WHERE client_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete commissions for client %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM clients WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete client %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit client deletion: %w", err)
	}
	return nil
}

func (s *clientService) SetStatus(ctx context.Context, id int, status ClientStatus) (*Client, error) {
	if status != StatusActive && status != StatusInactive {
		return nil, FieldErrors{"status": "must be active or inactive"}
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE clients SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return nil, fmt.Errorf("failed to set status for client %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("client id=%d not found", id)
	}
	return s.GetClient(ctx, id)
}

func (s *clientService) GetMetrics(ctx context.Context, id int) (*ClientMetrics, error) {
	c, err := s.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics := ComputeClientMetrics(PayoffInput{
		InstallationAmount: c.InstallationAmount,
		MonthlyFee:         c.MonthlyFee,
		StarterPackPrice:   c.StarterPackPrice,
		HardwarePrice:      c.HardwarePrice,
	}, c.ContractStartDate, s.now())
	return &metrics, nil
}

// ── Commissions ───────────────────────────────────────────────────────────────

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func (s *clientService) ListCommissions(ctx context.Context, clientID int) ([]Commission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_id, period, amount, note, created_at
		FROM commissions
		WHERE client_id = $1
		ORDER BY period DESC, id DESC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commissions: %w", err)
	}
	defer rows.Close()

	var commissions []Commission
	for rows.Next() {
		var c Commission
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Period, &c.Amount, &c.Note, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commission: %w", err)
		}
		commissions = append(commissions, c)
	}
	return commissions, rows.Err()
}

func (s *clientService) RecordCommission(ctx context.Context, clientID int, period string, amount decimal.Decimal, note string) (*Commission, error) {
	fe := FieldErrors{}
	if !periodPattern.MatchString(period) {
		fe.Add("period", "must be YYYY-MM")
	}
	if amount.IsNegative() {
		fe.Add("amount", "must not be negative")
	}
	if len(fe) > 0 {
		return nil, fe
	}

	var c Commission
	err := s.pool.QueryRow(ctx, `
		INSERT INTO commissions (client_id, period, amount, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, client_id, period, amount, note, created_at
	`, clientID, period, amount, note).Scan(&c.ID, &c.ClientID, &c.Period, &c.Amount, &c.Note, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record commission for client %d: %w", clientID, err)
	}
	return &c, nil
}
