package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductInput is the payload for creating or updating a catalog product.
// InitialStock is only honored on create; stock changes afterwards go through
// AdjustStock or client assignment transitions. HardwareTotal, if non-nil on
// update, is a manual correction of the cumulative sold counter.
type ProductInput struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	CategoryID    *int            `json:"category_id,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	RentPrice     decimal.Decimal `json:"rent_price"`
	InitialStock  int             `json:"initial_stock"`
	HardwareTotal *int            `json:"hardware_total,omitempty"`
}

// ProductService manages the hardware catalog and manual stock corrections.
type ProductService interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id int, in ProductInput) (*Product, error)
	// DeleteProduct deactivates a product. It fails while any client still
	// holds an assignment for it.
	DeleteProduct(ctx context.Context, id int) error
	// AdjustStock applies a manual stock/hardware-total correction and
	// journals it as an ADJUST movement.
	AdjustStock(ctx context.Context, id, stockDelta, hardwareDelta int, note string) (*Product, error)
	// ListMovements returns the stock movement journal for one product,
	// newest first.
	ListMovements(ctx context.Context, productID int) ([]StockMovement, error)

	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)
}

type productService struct {
	pool   *pgxpool.Pool
	ledger StockLedger
}

// NewProductService constructs a ProductService backed by PostgreSQL.
func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

const productColumns = `
	p.id, p.code, p.name, p.category_id, COALESCE(c.name, ''),
	p.purchase_price, p.selling_price, p.rent_price,
	p.stock_on_hand, p.hardware_total, p.is_active, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.CategoryName,
		&p.PurchasePrice, &p.SellingPrice, &p.RentPrice,
		&p.StockOnHand, &p.HardwareTotal, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *productService) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.is_active = true
		ORDER BY p.code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *productService) GetProduct(ctx context.Context, id int) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product id=%d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return p, nil
}

func validateProductInput(in ProductInput) error {
	fe := FieldErrors{}
	if in.Code == "" {
		fe.Add("code", "product code is required")
	}
	if in.Name == "" {
		fe.Add("name", "product name is required")
	}
	if in.PurchasePrice.IsNegative() {
		fe.Add("purchase_price", "must not be negative")
	}
	if in.SellingPrice.IsNegative() {
		fe.Add("selling_price", "must not be negative")
	}
	if in.RentPrice.IsNegative() {
		fe.Add("rent_price", "must not be negative")
	}
	if in.InitialStock < 0 {
		fe.Add("initial_stock", "must not be negative")
	}
	if in.HardwareTotal != nil && *in.HardwareTotal < 0 {
		fe.Add("hardware_total", "must not be negative")
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

func (s *productService) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (code, name, category_id, purchase_price, selling_price, rent_price, stock_on_hand, hardware_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		RETURNING id
	`, in.Code, in.Name, in.CategoryID, in.PurchasePrice, in.SellingPrice, in.RentPrice, in.InitialStock).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product %s: %w", in.Code, err)
	}
	return s.GetProduct(ctx, id)
}

func (s *productService) UpdateProduct(ctx context.Context, id int, in ProductInput) (*Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET code = $1, name = $2, category_id = $3,
		    purchase_price = $4, selling_price = $5, rent_price = $6,
		    updated_at = NOW()
		WHERE id = $7 AND is_active = true
	`, in.Code, in.Name, in.CategoryID, in.PurchasePrice, in.SellingPrice, in.RentPrice, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("product id=%d not found", id)
	}

	// Manual correction of the cumulative sold counter is journaled like any
	// other stock change.
	if in.HardwareTotal != nil {
		var current int
		if err := tx.QueryRow(ctx,
			"SELECT hardware_total FROM products WHERE id = $1 FOR UPDATE", id,
		).Scan(&current); err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
		}
		if delta := *in.HardwareTotal - current; delta != 0 {
			if err := s.ledger.AdjustTx(ctx, tx, id, 0, delta, "manual hardware total correction"); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	return s.GetProduct(ctx, id)
}

func (s *productService) DeleteProduct(ctx context.Context, id int) error {
	var held int
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM client_assignments WHERE product_id = $1", id,
	).Scan(&held)
	if err != nil {
		return fmt.Errorf("failed to check assignments for product %d: %w", id, err)
	}
	if held > 0 {
		return fmt.Errorf("product id=%d still has %d units assigned to clients", id, held)
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE products SET is_active = false, updated_at = NOW() WHERE id = $1 AND is_active = true", id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product id=%d not found", id)
	}
	return nil
}

func (s *productService) AdjustStock(ctx context.Context, id, stockDelta, hardwareDelta int, note string) (*Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ledger.AdjustTx(ctx, tx, id, stockDelta, hardwareDelta, note); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return s.GetProduct(ctx, id)
}

func (s *productService) ListMovements(ctx context.Context, productID int) ([]StockMovement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, client_id, movement_type, quantity, hardware_delta, note, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY id DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ClientID, &m.Type, &m.Quantity, &m.HardwareDelta, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *productService) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *productService) CreateCategory(ctx context.Context, name string) (*Category, error) {
	if name == "" {
		return nil, FieldErrors{"name": "category name is required"}
	}
	var c Category
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at
	`, name).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert category %s: %w", name, err)
	}
	return &c, nil
}
