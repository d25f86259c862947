package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Column contracts for bulk import files. The first row must be the header;
// matching is case-insensitive.
var (
	productImportHeader = []string{"Product Code", "Product Name", "Quantity", "Buying Price", "Selling Price", "Rent Price", "Category"}
	clientImportHeader  = []string{"Client Name", "Product Name", "Quantity", "Type"}
)

// RowError reports why a single file row was excluded from an import.
type RowError struct {
	Row     int    `json:"row"` // 1-based, header included
	Message string `json:"message"`
}

// ImportResult summarizes a bulk import: how many entities landed and which
// rows were skipped. Skipped rows never abort the batch.
type ImportResult struct {
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errors,omitempty"`
}

// ImportService loads products and clients from spreadsheet/CSV files and
// builds the matching template workbook. File parsing is delegated to
// encoding/csv and excelize; this service owns the column contract and the
// row-level validation.
type ImportService interface {
	// ImportProducts upserts catalog products by product code. Quantity is
	// added to the product's available stock and journaled as an ADJUST
	// movement. Unknown categories are created on the fly. All valid rows
	// commit together.
	ImportProducts(ctx context.Context, r io.Reader, filename string) (*ImportResult, error)
	// ImportClients creates one client per distinct client name, with one
	// assignment per row. Products are matched by name; rent lines take the
	// product's rent price as their monthly fee. Each client commits on its
	// own, so one failing client does not abort the rest.
	ImportClients(ctx context.Context, r io.Reader, filename string) (*ImportResult, error)
	// BuildTemplate returns an xlsx workbook with pre-filled example rows
	// for both import shapes plus an instructions sheet.
	BuildTemplate() ([]byte, error)
}

type importService struct {
	pool    *pgxpool.Pool
	clients ClientService
	ledger  StockLedger
}

// NewImportService constructs an ImportService. Client creation is delegated
// to the ClientService so imports go through the same validation and stock
// ledger as the API.
func NewImportService(pool *pgxpool.Pool, clients ClientService) ImportService {
	return &importService{pool: pool, clients: clients}
}

// ── File parsing ──────────────────────────────────────────────────────────────

// readRows extracts raw cell rows from a CSV or XLSX payload, picking the
// parser by file extension.
func readRows(r io.Reader, filename string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
		}
		return rows, nil
	default:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		return rows, nil
	}
}

// checkHeader verifies the first row against the expected column contract.
func checkHeader(rows [][]string, expected []string) error {
	if len(rows) == 0 {
		return fmt.Errorf("file is empty")
	}
	header := rows[0]
	if len(header) < len(expected) {
		return fmt.Errorf("expected %d columns (%s), got %d", len(expected), strings.Join(expected, ", "), len(header))
	}
	for i, want := range expected {
		got := strings.TrimSpace(header[i])
		// The Type column is documented as "Type(buy|rent)"; accept both.
		if !strings.EqualFold(got, want) && !strings.EqualFold(strings.SplitN(got, "(", 2)[0], want) {
			return fmt.Errorf("column %d: expected %q, got %q", i+1, want, got)
		}
	}
	return nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseAmount(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

// ── Product import ────────────────────────────────────────────────────────────

type productImportRow struct {
	code, name, category                 string
	quantity                             int
	buyingPrice, sellingPrice, rentPrice decimal.Decimal
}

func parseProductRow(row []string) (*productImportRow, error) {
	p := &productImportRow{
		code:     cell(row, 0),
		name:     cell(row, 1),
		category: cell(row, 6),
	}
	if p.code == "" {
		return nil, fmt.Errorf("product code is required")
	}
	if p.name == "" {
		return nil, fmt.Errorf("product name is required")
	}

	var err error
	if qty := cell(row, 2); qty != "" {
		p.quantity, err = strconv.Atoi(qty)
		if err != nil || p.quantity < 0 {
			return nil, fmt.Errorf("quantity %q is not a non-negative integer", qty)
		}
	}
	if p.buyingPrice, err = parseAmount(cell(row, 3)); err != nil || p.buyingPrice.IsNegative() {
		return nil, fmt.Errorf("buying price %q is not a valid amount", cell(row, 3))
	}
	if p.sellingPrice, err = parseAmount(cell(row, 4)); err != nil || p.sellingPrice.IsNegative() {
		return nil, fmt.Errorf("selling price %q is not a valid amount", cell(row, 4))
	}
	if p.rentPrice, err = parseAmount(cell(row, 5)); err != nil || p.rentPrice.IsNegative() {
		return nil, fmt.Errorf("rent price %q is not a valid amount", cell(row, 5))
	}
	return p, nil
}

func (s *importService) ImportProducts(ctx context.Context, r io.Reader, filename string) (*ImportResult, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return nil, err
	}
	if err := checkHeader(rows, productImportHeader); err != nil {
		return nil, fmt.Errorf("invalid product import file: %w", err)
	}

	result := &ImportResult{}
	var valid []productImportRow
	for i, row := range rows[1:] {
		rowNum := i + 2
		if len(row) == 0 || strings.Join(row, "") == "" {
			continue
		}
		p, err := parseProductRow(row)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		valid = append(valid, *p)
	}
	if len(valid) == 0 {
		return result, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range valid {
		var categoryID *int
		if p.category != "" {
			var id int
			err := tx.QueryRow(ctx, `
				INSERT INTO categories (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id
			`, p.category).Scan(&id)
			if err != nil {
				return nil, fmt.Errorf("failed to upsert category %s: %w", p.category, err)
			}
			categoryID = &id
		}

		var productID int
		err := tx.QueryRow(ctx, `
			INSERT INTO products (code, name, category_id, purchase_price, selling_price, rent_price, stock_on_hand, hardware_total)
			VALUES ($1, $2, $3, $4, $5, $6, 0, 0)
			ON CONFLICT (code) DO UPDATE
			SET name = EXCLUDED.name, category_id = EXCLUDED.category_id,
			    purchase_price = EXCLUDED.purchase_price, selling_price = EXCLUDED.selling_price,
			    rent_price = EXCLUDED.rent_price, is_active = true, updated_at = NOW()
			RETURNING id
		`, p.code, p.name, categoryID, p.buyingPrice, p.sellingPrice, p.rentPrice).Scan(&productID)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert product %s: %w", p.code, err)
		}

		if p.quantity > 0 {
			if err := s.ledger.AdjustTx(ctx, tx, productID, p.quantity, 0,
				fmt.Sprintf("bulk import from %s", filepath.Base(filename))); err != nil {
				return nil, err
			}
		}
		result.Imported++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product import: %w", err)
	}
	return result, nil
}

// ── Client import ─────────────────────────────────────────────────────────────

type clientImportLine struct {
	row         int
	productName string
	quantity    int
	kind        AssignmentKind
}

func (s *importService) ImportClients(ctx context.Context, r io.Reader, filename string) (*ImportResult, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return nil, err
	}
	if err := checkHeader(rows, clientImportHeader); err != nil {
		return nil, fmt.Errorf("invalid client import file: %w", err)
	}

	result := &ImportResult{}

	// Group lines by client name across the whole file, keeping first-seen
	// client order.
	grouped := map[string][]clientImportLine{}
	var order []string
	for i, row := range rows[1:] {
		rowNum := i + 2
		if len(row) == 0 || strings.Join(row, "") == "" {
			continue
		}
		name := cell(row, 0)
		productName := cell(row, 1)
		if name == "" || productName == "" {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: "client name and product name are required"})
			continue
		}
		qty, err := strconv.Atoi(cell(row, 2))
		if err != nil || qty <= 0 {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: fmt.Sprintf("quantity %q is not a positive integer", cell(row, 2))})
			continue
		}
		kind := AssignmentKind(strings.ToLower(cell(row, 3)))
		if !kind.Valid() {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: fmt.Sprintf("type %q must be buy or rent", cell(row, 3))})
			continue
		}

		if _, ok := grouped[name]; !ok {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], clientImportLine{row: rowNum, productName: productName, quantity: qty, kind: kind})
	}

	for _, name := range order {
		lines := grouped[name]
		input := ClientInput{Name: name, Status: StatusActive}
		ok := true

		for _, line := range lines {
			var productID int
			var rentPrice decimal.Decimal
			err := s.pool.QueryRow(ctx,
				"SELECT id, rent_price FROM products WHERE name = $1 AND is_active = true",
				line.productName,
			).Scan(&productID, &rentPrice)
			if errors.Is(err, pgx.ErrNoRows) {
				result.Errors = append(result.Errors, RowError{Row: line.row, Message: fmt.Sprintf("product %q not found", line.productName)})
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to look up product %q: %w", line.productName, err)
			}

			monthlyFee := decimal.Zero
			if line.kind == KindRent {
				monthlyFee = rentPrice
			}
			input.Assignments = append(input.Assignments, AssignmentInput{
				ProductID:  productID,
				Quantity:   line.quantity,
				Kind:       line.kind,
				MonthlyFee: monthlyFee,
			})
		}
		if len(input.Assignments) == 0 {
			continue
		}

		if _, err := s.clients.CreateClient(ctx, input); err != nil {
			result.Errors = append(result.Errors, RowError{Row: lines[0].row, Message: fmt.Sprintf("client %q: %v", name, err)})
			ok = false
		}
		if ok {
			result.Imported++
		}
	}
	return result, nil
}

// ── Template export ───────────────────────────────────────────────────────────

func (s *importService) BuildTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const productsSheet = "Products"
	const clientsSheet = "Clients"
	const instructionsSheet = "Instructions"

	f.SetSheetName(f.GetSheetName(0), productsSheet)
	if _, err := f.NewSheet(clientsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", clientsSheet, err)
	}
	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", instructionsSheet, err)
	}

	productRows := [][]any{
		toAnyRow(productImportHeader),
		{"TERM-01", "Payment Terminal S90", 25, 120.00, 180.00, 15.00, "Terminals"},
		{"RTR-04", "LTE Router", 10, 45.50, 0, 8.00, "Routers"},
	}
	for i, row := range productRows {
		addr, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(productsSheet, addr, &row); err != nil {
			return nil, fmt.Errorf("failed to write template row: %w", err)
		}
	}

	clientHeader := append([]string{}, clientImportHeader...)
	clientHeader[3] = "Type(buy|rent)"
	clientRows := [][]any{
		toAnyRow(clientHeader),
		{"Cafe du Port", "Payment Terminal S90", 2, "buy"},
		{"Cafe du Port", "LTE Router", 1, "rent"},
		{"Boulangerie Centrale", "Payment Terminal S90", 1, "rent"},
	}
	for i, row := range clientRows {
		addr, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(clientsSheet, addr, &row); err != nil {
			return nil, fmt.Errorf("failed to write template row: %w", err)
		}
	}

	instructions := []string{
		"Import template",
		"",
		"Products sheet: one product per row. Quantity is added to available stock.",
		"Selling Price 0 means the buying price is used when the product is sold.",
		"Unknown categories are created automatically.",
		"",
		"Clients sheet: one product line per row, grouped by client name.",
		"Type must be buy or rent. Rent lines bill the product's rent price monthly.",
		"",
		"Rows that fail validation are reported with their row number and skipped;",
		"the rest of the file is still imported.",
	}
	for i, line := range instructions {
		addr, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetCellStr(instructionsSheet, addr, line); err != nil {
			return nil, fmt.Errorf("failed to write instructions: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize template: %w", err)
	}
	return buf.Bytes(), nil
}

func toAnyRow(cells []string) []any {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
