package app

import (
	"context"
	"io"

	"hardstock/internal/core"

	"github.com/shopspring/decimal"
)

// UserSession identifies an authenticated user.
type UserSession struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AdjustStockRequest is a manual stock correction on one product.
type AdjustStockRequest struct {
	ProductID     int    `json:"product_id"`
	StockDelta    int    `json:"stock_delta"`
	HardwareDelta int    `json:"hardware_delta"`
	Note          string `json:"note"`
}

// RecordCommissionRequest records a commission payment against a client.
type RecordCommissionRequest struct {
	ClientID int             `json:"client_id"`
	Period   string          `json:"period"` // YYYY-MM
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note"`
}

// ApplicationService is the single interface the web adapter calls. It
// decouples presentation from business logic: implementations contain no
// HTTP types and no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)
	// GetUser returns a user by primary key.
	GetUser(ctx context.Context, userID int) (*core.User, error)

	// Catalog.
	ListProducts(ctx context.Context) ([]core.Product, error)
	GetProduct(ctx context.Context, id int) (*core.Product, error)
	CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error)
	UpdateProduct(ctx context.Context, id int, in core.ProductInput) (*core.Product, error)
	DeleteProduct(ctx context.Context, id int) error
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.Product, error)
	ListMovements(ctx context.Context, productID int) ([]core.StockMovement, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, name string) (*core.Category, error)

	// Clients.
	ListClients(ctx context.Context, status *core.ClientStatus) ([]core.Client, error)
	GetClient(ctx context.Context, id int) (*core.Client, error)
	CreateClient(ctx context.Context, in core.ClientInput) (*core.Client, error)
	UpdateClient(ctx context.Context, id int, in core.ClientInput) (*core.Client, error)
	DeleteClient(ctx context.Context, id int) error
	SetClientStatus(ctx context.Context, id int, status core.ClientStatus) (*core.Client, error)
	GetClientMetrics(ctx context.Context, id int) (*core.ClientMetrics, error)
	ListCommissions(ctx context.Context, clientID int) ([]core.Commission, error)
	RecordCommission(ctx context.Context, req RecordCommissionRequest) (*core.Commission, error)

	// Reporting.
	GetDashboard(ctx context.Context, months int) (*core.DashboardSummary, error)

	// Bulk import / template export.
	ImportProducts(ctx context.Context, r io.Reader, filename string) (*core.ImportResult, error)
	ImportClients(ctx context.Context, r io.Reader, filename string) (*core.ImportResult, error)
	BuildImportTemplate() ([]byte, error)
}
