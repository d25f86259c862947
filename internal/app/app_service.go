package app

import (
	"context"
	"fmt"
	"io"

	"hardstock/internal/core"

	"golang.org/x/crypto/bcrypt"
)

type appService struct {
	products  core.ProductService
	clients   core.ClientService
	reporting core.ReportingService
	imports   core.ImportService
	users     core.UserService
}

// NewAppService wires the core services behind the ApplicationService facade.
func NewAppService(
	products core.ProductService,
	clients core.ClientService,
	reporting core.ReportingService,
	imports core.ImportService,
	users core.UserService,
) ApplicationService {
	return &appService{
		products:  products,
		clients:   clients,
		reporting: reporting,
		imports:   imports,
		users:     users,
	}
}

// ── Auth ──────────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("authentication failed: invalid password")
	}
	return &UserSession{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context) ([]core.Product, error) {
	return s.products.ListProducts(ctx)
}

func (s *appService) GetProduct(ctx context.Context, id int) (*core.Product, error) {
	return s.products.GetProduct(ctx, id)
}

func (s *appService) CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error) {
	return s.products.CreateProduct(ctx, in)
}

func (s *appService) UpdateProduct(ctx context.Context, id int, in core.ProductInput) (*core.Product, error) {
	return s.products.UpdateProduct(ctx, id, in)
}

func (s *appService) DeleteProduct(ctx context.Context, id int) error {
	return s.products.DeleteProduct(ctx, id)
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.Product, error) {
	return s.products.AdjustStock(ctx, req.ProductID, req.StockDelta, req.HardwareDelta, req.Note)
}

func (s *appService) ListMovements(ctx context.Context, productID int) ([]core.StockMovement, error) {
	return s.products.ListMovements(ctx, productID)
}

func (s *appService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.products.ListCategories(ctx)
}

func (s *appService) CreateCategory(ctx context.Context, name string) (*core.Category, error) {
	return s.products.CreateCategory(ctx, name)
}

// ── Clients ───────────────────────────────────────────────────────────────────

func (s *appService) ListClients(ctx context.Context, status *core.ClientStatus) ([]core.Client, error) {
	return s.clients.ListClients(ctx, status)
}

func (s *appService) GetClient(ctx context.Context, id int) (*core.Client, error) {
	return s.clients.GetClient(ctx, id)
}

func (s *appService) CreateClient(ctx context.Context, in core.ClientInput) (*core.Client, error) {
	return s.clients.CreateClient(ctx, in)
}

func (s *appService) UpdateClient(ctx context.Context, id int, in core.ClientInput) (*core.Client, error) {
	return s.clients.UpdateClient(ctx, id, in)
}

func (s *appService) DeleteClient(ctx context.Context, id int) error {
	return s.clients.DeleteClient(ctx, id)
}

func (s *appService) SetClientStatus(ctx context.Context, id int, status core.ClientStatus) (*core.Client, error) {
	return s.clients.SetStatus(ctx, id, status)
}

func (s *appService) GetClientMetrics(ctx context.Context, id int) (*core.ClientMetrics, error) {
	return s.clients.GetMetrics(ctx, id)
}

func (s *appService) ListCommissions(ctx context.Context, clientID int) ([]core.Commission, error) {
	return s.clients.ListCommissions(ctx, clientID)
}

func (s *appService) RecordCommission(ctx context.Context, req RecordCommissionRequest) (*core.Commission, error) {
	return s.clients.RecordCommission(ctx, req.ClientID, req.Period, req.Amount, req.Note)
}

// ── Reporting ─────────────────────────────────────────────────────────────────

func (s *appService) GetDashboard(ctx context.Context, months int) (*core.DashboardSummary, error) {
	return s.reporting.GetDashboard(ctx, months)
}

// ── Import / export ───────────────────────────────────────────────────────────

func (s *appService) ImportProducts(ctx context.Context, r io.Reader, filename string) (*core.ImportResult, error) {
	return s.imports.ImportProducts(ctx, r, filename)
}

func (s *appService) ImportClients(ctx context.Context, r io.Reader, filename string) (*core.ImportResult, error) {
	return s.imports.ImportClients(ctx, r, filename)
}

func (s *appService) BuildImportTemplate() ([]byte, error) {
	return s.imports.BuildTemplate()
}
