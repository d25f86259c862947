// seed is a one-shot tool that loads a demo dataset for local development:
// an admin user, a couple of categories, a small product catalog, and one
// example client with buy and rent assignments.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"

	"hardstock/internal/config"
	"hardstock/internal/core"
	"hardstock/internal/db"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	log.Println("Seeding admin user...")
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ('admin', 'admin@example.com', $1, 'admin')
		ON CONFLICT (username) DO NOTHING
	`, string(hash))
	if err != nil {
		log.Fatalf("Failed to seed user: %v", err)
	}

	products := core.NewProductService(pool)
	clients := core.NewClientService(pool)

	log.Println("Seeding categories and products...")
	terminals, err := products.CreateCategory(ctx, "Terminals")
	if err != nil {
		log.Fatalf("Failed to seed category: %v", err)
	}
	routers, err := products.CreateCategory(ctx, "Routers")
	if err != nil {
		log.Fatalf("Failed to seed category: %v", err)
	}

	catalog := []core.ProductInput{
		{
			Code: "TERM-01", Name: "Payment Terminal S90", CategoryID: &terminals.ID,
			PurchasePrice: decimal.NewFromInt(120), SellingPrice: decimal.NewFromInt(180),
			RentPrice: decimal.NewFromInt(15), InitialStock: 25,
		},
		{
			Code: "TERM-02", Name: "Payment Terminal A920", CategoryID: &terminals.ID,
			PurchasePrice: decimal.NewFromInt(210), SellingPrice: decimal.NewFromInt(300),
			RentPrice: decimal.NewFromInt(25), InitialStock: 12,
		},
		{
			Code: "RTR-04", Name: "LTE Router", CategoryID: &routers.ID,
			PurchasePrice: decimal.RequireFromString("45.50"),
			RentPrice: decimal.NewFromInt(8), InitialStock: 10,
		},
	}
	productIDs := map[string]int{}
	for _, in := range catalog {
		p, err := products.CreateProduct(ctx, in)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", in.Code, err)
		}
		productIDs[p.Code] = p.ID
	}

	log.Println("Seeding example client...")
	_, err = clients.CreateClient(ctx, core.ClientInput{
		Name:             "Cafe du Port",
		StarterPackPrice: decimal.NewFromInt(50),
		Assignments: []core.AssignmentInput{
			{ProductID: productIDs["TERM-01"], Quantity: 2, Kind: core.KindBuy},
			{ProductID: productIDs["RTR-04"], Quantity: 1, Kind: core.KindRent, MonthlyFee: decimal.NewFromInt(8)},
		},
	})
	if err != nil {
		log.Fatalf("Failed to seed client: %v", err)
	}

	log.Println("Seed complete. Login with admin/admin.")
}
