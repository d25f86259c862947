package main

import (
	"context"
	"log"
	"net/http"

	webAdapter "hardstock/internal/adapters/web"
	"hardstock/internal/app"
	"hardstock/internal/config"
	"hardstock/internal/core"
	"hardstock/internal/db"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	productService := core.NewProductService(pool)
	clientService := core.NewClientService(pool)
	reportingService := core.NewReportingService(pool)
	importService := core.NewImportService(pool, clientService)
	userService := core.NewUserService(pool)

	svc := app.NewAppService(productService, clientService, reportingService, importService, userService)
	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret)

	log.Printf("server starting on :%s", cfg.ServerPort)
	if err := http.ListenAndServe(":"+cfg.ServerPort, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
