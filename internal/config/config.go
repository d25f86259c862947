package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings read from the environment.
type Config struct {
	DatabaseURL    string
	ServerPort     string
	JWTSecret      string
	AllowedOrigins string // comma-separated; empty disables CORS
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads .env (if present) and the environment into a Config.
func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServerPort:     getenv("SERVER_PORT", "8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
	}
	log.Printf("[config] SERVER_PORT=%s", cfg.ServerPort)
	if cfg.AllowedOrigins != "" {
		log.Printf("[config] ALLOWED_ORIGINS=%s", cfg.AllowedOrigins)
	}
	if cfg.JWTSecret == "" {
		log.Println("[config] warning: JWT_SECRET is not set, using an insecure default")
		cfg.JWTSecret = "dev-insecure-secret"
	}
	return cfg
}
