package main

import (
	"log"
	"os"

	"github.com/rawblock/forensics-engine/internal/api"
	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/db"
	"github.com/rawblock/forensics-engine/internal/engine"
)

func main() {
	log.Println("Starting Money Mule Forensics Engine...")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("FATAL: invalid detection configuration: %v", err)
	}

	// The database is an optional ingestion path. Without it the engine
	// still serves CSV uploads, so a failed connect is a warning.
	var dbConn *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbConn, err = db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing with CSV-only ingestion. Error: %v", err)
			dbConn = nil
		} else {
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set, database ingestion disabled")
	}

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	eng := engine.New(cfg, api.EventSink(wsHub))

	// Setup the Gin Router
	r := api.SetupRouter(eng, dbConn, wsHub)

	port := getEnvOrDefault("PORT", "5340")

	// Start the server
	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
