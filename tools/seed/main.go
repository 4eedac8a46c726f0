package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	relay "relaycloud/internal/relay/domain"
	"relaycloud/internal/relay/infrastructure/docstore"
	storepostgres "relaycloud/internal/store/postgres"
)

func main() {
	dsn := flag.String("dsn", envFirst("DATABASE_URL", "PG_DSN"), "postgres connection string")
	userID := flag.String("user", "", "user id to seed relays under")
	count := flag.Int("count", 0, "number of relays to create; 0 seeds one per suggested device")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("-dsn, DATABASE_URL or PG_DSN is required")
	}
	if *userID == "" {
		log.Fatal("-user is required")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	docs := storepostgres.New(db)
	if err := docs.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	repo, err := docstore.New(docs, *userID)
	if err != nil {
		log.Fatalf("repository: %v", err)
	}

	devices := relay.SuggestedDevices()
	if *count > 0 && *count < len(devices) {
		devices = devices[:*count]
	}

	collection, err := repo.FetchAll(ctx)
	if err != nil {
		log.Fatalf("fetch existing: %v", err)
	}
	nextID := relay.NextID(collection)

	for i, device := range devices {
		if err := repo.Create(ctx, nextID+i, device); err != nil {
			log.Fatalf("create %s: %v", device, err)
		}
		log.Printf("seeded relay id=%d device=%s user=%s", nextID+i, device, *userID)
	}
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
