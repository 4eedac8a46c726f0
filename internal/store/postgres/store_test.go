package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"relaycloud/internal/store"
	"relaycloud/internal/store/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func newTestStore(t *testing.T) (*postgres.Store, *sql.DB) {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	docs := postgres.New(db, postgres.WithTable("relays_it"))
	if err := docs.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), "DELETE FROM relays_it"); err != nil {
		t.Fatalf("clean table: %v", err)
	}
	return docs, db
}

func TestPostgresStore_RecordRoundTrip(t *testing.T) {
	docs, _ := newTestStore(t)
	ctx := context.Background()
	path := store.RelayPath("user-it", 1)

	snapshot, err := docs.Get(ctx, path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snapshot.Exists() {
		t.Fatal("expected absent record before write")
	}

	if err := docs.Update(ctx, path, store.Fields{store.FieldDevice: "GARDEN PUMP", store.FieldState: false}); err != nil {
		t.Fatalf("update: %v", err)
	}
	snapshot, err = docs.Get(ctx, path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fields, ok := snapshot.Record()
	if !ok {
		t.Fatal("expected record snapshot after write")
	}
	if store.DeviceOf(fields) != "GARDEN PUMP" || store.StateOf(fields) {
		t.Fatalf("unexpected record: device=%q state=%v", store.DeviceOf(fields), store.StateOf(fields))
	}
}

func TestPostgresStore_MergePatchPreservesDevice(t *testing.T) {
	docs, _ := newTestStore(t)
	ctx := context.Background()
	path := store.RelayPath("user-it", 2)

	if err := docs.Update(ctx, path, store.Fields{store.FieldDevice: "BEDROOM FAN", store.FieldState: false}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := docs.Update(ctx, path, store.Fields{store.FieldState: true}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	snapshot, err := docs.Get(ctx, path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fields, ok := snapshot.Record()
	if !ok {
		t.Fatal("expected record snapshot after patch")
	}
	if store.DeviceOf(fields) != "BEDROOM FAN" {
		t.Fatalf("patch clobbered device, got %q", store.DeviceOf(fields))
	}
	if !store.StateOf(fields) {
		t.Fatal("expected state true after patch")
	}
}

func TestPostgresStore_CollectionAndRemove(t *testing.T) {
	docs, _ := newTestStore(t)
	ctx := context.Background()

	for id := 1; id <= 3; id++ {
		if err := docs.Update(ctx, store.RelayPath("user-it", id), store.Fields{store.FieldDevice: "SWITCH", store.FieldState: false}); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}

	snapshot, err := docs.Get(ctx, store.RelayCollectionPath("user-it"))
	if err != nil {
		t.Fatalf("get collection: %v", err)
	}
	if len(snapshot.Children()) != 3 {
		t.Fatalf("expected 3 children, got %d", len(snapshot.Children()))
	}

	if err := docs.Remove(ctx, store.RelayPath("user-it", 2)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing an absent record stays silent.
	if err := docs.Remove(ctx, store.RelayPath("user-it", 2)); err != nil {
		t.Fatalf("second remove: %v", err)
	}

	snapshot, err = docs.Get(ctx, store.RelayCollectionPath("user-it"))
	if err != nil {
		t.Fatalf("get collection: %v", err)
	}
	if len(snapshot.Children()) != 2 {
		t.Fatalf("expected 2 children after remove, got %d", len(snapshot.Children()))
	}
}

func TestPostgresStore_WatchSeesWrites(t *testing.T) {
	docs, _ := newTestStore(t)
	ctx := context.Background()
	collectionPath := store.RelayCollectionPath("user-watch")

	var snapshots []store.Snapshot
	cancel, err := docs.Watch(collectionPath, func(snapshot store.Snapshot) {
		snapshots = append(snapshots, snapshot)
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	if len(snapshots) != 1 {
		t.Fatalf("expected immediate snapshot, got %d", len(snapshots))
	}

	if err := docs.Update(ctx, store.RelayPath("user-watch", 1), store.Fields{store.FieldDevice: "GARAGE DOOR", store.FieldState: false}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected snapshot after write, got %d", len(snapshots))
	}
	if len(snapshots[1].Children()) != 1 {
		t.Fatalf("expected one child in snapshot, got %d", len(snapshots[1].Children()))
	}
}
