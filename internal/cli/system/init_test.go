package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
	"github.com/julianstephens/lectern/internal/storage/sqlite"
)

func setupTestInitDB(t *testing.T) (*cli.Context, string) {
	dbPath := filepath.Join(t.TempDir(), "lectern.db")
	store := sqlite.NewStore(dbPath)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return &cli.Context{Store: store, Yes: true}, dbPath
}

func TestInitCmd_Success(t *testing.T) {
	ctx, dbPath := setupTestInitDB(t)

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("init command failed: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}
	if _, err := ctx.Store.CalendarSettings(context.Background()); err != nil {
		t.Errorf("calendar settings missing after init: %v", err)
	}
}

func TestInitCmd_Idempotent(t *testing.T) {
	ctx, _ := setupTestInitDB(t)

	cmd := &InitCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("second init failed (should be idempotent): %v", err)
	}
}

func TestInitCmd_ForceDeletesExisting(t *testing.T) {
	ctx, _ := setupTestInitDB(t)

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("initial init failed: %v", err)
	}
	if _, err := ctx.Store.Insert(context.Background(), models.Folder{Name: "Physics"}); err != nil {
		t.Fatalf("failed to add folder: %v", err)
	}

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("forced init failed: %v", err)
	}
	rows, err := ctx.Store.FindMany(context.Background(), query.For(models.EntityFolder))
	if err != nil {
		t.Fatalf("failed to list folders: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected an empty database after --force, got %d folders", len(rows))
	}
}

func TestMigrateCmd(t *testing.T) {
	ctx, _ := setupTestInitDB(t)

	// migrate works on a fresh file
	if err := (&MigrateCmd{}).Run(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	current, latest, err := ctx.Store.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if current != latest {
		t.Errorf("schema version %d, want %d", current, latest)
	}
	if err := (&MigrateCmd{}).Run(ctx); err != nil {
		t.Errorf("second migrate failed: %v", err)
	}
}
