package backup

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/lectern/internal/constants"
)

func setupTestDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "lectern.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE folders (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("failed to create test table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO folders (id, name) VALUES (1, 'Physics'), (2, 'History')`); err != nil {
		t.Fatalf("failed to insert test data: %v", err)
	}
	return dbPath
}

// steppingClock returns a clock that advances one minute per call.
func steppingClock() func() time.Time {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		at = at.Add(time.Minute)
		return at
	}
}

func countFolders(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM folders").Scan(&n); err != nil {
		t.Fatalf("failed to count folders: %v", err)
	}
	return n
}

func TestCreate(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC) }

	path, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	want := filepath.Join(filepath.Dir(dbPath), constants.BackupDirName, "lectern-20240301-093015.db")
	if path != want {
		t.Errorf("backup path = %s, want %s", path, want)
	}
	if n := countFolders(t, path); n != 2 {
		t.Errorf("backup has %d folders, want 2", n)
	}
}

func TestCreateWithoutDatabase(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := mgr.Create(); err == nil {
		t.Error("Create should fail when the database does not exist")
	}
}

func TestCreateSameSecond(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		path, err := mgr.Create()
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		if seen[path] {
			t.Fatalf("duplicate backup path %s", path)
		}
		seen[path] = true
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 3 {
		t.Errorf("expected 3 backups, got %d", len(backups))
	}
}

func TestRotation(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.now = steppingClock()

	total := constants.MaxBackups + 3
	var first string
	for i := 0; i < total; i++ {
		path, err := mgr.Create()
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		if i == 0 {
			first = path
		}
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != constants.MaxBackups {
		t.Errorf("expected %d backups after rotation, got %d", constants.MaxBackups, len(backups))
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Errorf("oldest backup %s should have been pruned", first)
	}
}

func TestList(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.now = steppingClock()

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List on missing directory failed: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %d", len(backups))
	}

	for i := 0; i < 3; i++ {
		if _, err := mgr.Create(); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	// unrelated files are ignored
	if err := os.WriteFile(filepath.Join(mgr.Dir(), "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mgr.Dir(), "lectern-garbage.db"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	backups, err = mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("expected 3 backups, got %d", len(backups))
	}
	for i := 1; i < len(backups); i++ {
		if !backups[i-1].Timestamp.After(backups[i].Timestamp) {
			t.Errorf("backups not newest first: %v then %v", backups[i-1].Timestamp, backups[i].Timestamp)
		}
	}
	for _, b := range backups {
		if b.Size == 0 {
			t.Errorf("backup %s has zero size", b.Path)
		}
		if !strings.HasPrefix(filepath.Base(b.Path), constants.BackupFilePrefix) {
			t.Errorf("unexpected backup name %s", b.Path)
		}
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		want time.Time
	}{
		{"lectern-20240301-093015.db", true, time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)},
		{"lectern-20240301-093015-2.db", true, time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)},
		{"lectern-20240301.db", false, time.Time{}},
		{"other-20240301-093015.db", false, time.Time{}},
		{"lectern-20240301-093015.sqlite", false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseName(tt.name)
			if ok != tt.ok {
				t.Fatalf("parseName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("parseName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestRestore(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.now = steppingClock()

	backupPath, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO folders (id, name) VALUES (3, 'Biology')"); err != nil {
		t.Fatal(err)
	}
	db.Close()
	if n := countFolders(t, dbPath); n != 3 {
		t.Fatalf("expected 3 folders before restore, got %d", n)
	}

	safety, err := mgr.Restore(backupPath)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n := countFolders(t, dbPath); n != 2 {
		t.Errorf("expected 2 folders after restore, got %d", n)
	}
	if safety == "" {
		t.Fatal("Restore should snapshot the current database")
	}
	if n := countFolders(t, safety); n != 3 {
		t.Errorf("safety snapshot has %d folders, want 3", n)
	}
}

func TestRestoreWithoutCurrentDatabase(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.now = steppingClock()

	backupPath, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := os.Remove(dbPath); err != nil {
		t.Fatal(err)
	}

	safety, err := mgr.Restore(backupPath)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if safety != "" {
		t.Errorf("expected no safety snapshot, got %s", safety)
	}
	if n := countFolders(t, dbPath); n != 2 {
		t.Errorf("expected 2 folders after restore, got %d", n)
	}
}

func TestRestoreRejectsBadBackups(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)

	if _, err := mgr.Restore(filepath.Join(t.TempDir(), "nope.db")); err == nil {
		t.Error("Restore should fail for a missing backup")
	}

	corrupt := filepath.Join(t.TempDir(), "lectern-20240301-090000.db")
	if err := os.WriteFile(corrupt, []byte("this is not a sqlite database"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Restore(corrupt); err == nil {
		t.Error("Restore should fail for a corrupted backup")
	}
	if n := countFolders(t, dbPath); n != 2 {
		t.Errorf("database changed after failed restore: %d folders", n)
	}
}
