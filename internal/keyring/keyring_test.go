package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/lectern/internal/constants"
)

func TestSetGetDelete(t *testing.T) {
	gokeyring.MockInit()

	connStr := "postgres://lectern@localhost:5432/notes?sslmode=disable"
	if err := SetConnectionString(connStr); err != nil {
		t.Fatalf("SetConnectionString() failed: %v", err)
	}

	got, err := GetConnectionString()
	if err != nil {
		t.Fatalf("GetConnectionString() failed: %v", err)
	}
	if got != connStr {
		t.Errorf("GetConnectionString() = %q, want %q", got, connStr)
	}

	if err := DeleteConnectionString(); err != nil {
		t.Fatalf("DeleteConnectionString() failed: %v", err)
	}
	if _, err := GetConnectionString(); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete, GetConnectionString() error = %v, want %v", err, ErrNotFound)
	}
	if err := DeleteConnectionString(); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want %v", err, ErrNotFound)
	}
}

func TestSetConnectionStringEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := SetConnectionString("   "); err == nil {
		t.Error("SetConnectionString with blank input should fail")
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()

	if !IsAvailable() {
		t.Error("IsAvailable() = false, want true in mock mode")
	}
}

func TestResolveConnectionString(t *testing.T) {
	gokeyring.MockInit()
	_ = DeleteConnectionString()

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv(constants.ConnectionEnvVar, "")
		connStr, src, err := ResolveConnectionString()
		if err != nil || connStr != "" || src != SourceNone {
			t.Errorf("got (%q, %q, %v), want empty", connStr, src, err)
		}
	})

	t.Run("keyring", func(t *testing.T) {
		t.Setenv(constants.ConnectionEnvVar, "")
		if err := SetConnectionString("host=db dbname=notes"); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = DeleteConnectionString() })

		connStr, src, err := ResolveConnectionString()
		if err != nil || connStr != "host=db dbname=notes" || src != SourceKeyring {
			t.Errorf("got (%q, %q, %v)", connStr, src, err)
		}
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv(constants.ConnectionEnvVar, "host=env dbname=notes")
		if err := SetConnectionString("host=db dbname=notes"); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = DeleteConnectionString() })

		connStr, src, err := ResolveConnectionString()
		if err != nil || connStr != "host=env dbname=notes" || src != SourceEnv {
			t.Errorf("got (%q, %q, %v)", connStr, src, err)
		}
	})
}
