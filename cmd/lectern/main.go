package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/cli/backups"
	"github.com/julianstephens/lectern/internal/cli/calendar"
	"github.com/julianstephens/lectern/internal/cli/library"
	"github.com/julianstephens/lectern/internal/cli/settings"
	"github.com/julianstephens/lectern/internal/cli/system"
	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/keyring"
	"github.com/julianstephens/lectern/internal/logger"
	"github.com/julianstephens/lectern/internal/storage"
	"github.com/julianstephens/lectern/internal/storage/postgres"
	"github.com/julianstephens/lectern/internal/storage/sqlite"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"SQLite database path or PostgreSQL connection string. PostgreSQL credentials must NOT be embedded; use ~/.pgpass, PGPASSWORD, LECTERN_DB_CONNECTION or the OS keyring instead." type:"string" default:"${default_config}"`
	Debug   bool   `help:"Log debug output to stderr."`
	Yes     bool   `help:"Answer yes to every confirmation prompt." short:"y"`

	Init     system.InitCmd    `cmd:"" help:"Initialize lectern storage."`
	Migrate  system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor   system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	DebugCmd system.DebugCmd   `cmd:"" name:"debug" help:"Debug commands for troubleshooting."`
	Keyring  system.KeyringCmd `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
	Backup   struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`

	Folder    library.FolderCmd     `cmd:"" help:"Manage recording folders."`
	Recording library.RecordingCmd  `cmd:"" help:"Manage lecture recordings, transcripts and summaries."`
	Category  calendar.CategoryCmd  `cmd:"" help:"Manage event categories."`
	Event     calendar.EventCmd     `cmd:"" help:"Manage calendar events and recurring series."`
	Reminder  calendar.ReminderCmd  `cmd:"" help:"Manage event reminders."`
	Agenda    calendar.EventListCmd `cmd:"" help:"Show the agenda (same as event list)." default:"1"`
	Settings  settings.SettingsCmd  `cmd:"" help:"Manage calendar settings."`
	Profile   settings.ProfileCmd   `cmd:"" help:"Manage your profile and preferences."`
}

// selfLoading commands open the store themselves or work without it.
var selfLoading = map[string]bool{
	"init":    true,
	"migrate": true,
	"doctor":  true,
	"keyring": true,
	"backup":  true,
}

func main() {
	vars := kong.Vars{
		"version":        constants.Version,
		"default_config": constants.DefaultConfigPath,
	}
	for k, v := range calendar.Vars() {
		vars[k] = v
	}

	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Lecture recordings and class calendar"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		vars,
	)

	config := expandHome(CLI.Config)
	if err := logger.Init(logger.Config{Debug: CLI.Debug, ConfigDir: configDir(config)}); err != nil {
		errors.Fatalf("failed to initialize logger: %v", err)
	}

	store, err := openStore(config)
	if err != nil {
		errors.Fatal(err)
	}

	parent, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := &cli.Context{
		Store:  store,
		Parent: parent,
		Yes:    CLI.Yes,
	}

	command := strings.Fields(ctx.Command())
	if len(command) > 0 && !selfLoading[command[0]] {
		if err := store.Load(); err != nil {
			errors.Fatal(err)
		}
	}

	err = ctx.Run(appCtx)
	if cerr := store.Close(); cerr != nil {
		logger.Warn("failed to close storage", "error", cerr)
	}
	if err != nil {
		errors.Fatal(err)
	}
}

// openStore picks the backend: a PostgreSQL URL in --config, then
// LECTERN_DB_CONNECTION or the keyring, then the SQLite file at --config.
func openStore(config string) (storage.Provider, error) {
	if strings.HasPrefix(config, "postgres://") || strings.HasPrefix(config, "postgresql://") {
		if _, err := postgres.ValidateConnString(config); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, fmt.Errorf("PostgreSQL connection strings passed with --config must not embed a password; use ~/.pgpass, PGPASSWORD or '%s keyring set'", constants.AppName)
			}
			return nil, err
		}
		logger.Debug("using postgres from --config")
		return postgres.New(config), nil
	}

	connStr, source, err := keyring.ResolveConnectionString()
	if err != nil {
		return nil, err
	}
	if source != keyring.SourceNone {
		logger.Debug("using postgres", "source", source)
		return postgres.New(connStr), nil
	}

	logger.Debug("using sqlite", "path", config)
	return sqlite.NewStore(config), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// configDir is where logs go: next to the SQLite file, or the default
// config directory when the database is remote.
func configDir(config string) string {
	if strings.Contains(config, "://") || strings.Contains(config, "=") {
		return filepath.Dir(expandHome(constants.DefaultConfigPath))
	}
	return filepath.Dir(config)
}
