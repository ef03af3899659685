package constants

import "time"

const (
	AppName            = "lectern"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/lectern/lectern.db"
	Version            = "v0.3.0"

	// ConnectionEnvVar holds a PostgreSQL connection string and takes precedence over the keyring.
	ConnectionEnvVar = "LECTERN_DB_CONNECTION"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "lectern-"
	BackupFileSuffix = ".db"

	// Log constants
	LogDirName    = "logs"
	LogFileName   = "lectern.log"
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
	LogMaxAgeDays = 28

	// Notify constants
	NotifierLockfileName   = "lectern-tray.lock"
	NotifierExecutable     = "lectern-tray"
	NotificationDurationMs = 5000
	AlarmDurationMs        = 30000
	TrayAppIdentifier      = "com.julianstephens.lectern"
	NotifyTimeout          = 5 * time.Second

	// SingletonRowID is the fixed primary key of app_settings and calendar_settings
	SingletonRowID = 1
)
