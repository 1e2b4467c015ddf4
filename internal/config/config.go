package config

import (
	"time"

	"github.com/spf13/viper"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite DatabaseDriver = "sqlite" // Local file database (default)
	DatabaseDriverMySQL  DatabaseDriver = "mysql"  // DSN-based MySQL connection
)

type StorageBackend string

const (
	StorageBackendS3   StorageBackend = "s3"
	StorageBackendSFTP StorageBackend = "sftp"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Drive
		Remote
		Transfer
		ObjectStorage
		SFTP
		Tasks
		ImportSync
		Log
		Redis
		Mongo
		Audit
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver DatabaseDriver
		Path   string // SQLite file path
		DSN    string // MySQL DSN
	}
	Drive struct {
		CredentialsFile string // Service account or authorized user JSON
		DefaultFolder   string // Folder URL or ID used by scheduled imports
		DefaultCourseID string // Destination course used by scheduled imports
	}
	Remote struct {
		RateLimitInterval   time.Duration // Minimum spacing between provider calls (default: 200ms)
		MaxRateLimitBackoff time.Duration // Cap for rate-limit backoff (default: 8s)
		Retries             int           // Attempts per call (default: 6)
		BaseDelay           time.Duration // Base backoff delay (default: 300ms)
		CallTimeout         time.Duration // Per-attempt timeout (default: 60s)
	}
	Transfer struct {
		MaxDocExportBytes      int64
		ResumableThreshold     int64
		ChunkSize              int64
		DownloadRequestTimeout time.Duration
		StreamTimeout          time.Duration
		StoreBinaries          bool // Copy non-native binaries into object storage too
	}
	ObjectStorage struct {
		Backend      StorageBackend
		Bucket       string
		Endpoint     string
		Region       string
		AccessKey    string
		SecretKey    string
		PathStyle    bool
		CustomDomain string // Public URL prefix, e.g. a CDN in front of the bucket
	}
	SFTP struct {
		Host          string
		Port          int
		User          string
		Password      string
		KeyPath       string
		RemoteDir     string
		PublicBaseURL string
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	ImportSync struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Log struct {
		Level       string
		Development bool
	}
	Redis struct {
		URL     string // Empty disables the redis progress publisher
		Channel string
	}
	Mongo struct {
		URI        string // Empty disables the mongo job log
		Database   string
		Collection string
	}
	Audit struct {
		ReportDir       string        // Full import reports as JSON; empty disables
		Retention       time.Duration // Audit events and finished runs older than this are purged
		CleanupSchedule string        // Cron format
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_driver", string(DatabaseDriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	v.SetDefault("google_credentials_file", "")
	v.SetDefault("drive_default_folder", "")
	v.SetDefault("drive_default_course_id", "")

	// Remote call defaults
	v.SetDefault("rate_limit_interval", "200ms")
	v.SetDefault("max_rate_limit_backoff", "8s")
	v.SetDefault("remote_retries", 6)
	v.SetDefault("remote_base_delay", "300ms")
	v.SetDefault("remote_call_timeout", "60s")

	// Transfer defaults
	v.SetDefault("max_doc_export_bytes", DefaultMaxDocExportBytes)
	v.SetDefault("tus_threshold_bytes", DefaultResumableThresholdBytes)
	v.SetDefault("upload_chunk_size", DefaultUploadChunkSize)
	v.SetDefault("download_request_timeout", "60s")
	v.SetDefault("stream_timeout", "10m")
	v.SetDefault("store_binaries", false)

	// Object storage defaults
	v.SetDefault("storage_backend", string(StorageBackendS3))
	v.SetDefault("storage_bucket", DefaultBucket)
	v.SetDefault("storage_endpoint", "")
	v.SetDefault("storage_region", "us-east-1")
	v.SetDefault("storage_path_style", false)
	v.SetDefault("storage_custom_domain", "")
	v.SetDefault("sftp_port", 22)
	v.SetDefault("sftp_remote_dir", "/srv/course-content")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "2h")
	v.SetDefault("task_release_after", "3h")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "72h")

	v.SetDefault("import_sync_enabled", false)
	v.SetDefault("import_sync_schedule", "0 3 * * *") // Daily at 03:00

	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)

	v.SetDefault("redis_url", "")
	v.SetDefault("redis_progress_channel", "course-import:progress")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "course_import")
	v.SetDefault("mongo_collection", "import_events")
	v.SetDefault("audit_report_dir", DefaultAuditReportDir)
	v.SetDefault("audit_retention", "720h")
	v.SetDefault("audit_cleanup_schedule", "0 4 * * *")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver: DatabaseDriver(v.GetString("DATABASE_DRIVER")),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Drive: Drive{
			CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
			DefaultFolder:   v.GetString("DRIVE_DEFAULT_FOLDER"),
			DefaultCourseID: v.GetString("DRIVE_DEFAULT_COURSE_ID"),
		},
		Remote: Remote{
			RateLimitInterval:   v.GetDuration("RATE_LIMIT_INTERVAL"),
			MaxRateLimitBackoff: v.GetDuration("MAX_RATE_LIMIT_BACKOFF"),
			Retries:             v.GetInt("REMOTE_RETRIES"),
			BaseDelay:           v.GetDuration("REMOTE_BASE_DELAY"),
			CallTimeout:         v.GetDuration("REMOTE_CALL_TIMEOUT"),
		},
		Transfer: Transfer{
			MaxDocExportBytes:      v.GetInt64("MAX_DOC_EXPORT_BYTES"),
			ResumableThreshold:     v.GetInt64("TUS_THRESHOLD_BYTES"),
			ChunkSize:              v.GetInt64("UPLOAD_CHUNK_SIZE"),
			DownloadRequestTimeout: v.GetDuration("DOWNLOAD_REQUEST_TIMEOUT"),
			StreamTimeout:          v.GetDuration("STREAM_TIMEOUT"),
			StoreBinaries:          v.GetBool("STORE_BINARIES"),
		},
		ObjectStorage: ObjectStorage{
			Backend:      StorageBackend(v.GetString("STORAGE_BACKEND")),
			Bucket:       v.GetString("STORAGE_BUCKET"),
			Endpoint:     v.GetString("STORAGE_ENDPOINT"),
			Region:       v.GetString("STORAGE_REGION"),
			AccessKey:    v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:    v.GetString("STORAGE_SECRET_KEY"),
			PathStyle:    v.GetBool("STORAGE_PATH_STYLE"),
			CustomDomain: v.GetString("STORAGE_CUSTOM_DOMAIN"),
		},
		SFTP: SFTP{
			Host:          v.GetString("SFTP_HOST"),
			Port:          v.GetInt("SFTP_PORT"),
			User:          v.GetString("SFTP_USER"),
			Password:      v.GetString("SFTP_PASSWORD"),
			KeyPath:       v.GetString("SFTP_KEY_PATH"),
			RemoteDir:     v.GetString("SFTP_REMOTE_DIR"),
			PublicBaseURL: v.GetString("SFTP_PUBLIC_BASE_URL"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		ImportSync: ImportSync{
			Enabled:  v.GetBool("IMPORT_SYNC_ENABLED"),
			Schedule: v.GetString("IMPORT_SYNC_SCHEDULE"),
		},
		Log: Log{
			Level:       v.GetString("LOG_LEVEL"),
			Development: v.GetBool("LOG_DEVELOPMENT"),
		},
		Redis: Redis{
			URL:     v.GetString("REDIS_URL"),
			Channel: v.GetString("REDIS_PROGRESS_CHANNEL"),
		},
		Mongo: Mongo{
			URI:        v.GetString("MONGO_URI"),
			Database:   v.GetString("MONGO_DATABASE"),
			Collection: v.GetString("MONGO_COLLECTION"),
		},
		Audit: Audit{
			ReportDir:       v.GetString("AUDIT_REPORT_DIR"),
			Retention:       v.GetDuration("AUDIT_RETENTION"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
	}
}
