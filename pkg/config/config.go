package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Owner         OwnerConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Storage       StorageConfig
	CORS          CORSConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.FeatureFlags.validate(cfg.GCS); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig signs the owner session tokens stored in the session cookie.
type JWTConfig struct {
	Secret          string        `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer          string        `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	SessionTTL      time.Duration `envconfig:"STOREFRONT_SESSION_TTL" default:"120h"`
	CookieName      string        `envconfig:"STOREFRONT_SESSION_COOKIE" default:"session"`
	CookieSecureOff bool          `envconfig:"STOREFRONT_SESSION_COOKIE_INSECURE" default:"false"`
}

// OwnerConfig identifies the single administrative account and the identity
// provider whose ID tokens are exchanged for a session.
type OwnerConfig struct {
	Email            string `envconfig:"STOREFRONT_OWNER_EMAIL" required:"true"`
	IdentityIssuer   string `envconfig:"STOREFRONT_IDENTITY_ISSUER" required:"true"`
	IdentityAudience string `envconfig:"STOREFRONT_IDENTITY_AUDIENCE" required:"true"`
	IdentitySecret   string `envconfig:"STOREFRONT_IDENTITY_SECRET"`
	IdentityPEM      string `envconfig:"STOREFRONT_IDENTITY_PUBLIC_KEY_PEM"`
}

type AuthRateLimitConfig struct {
	SessionWindow      time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SESSION_WINDOW" default:"1m"`
	SessionIPLimit     int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SESSION_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite    bool   `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate  bool   `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	ImageStorage string `envconfig:"STOREFRONT_IMAGE_STORAGE" default:"local"`
}

func (f FeatureFlagsConfig) validate(gcs GCSConfig) error {
	switch strings.ToLower(strings.TrimSpace(f.ImageStorage)) {
	case ImageStorageLocal:
		return nil
	case ImageStorageGCS:
		if strings.TrimSpace(gcs.BucketName) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCSBucket, EnvImageStorage, ImageStorageGCS)
		}
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvImageStorage, ImageStorageLocal, ImageStorageGCS)
	}
}

// UsesGCS reports whether product images are stored in a GCS bucket.
func (f FeatureFlagsConfig) UsesGCS() bool {
	return strings.EqualFold(strings.TrimSpace(f.ImageStorage), ImageStorageGCS)
}

type StorageConfig struct {
	UploadDir    string `envconfig:"STOREFRONT_UPLOAD_DIR" default:"public/uploads"`
	PublicPrefix string `envconfig:"STOREFRONT_UPLOAD_PUBLIC_PREFIX" default:"/uploads"`
	DefaultImage string `envconfig:"STOREFRONT_DEFAULT_PRODUCT_IMAGE" default:"/img/default-bag.jpg"`
	MaxUploadMB  int    `envconfig:"STOREFRONT_MAX_UPLOAD_MB" default:"5"`
}

// MaxUploadBytes converts the configured upload ceiling to bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 5 << 20
	}
	return int64(s.MaxUploadMB) << 20
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"STOREFRONT_GCS_BUCKET_NAME"`
	PublicHost string `envconfig:"STOREFRONT_GCS_PUBLIC_HOST" default:"https://storage.googleapis.com"`
}

type PubSubConfig struct {
	SalesTopic            string `envconfig:"STOREFRONT_PUBSUB_SALES_TOPIC" default:"storefront-sales-events"`
	AnalyticsSubscription string `envconfig:"STOREFRONT_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"storefront-sales-analytics"`
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"STOREFRONT_BIGQUERY_DATASET" default:"storefront"`
	SalesTable string `envconfig:"STOREFRONT_BIGQUERY_SALES_TABLE" default:"sale_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// ConsumerIdempotencyTTL bounds how long consumers remember processed event ids.
	ConsumerIdempotencyTTL time.Duration `envconfig:"STOREFRONT_OUTBOX_CONSUMER_IDEMPOTENCY_TTL" default:"168h"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"1h"`
	PendingSaleTTL      time.Duration `envconfig:"STOREFRONT_CRON_PENDING_SALE_TTL" default:"0"`
	OutboxRetentionDays int           `envconfig:"STOREFRONT_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
