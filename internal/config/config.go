package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zaidhuda/wedding-gallery-sub000/pkg/domain"
)

// ConfigPath is the default config file, overridable with GALLERY_CONFIG.
var ConfigPath = "config.yaml"

const (
	defaultPort              = "8080"
	defaultMaxUploadBytes    = 10 << 20
	defaultModerationTimeout = 20 * time.Second
	defaultPresignExpiry     = 24 * time.Hour
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port              string   `yaml:"port"`
	LogLevel          string   `yaml:"logLevel"`
	DatabaseURL       string   `yaml:"databaseURL"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`

	GuestPassword     string `yaml:"guestPassword"`
	GuestPasswordHash string `yaml:"guestPasswordHash"`
	MaxUploadBytes    int64  `yaml:"maxUploadBytes"`

	// StorageBackend is "file" (default) or "minio".
	StorageBackend string `yaml:"storageBackend"`
	FileStorePath  string `yaml:"fileStorePath"`
	// PublicBaseURL, when set, builds photo URLs as PublicBaseURL/objectKey instead of presigning.
	PublicBaseURL  string `yaml:"publicBaseURL"`
	PresignExpiry  string `yaml:"presignExpiry"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioRegion    string `yaml:"minioRegion"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioPrefix    string `yaml:"minioPrefix"`

	AIProvider        string `yaml:"aiProvider"`
	AIAPIKey          string `yaml:"aiApiKey"`
	AIBaseURL         string `yaml:"aiBaseURL"`
	AITextModel       string `yaml:"aiTextModel"`
	AIVisionModel     string `yaml:"aiVisionModel"`
	ModerationTimeout string `yaml:"moderationTimeout"`

	AccessJWKSURL  string   `yaml:"accessJwksURL"`
	AccessIssuer   string   `yaml:"accessIssuer"`
	AccessAudience string   `yaml:"accessAudience"`
	AccessLeeway   string   `yaml:"accessLeeway"`
	AdminEmails    []string `yaml:"adminEmails"`

	// AuditSink is "none" (default), "redis" or "database".
	AuditSink     string `yaml:"auditSink"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	AuditStream   string `yaml:"auditStream"`

	TimeZone string         `yaml:"timeZone"`
	Events   []domain.Event `yaml:"events"`
}

// Load reads config from path (defaults to ConfigPath or GALLERY_CONFIG).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GALLERY_CONFIG"))
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(env string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	setString("GALLERY_PORT", &cfg.Port)
	setString("GALLERY_LOG_LEVEL", &cfg.LogLevel)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("GALLERY_GUEST_PASSWORD", &cfg.GuestPassword)
	setString("GALLERY_GUEST_PASSWORD_HASH", &cfg.GuestPasswordHash)
	setString("GALLERY_STORAGE_BACKEND", &cfg.StorageBackend)
	setString("GALLERY_FILE_STORE_PATH", &cfg.FileStorePath)
	setString("GALLERY_PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	setString("MINIO_ENDPOINT", &cfg.MinioEndpoint)
	setString("MINIO_ACCESS_KEY", &cfg.MinioAccessKey)
	setString("MINIO_SECRET_KEY", &cfg.MinioSecretKey)
	setString("MINIO_BUCKET", &cfg.MinioBucket)
	setString("MINIO_REGION", &cfg.MinioRegion)
	setString("MINIO_PREFIX", &cfg.MinioPrefix)
	setString("GALLERY_AI_PROVIDER", &cfg.AIProvider)
	setString("GALLERY_AI_BASE_URL", &cfg.AIBaseURL)
	setString("GALLERY_AI_TEXT_MODEL", &cfg.AITextModel)
	setString("GALLERY_AI_VISION_MODEL", &cfg.AIVisionModel)
	setString("GALLERY_MODERATION_TIMEOUT", &cfg.ModerationTimeout)
	setString("GALLERY_ACCESS_JWKS_URL", &cfg.AccessJWKSURL)
	setString("GALLERY_ACCESS_ISSUER", &cfg.AccessIssuer)
	setString("GALLERY_ACCESS_AUDIENCE", &cfg.AccessAudience)
	setString("GALLERY_AUDIT_SINK", &cfg.AuditSink)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setString("GALLERY_TIME_ZONE", &cfg.TimeZone)

	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" && strings.EqualFold(cfg.AIProvider, "gemini") {
		cfg.AIAPIKey = v
	}
	setString("GALLERY_AI_API_KEY", &cfg.AIAPIKey)
	if v := os.Getenv("GALLERY_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("GALLERY_ADMIN_EMAILS"); v != "" {
		cfg.AdminEmails = splitCSV(v)
	}
	if v := os.Getenv("GALLERY_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("GALLERY_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "file"
	}
	if cfg.StorageBackend == "file" && cfg.FileStorePath == "" {
		cfg.FileStorePath = "data/photos"
	}
	if cfg.AuditSink == "" {
		cfg.AuditSink = "none"
	}
	if cfg.AuditStream == "" {
		cfg.AuditStream = "gallery:moderation"
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = domain.DefaultTimeZone
	}
	if len(cfg.Events) == 0 {
		cfg.Events = domain.DefaultEvents()
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.GuestPassword) == "" && strings.TrimSpace(cfg.GuestPasswordHash) == "" {
		return errors.New("config: guestPassword or guestPasswordHash is required (set in config.yaml or GALLERY_GUEST_PASSWORD)")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	switch cfg.StorageBackend {
	case "file":
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for storageBackend minio")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q", cfg.StorageBackend)
	}
	switch cfg.AuditSink {
	case "none":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for auditSink redis")
		}
	case "database":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for auditSink database")
		}
	default:
		return fmt.Errorf("config: unknown auditSink %q", cfg.AuditSink)
	}
	if cfg.AccessJWKSURL != "" && cfg.AccessAudience == "" {
		return errors.New("config: accessAudience is required when accessJwksURL is set")
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return fmt.Errorf("config: invalid timeZone: %w", err)
	}
	for _, field := range []struct{ name, value string }{
		{"moderationTimeout", cfg.ModerationTimeout},
		{"presignExpiry", cfg.PresignExpiry},
		{"accessLeeway", cfg.AccessLeeway},
	} {
		if _, err := parseDuration(field.name, field.value, 0); err != nil {
			return err
		}
	}
	return nil
}

// ModerationTimeoutDuration returns the moderation deadline (default 20s).
func (c FileConfig) ModerationTimeoutDuration() time.Duration {
	d, _ := parseDuration("moderationTimeout", c.ModerationTimeout, defaultModerationTimeout)
	return d
}

// PresignExpiryDuration returns how long presigned photo URLs stay valid.
func (c FileConfig) PresignExpiryDuration() time.Duration {
	d, _ := parseDuration("presignExpiry", c.PresignExpiry, defaultPresignExpiry)
	return d
}

// AccessLeewayDuration returns the clock skew allowed on admin assertions.
func (c FileConfig) AccessLeewayDuration() time.Duration {
	d, _ := parseDuration("accessLeeway", c.AccessLeeway, 0)
	return d
}

// Catalog builds the event catalog in the configured zone.
func (c FileConfig) Catalog() (*domain.Catalog, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}
	return domain.NewCatalog(c.Events, loc)
}

func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("config: invalid %s duration: %w", name, err)
	}
	if d < 0 {
		return def, fmt.Errorf("config: %s must be >= 0", name)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
