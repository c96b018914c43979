package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Agent      AgentConfig
	Pipeline   PipelineConfig
	Cache      CacheConfig
	Log        LogConfig
	CORS       CORSConfig
	FollowUp   FollowUpConfig
	Email      EmailConfig
	Telemetry  TelemetryConfig
	Properties Properties
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds the settings used to verify service tokens issued to the
// workflow engine.
type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// StorageConfig selects the default object-store provider and holds the
// settings of each provider.
type StorageConfig struct {
	Provider      string      `mapstructure:"provider"`
	RootFolder    string      `mapstructure:"root_folder"`
	KeyScheme     string      `mapstructure:"key_scheme"`
	MaxFileSizeMB int64       `mapstructure:"max_file_size_mb"`
	S3            S3Config    `mapstructure:"s3"`
	Minio         MinioConfig `mapstructure:"minio"`
	Azure         AzureConfig `mapstructure:"azure"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// MinioConfig holds MinIO settings.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// AzureConfig holds Azure Blob Storage settings.
type AzureConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
}

// AgentConfig holds outbound agent call settings.
type AgentConfig struct {
	TimeoutSecs  int `mapstructure:"timeout_secs"`
	SuccessCode  int `mapstructure:"success_code"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`
}

// PipelineConfig holds orchestration limits.
type PipelineConfig struct {
	FetchConcurrency int `mapstructure:"fetch_concurrency"`
}

// CacheConfig bounds the workflow-config and storage-provider caches.
type CacheConfig struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Size int           `mapstructure:"size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// FollowUpConfig holds delayed follow-up notification settings.
type FollowUpConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Delay        time.Duration `mapstructure:"delay"`
	FlagVariable string        `mapstructure:"flag_variable"`
	Recipient    string        `mapstructure:"recipient"`
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Properties are the static ${appproperties.*} values. Keys are stored and
// looked up lower-cased.
type Properties map[string]string

// Property implements placeholder.PropertySource.
func (p Properties) Property(key string) (string, bool) {
	v, ok := p[strings.ToLower(key)]
	return v, ok
}

// Load reads configuration from environment variables with the CLAIMFLOW_
// prefix and, when CLAIMFLOW_CONFIG_FILE is set, from that YAML file.
// CLAIMFLOW_PROPERTIES_FILE names a .properties file with the static
// appproperties values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLAIMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := os.Getenv("CLAIMFLOW_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "claimflow")
	v.SetDefault("db.password", "claimflow_secret")
	v.SetDefault("db.name", "claimflow_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "workflow-engine")
	v.SetDefault("jwt.audience", "claimflow")

	// Storage defaults
	v.SetDefault("storage.provider", "s3")
	v.SetDefault("storage.root_folder", "claims")
	v.SetDefault("storage.key_scheme", "numbered")
	v.SetDefault("storage.max_file_size_mb", 50)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "claimflow-documents")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.bucket", "claimflow-documents")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.azure.container", "claimflow-documents")

	// Agent defaults
	v.SetDefault("agent.timeout_secs", 120)
	v.SetDefault("agent.success_code", 200)
	v.SetDefault("agent.max_idle_conns", 16)

	// Pipeline defaults
	v.SetDefault("pipeline.fetch_concurrency", 4)

	// Cache defaults
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.size", 256)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Follow-up defaults
	v.SetDefault("followup.enabled", false)
	v.SetDefault("followup.delay", "24h")
	v.SetDefault("followup.flag_variable", "documentsReceived")
	v.SetDefault("followup.recipient", "")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "ap-south-1")
	v.SetDefault("email.from_address", "noreply@claimflow.local")
	v.SetDefault("email.from_name", "Claims Desk")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "claimflow")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                     "CLAIMFLOW_SERVER_PORT",
		"server.read_timeout":             "CLAIMFLOW_SERVER_READ_TIMEOUT",
		"server.write_timeout":            "CLAIMFLOW_SERVER_WRITE_TIMEOUT",
		"server.environment":              "CLAIMFLOW_SERVER_ENVIRONMENT",
		"db.host":                         "CLAIMFLOW_DB_HOST",
		"db.port":                         "CLAIMFLOW_DB_PORT",
		"db.user":                         "CLAIMFLOW_DB_USER",
		"db.password":                     "CLAIMFLOW_DB_PASSWORD",
		"db.name":                         "CLAIMFLOW_DB_NAME",
		"db.sslmode":                      "CLAIMFLOW_DB_SSLMODE",
		"db.max_open":                     "CLAIMFLOW_DB_MAX_OPEN",
		"db.max_idle":                     "CLAIMFLOW_DB_MAX_IDLE",
		"jwt.secret":                      "CLAIMFLOW_JWT_SECRET",
		"jwt.issuer":                      "CLAIMFLOW_JWT_ISSUER",
		"jwt.audience":                    "CLAIMFLOW_JWT_AUDIENCE",
		"storage.provider":                "CLAIMFLOW_STORAGE_PROVIDER",
		"storage.root_folder":             "CLAIMFLOW_STORAGE_ROOT_FOLDER",
		"storage.key_scheme":              "CLAIMFLOW_STORAGE_KEY_SCHEME",
		"storage.max_file_size_mb":        "CLAIMFLOW_STORAGE_MAX_FILE_SIZE_MB",
		"storage.s3.region":               "CLAIMFLOW_S3_REGION",
		"storage.s3.bucket":               "CLAIMFLOW_S3_BUCKET",
		"storage.s3.endpoint":             "CLAIMFLOW_S3_ENDPOINT",
		"storage.s3.access_key":           "CLAIMFLOW_S3_ACCESS_KEY",
		"storage.s3.secret_key":           "CLAIMFLOW_S3_SECRET_KEY",
		"storage.minio.endpoint":          "CLAIMFLOW_MINIO_ENDPOINT",
		"storage.minio.bucket":            "CLAIMFLOW_MINIO_BUCKET",
		"storage.minio.access_key":        "CLAIMFLOW_MINIO_ACCESS_KEY",
		"storage.minio.secret_key":        "CLAIMFLOW_MINIO_SECRET_KEY",
		"storage.minio.use_ssl":           "CLAIMFLOW_MINIO_USE_SSL",
		"storage.azure.connection_string": "CLAIMFLOW_AZURE_CONNECTION_STRING",
		"storage.azure.container":         "CLAIMFLOW_AZURE_CONTAINER",
		"agent.timeout_secs":              "CLAIMFLOW_AGENT_TIMEOUT_SECS",
		"agent.success_code":              "CLAIMFLOW_AGENT_SUCCESS_CODE",
		"agent.max_idle_conns":            "CLAIMFLOW_AGENT_MAX_IDLE_CONNS",
		"pipeline.fetch_concurrency":      "CLAIMFLOW_PIPELINE_FETCH_CONCURRENCY",
		"cache.ttl":                       "CLAIMFLOW_CACHE_TTL",
		"cache.size":                      "CLAIMFLOW_CACHE_SIZE",
		"log.level":                       "CLAIMFLOW_LOG_LEVEL",
		"log.format":                      "CLAIMFLOW_LOG_FORMAT",
		"cors.allowed_origins":            "CLAIMFLOW_CORS_ALLOWED_ORIGINS",
		"followup.enabled":                "CLAIMFLOW_FOLLOWUP_ENABLED",
		"followup.delay":                  "CLAIMFLOW_FOLLOWUP_DELAY",
		"followup.flag_variable":          "CLAIMFLOW_FOLLOWUP_FLAG_VARIABLE",
		"followup.recipient":              "CLAIMFLOW_FOLLOWUP_RECIPIENT",
		"email.provider":                  "CLAIMFLOW_EMAIL_PROVIDER",
		"email.region":                    "CLAIMFLOW_EMAIL_REGION",
		"email.from_address":              "CLAIMFLOW_EMAIL_FROM_ADDRESS",
		"email.from_name":                 "CLAIMFLOW_EMAIL_FROM_NAME",
		"telemetry.enabled":               "CLAIMFLOW_TELEMETRY_ENABLED",
		"telemetry.service_name":          "CLAIMFLOW_TELEMETRY_SERVICE_NAME",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Container platforms set a PORT env var. Use it if CLAIMFLOW_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CLAIMFLOW_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret:   v.GetString("jwt.secret"),
		Issuer:   v.GetString("jwt.issuer"),
		Audience: v.GetString("jwt.audience"),
	}
	cfg.Storage = StorageConfig{
		Provider:      v.GetString("storage.provider"),
		RootFolder:    v.GetString("storage.root_folder"),
		KeyScheme:     v.GetString("storage.key_scheme"),
		MaxFileSizeMB: v.GetInt64("storage.max_file_size_mb"),
		S3: S3Config{
			Region:    v.GetString("storage.s3.region"),
			Bucket:    v.GetString("storage.s3.bucket"),
			Endpoint:  v.GetString("storage.s3.endpoint"),
			AccessKey: v.GetString("storage.s3.access_key"),
			SecretKey: v.GetString("storage.s3.secret_key"),
		},
		Minio: MinioConfig{
			Endpoint:  v.GetString("storage.minio.endpoint"),
			Bucket:    v.GetString("storage.minio.bucket"),
			AccessKey: v.GetString("storage.minio.access_key"),
			SecretKey: v.GetString("storage.minio.secret_key"),
			UseSSL:    v.GetBool("storage.minio.use_ssl"),
		},
		Azure: AzureConfig{
			ConnectionString: v.GetString("storage.azure.connection_string"),
			Container:        v.GetString("storage.azure.container"),
		},
	}
	cfg.Agent = AgentConfig{
		TimeoutSecs:  v.GetInt("agent.timeout_secs"),
		SuccessCode:  v.GetInt("agent.success_code"),
		MaxIdleConns: v.GetInt("agent.max_idle_conns"),
	}
	cfg.Pipeline = PipelineConfig{
		FetchConcurrency: v.GetInt("pipeline.fetch_concurrency"),
	}
	cfg.Cache = CacheConfig{
		TTL:  v.GetDuration("cache.ttl"),
		Size: v.GetInt("cache.size"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}
	cfg.FollowUp = FollowUpConfig{
		Enabled:      v.GetBool("followup.enabled"),
		Delay:        v.GetDuration("followup.delay"),
		FlagVariable: v.GetString("followup.flag_variable"),
		Recipient:    v.GetString("followup.recipient"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
	}
	cfg.Telemetry = TelemetryConfig{
		Enabled:     v.GetBool("telemetry.enabled"),
		ServiceName: v.GetString("telemetry.service_name"),
	}

	props, err := loadProperties(v, os.Getenv("CLAIMFLOW_PROPERTIES_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Properties = props

	return cfg, nil
}

// loadProperties merges the "properties" section of the main config with an
// optional .properties file. File entries win.
func loadProperties(v *viper.Viper, file string) (Properties, error) {
	props := Properties{}
	if section := v.Sub("properties"); section != nil {
		for _, key := range section.AllKeys() {
			props[key] = section.GetString(key)
		}
	}
	if file == "" {
		return props, nil
	}

	pv := viper.New()
	pv.SetConfigFile(file)
	pv.SetConfigType("properties")
	if err := pv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading properties file %s: %w", file, err)
	}
	for _, key := range pv.AllKeys() {
		props[key] = pv.GetString(key)
	}
	return props, nil
}
