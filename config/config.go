package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kglogistics/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type SMTPConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

type RabbitMQConfig struct {
	URL      string `json:"-"`
	Exchange string `json:"exchange"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`
	LogLevel    string `json:"log_level"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	AuthJWTSecret      string   `json:"-"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins"`

	Redis    RedisConfig    `json:"redis"`
	SMTP     SMTPConfig     `json:"smtp"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`

	NotificationEmail     string        `json:"notification_email"`
	SentryDSN             string        `json:"-"`
	VINDecoderBaseURL     string        `json:"vin_decoder_base_url"`
	RateLimitPublicIntake int           `json:"rate_limit_public_intake"`
	DraftTTL              time.Duration `json:"draft_ttl"`
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "kglogistics")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "KG Logistics")
	v.SetDefault("RABBITMQ_EXCHANGE", "kglogistics.events")
	v.SetDefault("VIN_DECODER_BASE_URL", "https://vpic.nhtsa.dot.gov/api")
	v.SetDefault("RATE_LIMIT_PUBLIC_INTAKE", 10)
	v.SetDefault("DRAFT_TTL", "168h")
}

// LoadConfig populates AppConfig from the environment, after loading an
// optional .env file.
func LoadConfig() error {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg, err := fromViper(v)
	if err != nil {
		return err
	}
	AppConfig = cfg

	logConfig()
	return nil
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Environment:    v.GetString("ENVIRONMENT"),
		ServerPort:     v.GetString("SERVER_PORT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetString("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		DBSSLMode:      v.GetString("DB_SSL_MODE"),
		DBMaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),

		AuthJWTSecret:      v.GetString("AUTH_JWT_SECRET"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),

		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Address:  v.GetString("REDIS_ADDRESS"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		SMTP: SMTPConfig{
			Host:      v.GetString("SMTP_HOST"),
			Port:      v.GetInt("SMTP_PORT"),
			Username:  v.GetString("SMTP_USERNAME"),
			Password:  v.GetString("SMTP_PASSWORD"),
			FromEmail: v.GetString("SMTP_FROM_EMAIL"),
			FromName:  v.GetString("SMTP_FROM_NAME"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
		},

		NotificationEmail:     v.GetString("NOTIFICATION_EMAIL"),
		SentryDSN:             v.GetString("SENTRY_DSN"),
		VINDecoderBaseURL:     v.GetString("VIN_DECODER_BASE_URL"),
		RateLimitPublicIntake: v.GetInt("RATE_LIMIT_PUBLIC_INTAKE"),
		DraftTTL:              v.GetDuration("DRAFT_TTL"),
	}

	// Validate required configurations
	if cfg.DBPassword == "" {
		return cfg, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.AuthJWTSecret == "" {
		return cfg, fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if cfg.DraftTTL <= 0 {
		return cfg, fmt.Errorf("DRAFT_TTL must be a positive duration")
	}
	if cfg.RateLimitPublicIntake <= 0 {
		cfg.RateLimitPublicIntake = 10
	}
	return cfg, nil
}

func ConnectDB() error {
	log := logrus.WithField("component", "config")
	log.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.WithField("dsn", maskPassword(dsn)).Info("Using connection string")

	gormLogLevel := logger.Warn
	if AppConfig.IsProduction() {
		gormLogLevel = logger.Error
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("Successfully connected to the database")
	return nil
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	log := logrus.WithField("component", "config")
	log.Info("Starting database migration...")
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("Database migration completed")
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"component":     "config",
		"environment":   AppConfig.Environment,
		"server_port":   AppConfig.ServerPort,
		"database":      fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis_enabled": AppConfig.Redis.Enabled,
		"smtp":          AppConfig.SMTP.Host != "",
		"rabbitmq":      AppConfig.RabbitMQ.URL != "",
		"sentry":        AppConfig.SentryDSN != "",
	}).Info("Loaded configuration")
}
