package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"supportmail/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// GroupingConfig holds the relay-matching patterns used to derive grouping
// keys. The patterns are fixed configuration; strategies compile them once at
// startup and never mutate them.
type GroupingConfig struct {
	// BookingRelayPattern must contain one capture group for the numeric
	// conversation id embedded in the relay local part.
	BookingRelayPattern string `json:"booking_relay_pattern"`
	BookingRelayDomain  string `json:"booking_relay_domain"`

	// ReplyRelayPattern matches the Reply-To address of relays that rotate
	// the local part on every message.
	ReplyRelayPattern string `json:"reply_relay_pattern"`
	ReplyRelayDomain  string `json:"reply_relay_domain"`
}

type Config struct {
	Environment    string `json:"environment"`
	ServerPort     string `json:"server_port"`
	EncryptionKey  string `json:"-"`
	SentryDSN      string `json:"-"`
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	Redis    RedisConfig    `json:"redis"`
	Grouping GroupingConfig `json:"grouping"`

	// NotificationSenderPattern matches the system's own outbound
	// notification addresses so replies to them never open spam threads.
	NotificationSenderPattern string `json:"notification_sender_pattern"`

	// IMAPPollInterval is how often the intake worker sweeps channels.
	IMAPPollInterval time.Duration `json:"imap_poll_interval"`

	// SeedChannelEmail, when set, creates a default account/inbox/channel
	// for that address on startup. Development convenience only.
	SeedChannelEmail string `json:"seed_channel_email"`

	RateLimitIntake int `json:"rate_limit_intake"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "supportmail"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		Grouping: GroupingConfig{
			BookingRelayPattern: getEnv("BOOKING_RELAY_PATTERN", `(\d+)-[^@]+@mchat\.booking\.com`),
			BookingRelayDomain:  getEnv("BOOKING_RELAY_DOMAIN", "mchat.booking.com"),
			ReplyRelayPattern:   getEnv("REPLY_RELAY_PATTERN", `@reply\.airbnb\.com$`),
			ReplyRelayDomain:    getEnv("REPLY_RELAY_DOMAIN", "reply.airbnb.com"),
		},

		NotificationSenderPattern: getEnv("NOTIFICATION_SENDER_PATTERN", `(?i)^notifications@`),

		IMAPPollInterval: time.Duration(getEnvAsInt("IMAP_POLL_INTERVAL_MINUTES", 5)) * time.Minute,
		SeedChannelEmail: getEnv("SEED_CHANNEL_EMAIL", ""),
		RateLimitIntake:  getEnvAsInt("RATE_LIMIT_INTAKE", 120),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
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

	log.Println("✅ Successfully connected to the database")
	log.Println("🔄 Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("✅ Database migration completed")
	return nil
}

// MigrateDB creates the schema plus the expression index backing grouping-key
// lookups. The index is intentionally not unique: the matcher/creator pair is
// check-then-act and duplicate keys remain possible under concurrent delivery.
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Inbox{},
		&models.Channel{},
		&models.Contact{},
		&models.ContactInbox{},
		&models.Conversation{},
		&models.Message{},
		&models.Attachment{},
	); err != nil {
		return err
	}

	// Expression indexes are postgres-only; sqlite (tests) scans.
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(
			`CREATE INDEX IF NOT EXISTS index_conversations_on_grouping_key
			 ON conversations ((additional_attributes->>'grouping_key'))`,
		).Error; err != nil {
			return fmt.Errorf("failed to create grouping key index: %w", err)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
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
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Redis enabled: %t", AppConfig.Redis.Enabled)
	log.Printf("IMAP poll interval: %s", AppConfig.IMAPPollInterval)
}
