package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort    int
	PublicBaseURL string
	CORSOrigin    string
	Env           string
	Database      DatabaseConfig
	Auth          AuthConfig
	Admin         AdminConfig
	Storage       StorageConfig
	Events        EventsConfig
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	UseSSL      bool
	AutoMigrate bool
}

type AuthConfig struct {
	JWTSecret       string
	SessionTTLHours int
}

// AdminConfig seeds an admin account on startup when both fields are
// set and no user with that email exists yet.
type AdminConfig struct {
	Email    string
	Password string
}

type StorageConfig struct {
	Cloudinary CloudinaryConfig
	GCS        GCSConfig
	S3         S3Config
	Local      LocalStorageConfig
}

type CloudinaryConfig struct {
	URL    string
	Folder string
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type LocalStorageConfig struct {
	Dir string
}

type EventsConfig struct {
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        getEnvInt("DB_PORT", 5432),
		User:        getEnv("DB_USER", "tastebook"),
		Password:    getEnv("DB_PASSWORD", "password"),
		DBName:      getEnv("DB_NAME", "tastebook_db"),
		UseSSL:      getEnvBool("DB_SSL", false),
		AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
	}

	authConfig := AuthConfig{
		JWTSecret:       getEnv("JWT_SECRET", ""),
		SessionTTLHours: getEnvInt("SESSION_TTL_HOURS", 168),
	}

	adminConfig := AdminConfig{
		Email:    getEnv("ADMIN_EMAIL", ""),
		Password: getEnv("ADMIN_PASSWORD", ""),
	}

	storageConfig := StorageConfig{
		Cloudinary: CloudinaryConfig{
			URL:    getEnv("CLOUDINARY_URL", ""),
			Folder: getEnv("CLOUDINARY_FOLDER", "tastebook"),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			UseSSL:    getEnvBool("S3_USE_SSL", true),
			PublicURL: getEnv("S3_PUBLIC_URL", ""),
		},
		Local: LocalStorageConfig{
			Dir: getEnv("UPLOADS_DIR", "uploads"),
		},
	}

	eventsConfig := EventsConfig{
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	return Config{
		ServerPort:    getEnvInt("SERVER_PORT", 8080),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		CORSOrigin:    getEnv("CORS_ORIGIN", "*"),
		Env:           getEnv("ENV", "dev"),
		Database:      dbConfig,
		Auth:          authConfig,
		Admin:         adminConfig,
		Storage:       storageConfig,
		Events:        eventsConfig,
	}
}

// IsProduction reports whether the server runs with production settings
// (secure cookies, no .env loading).
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}
