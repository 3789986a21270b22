package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/whatsapp-inbox/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every environment value the gateway consumes. Only this
// struct may be used to read configuration; no direct env access elsewhere.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"whatsapp_inbox"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	AdminAPIToken string `env:"ADMIN_API_TOKEN"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	QueueName              string        `env:"QUEUE_NAME" default:"whatsapp:webhooks"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP" default:"webhook-processors"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME" default:"processor"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES" default:"3"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" default:"30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL" default:"100ms"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE" default:"10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN" default:"100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ" default:"1"`

	// WhatsApp Cloud API surface.
	WhatsAppVerifyToken   string `env:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAppSecret     string `env:"WHATSAPP_APP_SECRET"` // empty disables signature verification
	WhatsAppPhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppBusinessPhone string `env:"WHATSAPP_BUSINESS_PHONE"`
	WhatsAppAccessToken   string `env:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppAPIBaseURL    string `env:"WHATSAPP_API_BASE_URL" default:"https://graph.facebook.com/v18.0"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the global config. Test use only.
func Set(c *Config) {
	config = c
}
