package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev" validate:"oneof=dev prod"`

	HttpServerPort uint16   `env:"HTTP_SERVER_PORT" envDefault:"8080" validate:"min=1000,max=65535"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"  envSeparator:","`

	OutboundFormat string `env:"OUTBOUND_FORMAT"     envDefault:"envelope" validate:"oneof=envelope plain"`
	MaxMessageSize int64  `env:"WS_MAX_MESSAGE_SIZE" envDefault:"4096"     validate:"min=128"`
	SendBufferSize int    `env:"WS_SEND_BUFFER"      envDefault:"256"      validate:"min=1"`

	RedisPresenceEnabled bool   `env:"REDIS_PRESENCE_ENABLED" envDefault:"false"`
	RedisHost            string `env:"REDIS_HOST"     envDefault:"localhost"`
	RedisPort            uint16 `env:"REDIS_PORT"     envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisDB              int    `env:"REDIS_DB"       envDefault:"0"    validate:"min=0"`

	SessionLogEnabled bool   `env:"SESSION_LOG_ENABLED" envDefault:"false"`
	PostgresHost      string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort      string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser      string `env:"POSTGRES_USER"     envDefault:"chat_user"`
	PostgresPassword  string `env:"POSTGRES_PASSWORD" envDefault:"chat_password"`
	PostgresDb        string `env:"POSTGRES_DB"       envDefault:"chat_db"`
	PostgresSSLMode   string `env:"POSTGRES_SSLMODE"  envDefault:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

