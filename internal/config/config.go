package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env:"APP_ENV" env-default:"local"`
	PublicURL  string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	Tokens     `yaml:"tokens"`
	JWT        `yaml:"jwt"`
	Gateway    `yaml:"gateway"`
	Donations  `yaml:"donations"`
	RabbitMQ   `yaml:"rabbitmq"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env-default:"postgres"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"password" env-required:"true"`
	DBName   string `yaml:"dbname" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type Redis struct {
	Addr     string `yaml:"addr" env-default:"localhost:6379"`
	Password string `yaml:"password" env-default:""`
	DB       int    `yaml:"db" env-default:"0"`
}

type Tokens struct {
	AccessTokenTTL       time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL      time.Duration `yaml:"refresh_token_ttl" env-default:"168h"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl" env-default:"1h"`
}

type JWT struct {
	Secret   string `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	Issuer   string `yaml:"issuer" env-default:"creatorfund"`
	Audience string `yaml:"audience" env-default:"creatorfund-web"`
}

// Gateway configures the external payment provider.
type Gateway struct {
	BaseURL   string        `yaml:"base_url" env-required:"true"`
	SecretKey string        `yaml:"secret_key" env:"GATEWAY_SECRET_KEY" env-required:"true"`
	ReturnURL string        `yaml:"return_url" env-required:"true"`
	Timeout   time.Duration `yaml:"timeout" env-default:"15s"`
}

type Donations struct {
	// MaxAmount is the single-donation ceiling in whole currency units.
	MaxAmount int64 `yaml:"max_amount" env-default:"100000"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env-required:"true"`
	QueueName string `yaml:"queue_name" env-default:"email_messages"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}
