package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Host configures the native-messaging daemon (cmd/hostd).
type Host struct {
	APIBaseURL     string        `env:"API_BASE_URL"     envDefault:"http://127.0.0.1:8787"`
	DBPath         string        `env:"DB_PATH"          envDefault:"prefs.sqlite"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"0"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"500ms"`
	MaxRetries     int           `env:"MAX_RETRIES"      envDefault:"3"`
	BubbleDwell    time.Duration `env:"BUBBLE_DWELL"     envDefault:"20s"`
}

// Server configures the summarization service (cmd/apid).
type Server struct {
	ListenAddr      string        `env:"LISTEN_ADDR"      envDefault:":8787"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY,required,notEmpty"`
	Model           string        `env:"MODEL"            envDefault:"gpt-4o-mini"`
	ExtensionOrigin string        `env:"EXTENSION_ORIGIN"`
	RateRPS         float64       `env:"RATE_RPS"         envDefault:"1"`
	RateBurst       int           `env:"RATE_BURST"       envDefault:"5"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"60s"`
}

func LoadHost() Host {
	var cfg Host
	env.Must(cfg, env.Parse(&cfg))
	return cfg
}

func LoadServer() Server {
	var cfg Server
	env.Must(cfg, env.Parse(&cfg))
	return cfg
}
