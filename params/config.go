package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type API struct {
	Addr           string
	AllowedOrigins []string
	SnapshotDepth  int // default depth for orderbook snapshots
}

type Engine struct {
	Markets          []string
	LazyBooks        bool
	SubscriberBuffer int
	TradeHistory     int
}

type Log struct {
	File  string // empty means stdout only
	Debug bool
}

type Config struct {
	API    API
	Engine Engine
	Log    Log
}

func Default() Config {
	return Config{
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			SnapshotDepth:  20,
		},
		Engine: Engine{
			Markets:          []string{"BTC-USDT"},
			LazyBooks:        false,
			SubscriberBuffer: 256,
			TradeHistory:     1024,
		},
		Log: Log{
			File: "data/matchbook.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}
	if depth := os.Getenv("SNAPSHOT_DEPTH"); depth != "" {
		if n, err := strconv.Atoi(depth); err == nil && n > 0 {
			cfg.API.SnapshotDepth = n
		}
	}

	// Markets as a comma-separated list, e.g. "BTC-USDT,ETH-USDT"
	if markets := os.Getenv("MARKETS"); markets != "" {
		cfg.Engine.Markets = splitList(markets)
	}
	if lazy := os.Getenv("LAZY_BOOKS"); lazy != "" {
		cfg.Engine.LazyBooks = lazy == "true"
	}
	if buffer := os.Getenv("SUBSCRIBER_BUFFER"); buffer != "" {
		if n, err := strconv.Atoi(buffer); err == nil && n > 0 {
			cfg.Engine.SubscriberBuffer = n
		}
	}
	if history := os.Getenv("TRADE_HISTORY"); history != "" {
		if n, err := strconv.Atoi(history); err == nil && n > 0 {
			cfg.Engine.TradeHistory = n
		}
	}

	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
	if debug := os.Getenv("DEBUG"); debug != "" {
		cfg.Log.Debug = debug == "true"
	}

	return cfg
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
