package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"trade_sim/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent identifies the client on the stream handshake
	DefaultUserAgent = "trade-sim/1.0 (+gorilla/websocket)"

	// DefaultStreamURL is the GoMarket L2 orderbook relay.
	DefaultStreamURL = "wss://ws.gomarket-cpp.goquant.io/ws/l2-orderbook"

	defaultQueueCapacity = 64
	defaultSinkBuffer    = 256
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 일부 값을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Stream struct {
		BaseURL          string        `yaml:"base_url"`
		Venue            string        `yaml:"venue"`    // Path segment, e.g. "okx"
		Exchange         string        `yaml:"exchange"` // Expected "exchange" field, e.g. "OKX"
		Symbol           string        `yaml:"symbol"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		PingInterval     time.Duration `yaml:"ping_interval"`
		ReadLimit        int64         `yaml:"read_limit"`
	} `yaml:"stream"`

	Backoff struct {
		Base time.Duration `yaml:"base"`
		Max  time.Duration `yaml:"max"`
	} `yaml:"backoff"`

	Dispatch struct {
		QueueCapacity int `yaml:"queue_capacity"`
	} `yaml:"dispatch"`

	Intent struct {
		QuantityUSD decimal.Decimal  `yaml:"quantity_usd"`
		OrderType   string           `yaml:"order_type"`
		FeeTier     *decimal.Decimal `yaml:"fee_tier"` // nil: use model.fee_rate
	} `yaml:"intent"`

	Market struct {
		DailyVolumeUSD decimal.Decimal `yaml:"daily_volume_usd"`
		Volatility     decimal.Decimal `yaml:"volatility"`
	} `yaml:"market"`

	Model struct {
		FeeRate     decimal.Decimal `yaml:"fee_rate"`
		Gamma       decimal.Decimal `yaml:"gamma"`
		Eta         decimal.Decimal `yaml:"eta"`
		HorizonDays decimal.Decimal `yaml:"horizon_days"`
	} `yaml:"model"`

	Storage struct {
		Path string `yaml:"path"` // Empty: OS config dir
	} `yaml:"storage"`

	Sink struct {
		Buffer         int           `yaml:"buffer"`
		PublishTimeout time.Duration `yaml:"publish_timeout"`
		Record         bool          `yaml:"record"`
		Summary        bool          `yaml:"summary"`
	} `yaml:"sink"`

	Metrics struct {
		Addr string `yaml:"addr"` // Empty disables the listener
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.ConfigError{Field: "path", Err: fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)}
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML, applies defaults and env overrides, then validates.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns the values used for keys absent from the file.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "trade-sim"
	cfg.Stream.BaseURL = DefaultStreamURL
	cfg.Stream.Venue = "okx"
	cfg.Stream.Exchange = "OKX"
	cfg.Stream.Symbol = "BTC-USDT-SWAP"
	cfg.Stream.HandshakeTimeout = 10 * time.Second
	cfg.Stream.ReadTimeout = 60 * time.Second
	cfg.Stream.PingInterval = 20 * time.Second
	cfg.Stream.ReadLimit = 1 << 20
	cfg.Backoff.Base = defaultBaseDelay
	cfg.Backoff.Max = defaultMaxDelay
	cfg.Dispatch.QueueCapacity = defaultQueueCapacity
	cfg.Intent.QuantityUSD = decimal.NewFromInt(100)
	cfg.Intent.OrderType = string(domain.OrderTypeMarket)
	cfg.Market.DailyVolumeUSD = decimal.NewFromInt(1_000_000_000)
	cfg.Market.Volatility = decimal.RequireFromString("0.02")
	cfg.Model.FeeRate = decimal.RequireFromString("0.001")
	cfg.Model.Gamma = decimal.RequireFromString("0.1")
	cfg.Model.Eta = decimal.RequireFromString("0.01")
	cfg.Model.HorizonDays = decimal.NewFromInt(1)
	cfg.Sink.Buffer = defaultSinkBuffer
	cfg.Sink.PublishTimeout = 50 * time.Millisecond
	cfg.Sink.Summary = true
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// Validate checks configuration validity. Every failure is a *domain.ConfigError.
func (c *Config) Validate() error {
	if c.Stream.BaseURL == "" || (!hasPrefix(c.Stream.BaseURL, "ws://") && !hasPrefix(c.Stream.BaseURL, "wss://")) {
		return &domain.ConfigError{Field: "stream.base_url", Err: fmt.Errorf("invalid WS URL: %q", c.Stream.BaseURL)}
	}
	if strings.TrimSpace(c.Stream.Venue) == "" {
		return &domain.ConfigError{Field: "stream.venue", Err: errors.New("venue is required")}
	}
	if strings.TrimSpace(c.Stream.Exchange) == "" {
		return &domain.ConfigError{Field: "stream.exchange", Err: errors.New("exchange is required")}
	}
	if strings.TrimSpace(c.Stream.Symbol) == "" {
		return &domain.ConfigError{Field: "stream.symbol", Err: errors.New("symbol is required")}
	}
	if c.Stream.ReadTimeout <= 0 {
		return &domain.ConfigError{Field: "stream.read_timeout", Err: errors.New("must be positive")}
	}
	if c.Backoff.Base <= 0 || c.Backoff.Max < c.Backoff.Base {
		return &domain.ConfigError{Field: "backoff", Err: fmt.Errorf("need 0 < base <= max, got base=%s max=%s", c.Backoff.Base, c.Backoff.Max)}
	}
	if c.Dispatch.QueueCapacity <= 0 {
		return &domain.ConfigError{Field: "dispatch.queue_capacity", Err: errors.New("must be positive")}
	}
	if c.Sink.Buffer <= 0 {
		return &domain.ConfigError{Field: "sink.buffer", Err: errors.New("must be positive")}
	}
	if err := c.TradeIntent().Validate(); err != nil {
		return err
	}
	return c.ModelParameters().Validate()
}

// Endpoint builds the stream URL: <base_url>/<venue>/<symbol>.
func (c *Config) Endpoint() (string, error) {
	u, err := url.JoinPath(c.Stream.BaseURL, c.Stream.Venue, c.Stream.Symbol)
	if err != nil {
		return "", &domain.ConfigError{Field: "stream.base_url", Err: err}
	}
	return u, nil
}

// TradeIntent returns the configured order. The fee tier falls back to the
// model fee rate when unset.
func (c *Config) TradeIntent() domain.TradeIntent {
	tier := c.Model.FeeRate
	if c.Intent.FeeTier != nil {
		tier = *c.Intent.FeeTier
	}
	return domain.TradeIntent{
		QuantityUSD: c.Intent.QuantityUSD,
		OrderType:   domain.OrderType(strings.ToLower(c.Intent.OrderType)),
		FeeTier:     tier,
	}
}

// ModelParameters returns the file-configured parameters. Fitted slippage and
// maker/taker coefficients are layered on top from the parameter store.
func (c *Config) ModelParameters() domain.ModelParameters {
	return domain.ModelParameters{
		FeeRate: c.Model.FeeRate,
		Impact: domain.ImpactParams{
			Gamma:       c.Model.Gamma,
			Eta:         c.Model.Eta,
			HorizonDays: c.Model.HorizonDays,
		},
		Market: domain.MarketConditions{
			DailyVolumeUSD: c.Market.DailyVolumeUSD,
			Volatility:     c.Market.Volatility,
		},
	}
}

// BackoffPolicy returns the reconnect policy.
func (c *Config) BackoffPolicy() Backoff {
	return Backoff{Base: c.Backoff.Base, Max: c.Backoff.Max}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("TRADESIM_STREAM_URL"); v != "" {
		cfg.Stream.BaseURL = v
	}
	if v := os.Getenv("TRADESIM_SYMBOL"); v != "" {
		cfg.Stream.Symbol = v
	}
	if v := os.Getenv("TRADESIM_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TRADESIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRADESIM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
