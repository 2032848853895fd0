package resock

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// UnlimitedReconnects disables the reconnect ceiling.
	UnlimitedReconnects = -1

	// DefaultReconnectInterval is the fixed delay between attempts.
	DefaultReconnectInterval = 3000 * time.Millisecond

	// EnvPrefix prefixes environment overrides read by LoadConfig.
	EnvPrefix = "RESOCK_"

	defaultSendBuffer = 16
)

// Config controls how a Client connects and reconnects.
type Config struct {
	URL string `koanf:"url"`

	// MaxReconnectAttempts caps automatic reconnects after a drop.
	// Negative means unlimited.
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts"`
	ReconnectInterval    time.Duration `koanf:"reconnect_interval"`
	Debug                bool          `koanf:"debug"`

	Transport        string        `koanf:"transport"` // "coder" or "gorilla"
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	ReadTimeout      time.Duration `koanf:"read_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	ReadLimit        int64         `koanf:"read_limit"`  // bytes, 0 keeps the library default
	SendBuffer       int           `koanf:"send_buffer"` // outgoing frames buffered per socket
}

// DefaultConfig returns sensible defaults.
// Set a timeout to 0 to disable it.
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: UnlimitedReconnects,
		ReconnectInterval:    DefaultReconnectInterval,
		Transport:            TransportCoder,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		SendBuffer:           defaultSendBuffer,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.URL == "" {
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return WrapError(ErrorInvalidConfig, "invalid URL", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return NewError(ErrorInvalidConfig, fmt.Sprintf("unsupported URL scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return NewError(ErrorInvalidConfig, "URL has no host")
	}
	if c.ReconnectInterval < 0 {
		return NewError(ErrorInvalidConfig, "reconnect interval must not be negative")
	}
	if c.HandshakeTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return NewError(ErrorInvalidConfig, "timeouts must not be negative")
	}
	if c.ReadLimit < 0 {
		return NewError(ErrorInvalidConfig, "read limit must not be negative")
	}
	if c.SendBuffer < 0 {
		return NewError(ErrorInvalidConfig, "send buffer must not be negative")
	}
	switch c.Transport {
	case "", TransportCoder, TransportGorilla:
	default:
		return NewError(ErrorInvalidConfig, fmt.Sprintf("unknown transport %q", c.Transport))
	}
	return nil
}

// Unlimited reports whether reconnects are unbounded.
func (c Config) Unlimited() bool {
	return c.MaxReconnectAttempts < 0
}

// canReconnect reports whether another attempt fits under the ceiling.
func (c Config) canReconnect(attempts int) bool {
	return c.Unlimited() || attempts < c.MaxReconnectAttempts
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.Transport == "" {
		c.Transport = TransportCoder
	}
	return c
}

// LoadConfig loads configuration from defaults, an optional TOML file and
// RESOCK_* environment variables, in increasing priority. Durations accept
// Go duration strings ("3s", "500ms"). The result is not validated; Connect
// validates it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return cfg, WrapError(ErrorInvalidConfig, "failed to load config file", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return cfg, WrapError(ErrorInvalidConfig, "failed to load environment variables", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           &cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return cfg, WrapError(ErrorInvalidConfig, "failed to unmarshal config", err)
	}

	return cfg, nil
}
