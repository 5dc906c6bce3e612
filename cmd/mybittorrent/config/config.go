package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mcheviron/bittorrent/cmd/mybittorrent/bencode"
	"github.com/mcheviron/bittorrent/cmd/mybittorrent/peering"
	"go.uber.org/zap"
)

const (
	EnvPrefix = "BITTORRENT_"

	// RandomPeerID asks for a freshly generated peer id instead of a fixed one.
	RandomPeerID = "random"
)

type Config struct {
	PeerID         string        `mapstructure:"peer_id"`
	Port           uint16        `mapstructure:"port"`
	TrackerTimeout time.Duration `mapstructure:"tracker_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	MaxDepth       int           `mapstructure:"max_depth"`
}

func Default() Config {
	return Config{
		PeerID:         peering.DefaultPeerID,
		Port:           6881,
		TrackerTimeout: 15 * time.Second,
		DialTimeout:    3 * time.Second,
		MaxDepth:       bencode.DefaultMaxDepth,
	}
}

// Load overlays BITTORRENT_* variables from environ (KEY=value form) on
// top of Default. Unrecognised variables are logged and ignored.
func Load(environ []string) (Config, error) {
	cfg := Default()

	overrides := make(map[string]any)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		overrides[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))] = value
	}

	var metadata mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		Metadata:         &metadata,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(overrides); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, key := range metadata.Unused {
		zap.L().Warn("Ignoring unknown configuration variable", zap.String("variable", EnvPrefix+strings.ToUpper(key)))
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.PeerID != RandomPeerID && len(c.PeerID) != 20 {
		errs = append(errs, fmt.Errorf("peer_id must be 20 bytes or %q, got %d bytes", RandomPeerID, len(c.PeerID)))
	}
	if c.Port == 0 {
		errs = append(errs, errors.New("port must be non-zero"))
	}
	if c.TrackerTimeout <= 0 {
		errs = append(errs, errors.New("tracker_timeout must be positive"))
	}
	if c.DialTimeout <= 0 {
		errs = append(errs, errors.New("dial_timeout must be positive"))
	}
	if c.MaxDepth <= 0 {
		errs = append(errs, errors.New("max_depth must be positive"))
	}
	return errors.Join(errs...)
}
