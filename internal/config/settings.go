package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	GeoLite struct {
		BaseURI  string             `koanf:"base_uri"`
		DataDir  string             `koanf:"data_dir"`
		Editions map[string]Edition `koanf:"editions"`
	} `koanf:"geolite"`

	Database struct {
		Driver    string `koanf:"driver"`
		Path      string `koanf:"path"`
		BatchSize int    `koanf:"batch_size"`
	} `koanf:"database"`

	Report struct {
		Output          string `koanf:"output"`
		Workers         int    `koanf:"workers"`
		CacheTTLSeconds int    `koanf:"cache_ttl_seconds"`
	} `koanf:"report"`

	LookupCacheSize int `koanf:"lookup_cache_size"`
}

// Edition describes one downloadable GeoLite CSV archive. BlocksFile is empty
// for editions that are downloaded but not ingested.
type Edition struct {
	Archive       string   `koanf:"archive"`
	DirectoryGlob string   `koanf:"directory_glob"`
	BlocksFile    string   `koanf:"blocks_file"`
	Whitelist     []string `koanf:"whitelist"`
}

const DefaultSettingsPath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex
)

func init() {
	cfg, err := parse(defaultConfig, nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	configValue.Store(cfg)
}

// ReadSettings merges the settings file at path over the embedded defaults.
// A missing file is not an error; the defaults are used as they are.
func ReadSettings(path string) error {
	var override []byte
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			override = data
		case errors.Is(err, os.ErrNotExist):
			log.Warn("Settings file not found, using default configuration", "path", path)
		default:
			return fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg, err := parse(defaultConfig, override)
	if err != nil {
		return err
	}

	SetConfig(cfg)
	log.Debug("Settings loaded", "path", path, "overridden", override != nil)
	return nil
}

func parse(defaults, override []byte) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaults), json.Parser()); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}
	if len(override) > 0 {
		if err := k.Load(rawbytes.Provider(override), json.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load settings: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func SetConfig(newConfig Config) {
	configMu.Lock()
	defer configMu.Unlock()
	configValue.Store(newConfig)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

// Edition looks up a configured edition by name.
func (c Config) Edition(name string) (Edition, bool) {
	edition, ok := c.GeoLite.Editions[name]
	return edition, ok
}

// EditionNames returns the configured edition names in sorted order.
func (c Config) EditionNames() []string {
	return EditionNames(c.GeoLite.Editions)
}

// EditionNames returns the keys of editions in sorted order.
func EditionNames(editions map[string]Edition) []string {
	names := make([]string, 0, len(editions))
	for name := range editions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Config) CacheTTL() time.Duration {
	if c.Report.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Report.CacheTTLSeconds) * time.Second
}
