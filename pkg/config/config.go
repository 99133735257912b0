// Package config handles jsintrinsics.toml realm configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/tliron/commonlog"
	"golang.org/x/text/language"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "jsintrinsics.toml"

// MinEcmaVersion is the oldest edition a realm can be pinned to.
const MinEcmaVersion = 2015

// KnownFeatures lists the staged features a realm can enable.
var KnownFeatures = mapset.NewThreadUnsafeSet("async-context", "cleanup-some")

// Config represents a jsintrinsics.toml file.
type Config struct {
	Realm Realm `toml:"realm"`
	Log   Log   `toml:"log"`

	// Path is the file the configuration was read from (empty for defaults).
	Path string `toml:"-"`
}

// Realm configures which builtins a bootstrapped realm exposes.
type Realm struct {
	EcmaVersion int      `toml:"ecma-version"`
	Features    []string `toml:"features"`
	Locale      string   `toml:"locale"`
}

// Log configures commonlog output.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// ErrUnknownFeature is returned for a feature name outside KnownFeatures.
var ErrUnknownFeature = errors.New("unknown feature")

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes TOML configuration data and validates it.
func Parse(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindAndLoad walks up from startDir looking for FileName and loads the
// first one found. It returns the defaults when there is none.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", startDir, err)
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.Realm.EcmaVersion == 0 {
		c.Realm.EcmaVersion = vm.LatestEcmaVersion
	}
	if c.Realm.Locale == "" {
		c.Realm.Locale = "en-US"
	}
}

// Validate checks the edition range, feature names and locale tag.
func (c *Config) Validate() error {
	if v := c.Realm.EcmaVersion; v < MinEcmaVersion || v > vm.LatestEcmaVersion {
		return fmt.Errorf("ecma-version %d outside %d..%d", v, MinEcmaVersion, vm.LatestEcmaVersion)
	}
	for _, f := range c.Realm.Features {
		if !KnownFeatures.Contains(f) {
			return fmt.Errorf("%w %q", ErrUnknownFeature, f)
		}
	}
	if _, err := language.Parse(c.Realm.Locale); err != nil {
		return fmt.Errorf("locale %q: %w", c.Realm.Locale, err)
	}
	return nil
}

// RealmOptions converts the realm section into options for vm.NewVM.
func (c *Config) RealmOptions() vm.RealmOptions {
	return vm.RealmOptions{
		EcmaVersion: c.Realm.EcmaVersion,
		Features:    mapset.NewThreadUnsafeSet(c.Realm.Features...),
		Locale:      c.Realm.Locale,
	}
}

// ConfigureLogging applies the log section to commonlog. A non-negative
// override replaces the configured verbosity.
func (c *Config) ConfigureLogging(override int) {
	verbosity := c.Log.Verbosity
	if override >= 0 {
		verbosity = override
	}
	var path *string
	if c.Log.File != "" {
		path = &c.Log.File
	}
	commonlog.Configure(verbosity, path)
}
