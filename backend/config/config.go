package config

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

var iniOptions = ini.LoadOptions{
	SkipUnrecognizableLines:  true,
	SpaceBeforeInlineComment: true,
	AllowShadows:             true,
}

func init() {
	ini.PrettyFormat = false
}

// Probe holds per-operation timeouts. Each network operation blocks its
// caller for at most its own timeout; there is no global scan deadline.
type Probe struct {
	PingTimeout  time.Duration `ini:"ping_timeout" comment:"liveness probe timeout, default 200ms"`
	TCPTimeout   time.Duration `ini:"tcp_timeout" comment:"bare TCP connect timeout, default 2s"`
	HTTPSTimeout time.Duration `ini:"https_timeout" comment:"encrypted status probe timeout, default 3s"`
	PTRTimeout   time.Duration `ini:"ptr_timeout" comment:"reverse DNS lookup timeout, default 1s"`
	LookupPTR    bool          `ini:"lookup_ptr" comment:"resolve hostnames for sampled hosts"`
}

// Sweep bounds how hard a single range is swept.
type Sweep struct {
	MaxResponders int `ini:"max_responders" comment:"stop sweeping a range after this many live hosts, default 3"`
	Workers       int `ini:"workers" comment:"liveness probe workers per range, 0 = auto"`
	ChunkSize     int `ini:"chunk_size" comment:"addresses probed per ordered batch, 0 = workers"`
}

type Config struct {
	Version string `ini:"version"`
	Probe   Probe  `ini:"probe"`
	Sweep   Sweep  `ini:"sweep"`
}

const Version = "1.0.2"

// DefaultConfig returns the baseline configuration applied when no config
// file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Probe: Probe{
			PingTimeout:  200 * time.Millisecond,
			TCPTimeout:   2 * time.Second,
			HTTPSTimeout: 3 * time.Second,
			PTRTimeout:   time.Second,
			LookupPTR:    false,
		},
		Sweep: Sweep{
			MaxResponders: 3,
			Workers:       0,
			ChunkSize:     0,
		},
	}
}

// Load reads an ini config file on top of the defaults, so a partial file
// only overrides the keys it names.
func Load(path string) (*Config, error) {
	file, err := ini.LoadSources(iniOptions, path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	cfg := DefaultConfig()
	if err := file.MapTo(cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Save writes the configuration back out in ini form.
func Save(path string, cfg *Config) error {
	file := ini.Empty(iniOptions)
	if err := ini.ReflectFrom(file, cfg); err != nil {
		return errors.Wrap(err, "reflect config")
	}
	if err := file.SaveTo(path); err != nil {
		return errors.Wrapf(err, "save config %s", path)
	}
	return nil
}
