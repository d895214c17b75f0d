package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/slemay/globedash/internal/events"
)

// RegionEndpoint binds one region to its poll endpoint. The access
// credential is not part of the config; it is appended at request time from
// the local store.
type RegionEndpoint struct {
	Region   events.Region `json:"region"`
	Endpoint string        `json:"endpoint"`
}

type Config struct {
	// Environment selects which entry of Environments is polled.
	Environment  string                      `json:"environment"`
	Environments map[string][]RegionEndpoint `json:"environments"`

	DataDir string `json:"dataDir"`

	// MetricsRefreshSeconds is the cadence of the minutely/daily totals
	// refresh, independent of the tick speed.
	MetricsRefreshSeconds int `json:"metricsRefreshSeconds"`

	// RequestTimeoutSeconds bounds each per-region fetch.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`

	// RegionFailureThreshold is how many consecutive failed polls mark a
	// region as down for alerting purposes.
	RegionFailureThreshold int `json:"regionFailureThreshold"`

	Logger  LoggerSettings  `json:"logger"`
	Web     WebSettings     `json:"web"`
	Discord DiscordSettings `json:"discord"`
}

type LoggerSettings struct {
	Save         bool   `json:"save"`
	ConsoleLevel string `json:"consoleLevel"`
	FileLevel    string `json:"fileLevel"`
	AutoClear    bool   `json:"autoClear"`
}

type WebSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DiscordSettings struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"botToken"`
	ChannelID string `json:"channelId"`
}

func DefaultConfig() Config {
	return Config{
		Environment: string(events.EnvPrd),
		Environments: map[string][]RegionEndpoint{
			string(events.EnvDev): {
				{Region: events.RegionUSEast1, Endpoint: "https://gdattsifnijqe42uhkuv4oi5nm0fhbxc.lambda-url.us-east-1.on.aws/"},
				{Region: events.RegionEUWest1, Endpoint: "https://rh56syu7nuc2glmihqjf76ol2a0owecb.lambda-url.eu-west-1.on.aws/"},
			},
			string(events.EnvStg): {
				{Region: events.RegionUSEast2, Endpoint: "https://musf6glaozilpayrn7xlr44j7y0shnct.lambda-url.us-east-2.on.aws/"},
			},
			string(events.EnvPrd): {
				{Region: events.RegionUSEast1, Endpoint: "https://rha5ieunhnmgc3d4xtsow4dj240mggtt.lambda-url.us-east-1.on.aws/"},
				{Region: events.RegionEUWest1, Endpoint: "https://c6xdcpmacp66i4njcrrwatb73i0opcjr.lambda-url.eu-west-1.on.aws/"},
				{Region: events.RegionAPSoutheast2, Endpoint: "https://72fup7tch7frsprfdvbctvaiv40sommb.lambda-url.ap-southeast-2.on.aws/"},
				{Region: events.RegionCACentral1, Endpoint: "https://bmhvpjqu6axz5sybivpkt4j4oy0maebe.lambda-url.ca-central-1.on.aws/"},
			},
		},
		DataDir:                "data",
		MetricsRefreshSeconds:  60,
		RequestTimeoutSeconds:  10,
		RegionFailureThreshold: 3,
		Logger: LoggerSettings{
			Save:         true,
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
			AutoClear:    true,
		},
		Web: WebSettings{
			Host: "0.0.0.0",
			Port: 5000,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func SaveConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ActiveRegions returns the endpoint list for the configured environment.
func (c *Config) ActiveRegions() []RegionEndpoint {
	return c.Environments[string(events.NormalizeEnvironment(c.Environment))]
}

// Validate clamps numeric settings into sane ranges and checks the region
// invariant: every configured region must resolve to a fixed coordinate.
func (c *Config) Validate() error {
	c.Environment = string(events.NormalizeEnvironment(c.Environment))

	if c.MetricsRefreshSeconds < 15 {
		c.MetricsRefreshSeconds = 15
	} else if c.MetricsRefreshSeconds > 600 {
		c.MetricsRefreshSeconds = 600
	}

	if c.RequestTimeoutSeconds < 1 {
		c.RequestTimeoutSeconds = 1
	} else if c.RequestTimeoutSeconds > 60 {
		c.RequestTimeoutSeconds = 60
	}

	if c.RegionFailureThreshold < 1 {
		c.RegionFailureThreshold = 1
	} else if c.RegionFailureThreshold > 20 {
		c.RegionFailureThreshold = 20
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		c.Web.Port = 5000
	}

	for env, regions := range c.Environments {
		if len(regions) == 0 {
			return fmt.Errorf("environment %q has no regions", env)
		}
		for _, re := range regions {
			if !re.Region.Known() {
				return fmt.Errorf("environment %q: region %q has no coordinate mapping", env, re.Region)
			}
			if re.Endpoint == "" {
				return fmt.Errorf("environment %q: region %q has no endpoint", env, re.Region)
			}
		}
	}

	if _, ok := c.Environments[c.Environment]; !ok {
		return fmt.Errorf("environment %q is not configured", c.Environment)
	}

	return nil
}
