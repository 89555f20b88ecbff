package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SceneType distinguishes Domoticz scenes, which can only be activated, from
// groups, which can also be switched off.
type SceneType string

const (
	SceneTypeScene SceneType = "scene"
	SceneTypeGroup SceneType = "group"
)

type BackendConfig struct {
	URL          string        `yaml:"url"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryBackoff time.Duration `yaml:"retry_backoff" split_words:"true"`
}

type BridgeConfig struct {
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	StateFile string `yaml:"state_file" split_words:"true"`
	Interface string `yaml:"interface"` // Multicast interface; empty means all
}

type SSDPConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Listen         string        `yaml:"listen"`
	Group          string        `yaml:"group"`
	NotifyInterval time.Duration `yaml:"notify_interval" split_words:"true"`
}

type MDNSConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id" split_words:"true"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type DeviceConfig struct {
	Name         string     `yaml:"name"`
	Idx          string     `yaml:"idx"`
	Type         Capability `yaml:"type"`
	MaxLevel     int        `yaml:"max_level,omitempty"`
	LevelFormula string     `yaml:"level_formula,omitempty"` // Hue bri (x) to backend level
	BriFormula   string     `yaml:"bri_formula,omitempty"`   // Backend level (x) to Hue bri
}

type SceneConfig struct {
	Name        string    `yaml:"name"`
	Idx         string    `yaml:"idx"`
	Type        SceneType `yaml:"type,omitempty"`
	Description string    `yaml:"description,omitempty"`
}

// Config is the immutable snapshot the emulator runs with.
type Config struct {
	Backend BackendConfig `yaml:"domoticz" envconfig:"DOMOTICZ"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	SSDP    SSDPConfig    `yaml:"ssdp"`
	MDNS    MDNSConfig    `yaml:"mdns"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Poll    PollConfig    `yaml:"poll"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	Devices []DeviceConfig `yaml:"devices" ignored:"true"`
	Scenes  []SceneConfig  `yaml:"scenes" ignored:"true"`
}

// DefaultConfig returns the values used for everything the file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:          "http://localhost:8080",
			Timeout:      5 * time.Second,
			RetryBackoff: 250 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			Port:      80,
			StateFile: "bridge-state.json",
		},
		SSDP: SSDPConfig{
			Enabled:        true,
			Listen:         ":1900",
			Group:          "239.255.255.250",
			NotifyInterval: 60 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			Topic:    "domoticz/out",
			ClientID: "hue-emulator",
		},
		Poll:    PollConfig{Interval: 30 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Backend.URL == "" {
		errs = append(errs, "domoticz.url is required")
	} else if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("domoticz.url %q is not an absolute URL", c.Backend.URL))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, "domoticz.timeout must be positive")
	}
	if c.Backend.RetryBackoff < 0 {
		errs = append(errs, "domoticz.retry_backoff must not be negative")
	}
	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		errs = append(errs, "bridge.port must be between 1 and 65535")
	}
	if c.Poll.Interval < 0 {
		errs = append(errs, "poll.interval must not be negative")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	}

	names := make(map[string]string)
	checkName := func(field, name string) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			errs = append(errs, field+".name is required")
			return
		}
		if prev, ok := names[key]; ok {
			errs = append(errs, fmt.Sprintf("%s.name %q duplicates %s", field, name, prev))
			return
		}
		names[key] = field
	}

	for i, d := range c.Devices {
		field := "devices[" + strconv.Itoa(i) + "]"
		checkName(field, d.Name)
		if d.Idx == "" {
			errs = append(errs, field+".idx is required")
		}
		if d.Type != "" && !d.Type.Valid() {
			errs = append(errs, fmt.Sprintf("%s.type %q is not one of switch, dimmer, rgb", field, d.Type))
		}
		if d.MaxLevel < 0 {
			errs = append(errs, field+".max_level must not be negative")
		}
	}
	for i, s := range c.Scenes {
		field := "scenes[" + strconv.Itoa(i) + "]"
		checkName(field, s.Name)
		if s.Idx == "" {
			errs = append(errs, field+".idx is required")
		}
		if s.Type != "" && s.Type != SceneTypeScene && s.Type != SceneTypeGroup {
			errs = append(errs, fmt.Sprintf("%s.type %q is not one of scene, group", field, s.Type))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Lights assigns light ids in configuration order, devices first, starting at "1".
func (c *Config) Lights() []Light {
	lights := make([]Light, 0, len(c.Devices)+len(c.Scenes))
	next := 1
	for _, d := range c.Devices {
		capability := d.Type
		if capability == "" {
			capability = CapabilitySwitch
		}
		maxLevel := d.MaxLevel
		if maxLevel == 0 {
			maxLevel = MaxLevel
		}
		lights = append(lights, Light{
			ID:         strconv.Itoa(next),
			Name:       d.Name,
			BackendID:  d.Idx,
			Kind:       LightKindDevice,
			Capability: capability,
			Level: LevelConfig{
				MaxLevel:         maxLevel,
				ToBackendFormula: d.LevelFormula,
				ToHueFormula:     d.BriFormula,
			},
		})
		next++
	}
	for _, s := range c.Scenes {
		lights = append(lights, Light{
			ID:          strconv.Itoa(next),
			Name:        s.Name,
			BackendID:   s.Idx,
			Kind:        LightKindScene,
			Capability:  CapabilitySwitch,
			SupportsOff: s.Type == SceneTypeGroup,
			Description: s.Description,
		})
		next++
	}
	return lights
}
