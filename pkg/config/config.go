// Package config provides common options of the station commands.
// Values come from built-in defaults, DCCEX_* environment variables,
// an optional TOML file and command line flags, the latter overriding
// the former.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/dccex.go/pkg/dccex"
	fx "github.com/robotalks/dccex.go/pkg/framework"
	"github.com/robotalks/dccex.go/pkg/link"
)

// Serial configures the serial port.
type Serial struct {
	Port     string   `toml:"port"`
	Baud     int      `toml:"baud"`
	RetryMax Duration `toml:"retry_max"`
}

// Channel configures the queues.
type Channel struct {
	Capacity int      `toml:"capacity"`
	Tick     Duration `toml:"tick"`
}

// MQTT configures the MQTT bridge. Empty URL disables it.
type MQTT struct {
	URL      string `toml:"url"`
	ClientID string `toml:"client_id"`
}

// WebSocket configures the websocket server. Empty Listen disables it.
type WebSocket struct {
	Listen string `toml:"listen"`
}

// Config is the complete configuration.
type Config struct {
	Serial    Serial    `toml:"serial"`
	Channel   Channel   `toml:"channel"`
	MQTT      MQTT      `toml:"mqtt"`
	WebSocket WebSocket `toml:"websocket"`
}

// Duration is time.Duration in TOML as a string like "10ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var (
	defaultConfig = Config{
		Serial: Serial{
			Port:     "/dev/ttyUSB0",
			Baud:     link.DefaultBaudRate,
			RetryMax: Duration{link.DefaultMaxRetryInterval},
		},
		Channel: Channel{
			Capacity: dccex.DefaultCapacity,
			Tick:     Duration{fx.DefaultInterval},
		},
		MQTT: MQTT{
			URL: "mqtt://localhost:1883/dccex/",
		},
		WebSocket: WebSocket{
			Listen: ":8090",
		},
	}

	configFile string
	flagSet    *flag.FlagSet
)

func init() {
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(conf *Config, getenv func(string) string) {
	if val := getenv("DCCEX_SERIAL_PORT"); val != "" {
		conf.Serial.Port = val
	}
	if val := getenv("DCCEX_SERIAL_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			conf.Serial.Baud = baud
		}
	}
	if val, ok := lookup(getenv, "DCCEX_MQTT_URL"); ok {
		conf.MQTT.URL = val
	}
	if val, ok := lookup(getenv, "DCCEX_WS_LISTEN"); ok {
		conf.WebSocket.Listen = val
	}
}

// lookup treats "-" as an explicitly empty value.
func lookup(getenv func(string) string, key string) (string, bool) {
	val := getenv(key)
	switch val {
	case "":
		return "", false
	case "-":
		return "", true
	}
	return val, true
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine)
}

// SetupFlagSet sets up flags on fs. NewConfig consults fs for flags
// set explicitly.
func SetupFlagSet(fs *flag.FlagSet) {
	flagSet = fs
	fs.StringVar(&configFile, "config", configFile, "TOML configuration file.")
	fs.StringVar(&defaultConfig.Serial.Port, "serial-port", defaultConfig.Serial.Port, "Serial port device.")
	fs.IntVar(&defaultConfig.Serial.Baud, "serial-baud", defaultConfig.Serial.Baud, "Serial baud rate.")
	fs.IntVar(&defaultConfig.Channel.Capacity, "capacity", defaultConfig.Channel.Capacity, "Capacity of each queue.")
	fs.DurationVar(&defaultConfig.Channel.Tick.Duration, "tick", defaultConfig.Channel.Tick.Duration, "Service tick interval.")
	fs.StringVar(&defaultConfig.MQTT.URL, "mqtt", defaultConfig.MQTT.URL, "MQTT broker URL, empty to disable.")
	fs.StringVar(&defaultConfig.WebSocket.Listen, "ws", defaultConfig.WebSocket.Listen, "Websocket listen address, empty to disable.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config from the defaults, the file given by
// -config, and flags set explicitly on the command line.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	if configFile == "" {
		return &conf, nil
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	// explicit flags win over the file
	fs := flagSet
	if fs == nil {
		fs = flag.CommandLine
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "serial-port":
			conf.Serial.Port = defaultConfig.Serial.Port
		case "serial-baud":
			conf.Serial.Baud = defaultConfig.Serial.Baud
		case "capacity":
			conf.Channel.Capacity = defaultConfig.Channel.Capacity
		case "tick":
			conf.Channel.Tick = defaultConfig.Channel.Tick
		case "mqtt":
			conf.MQTT.URL = defaultConfig.MQTT.URL
		case "ws":
			conf.WebSocket.Listen = defaultConfig.WebSocket.Listen
		}
	})
	return &conf, nil
}

// MustNewConfig creates a Config and fails on error.
func MustNewConfig() *Config {
	conf, err := NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// LoadFile merges the TOML file into c. Keys absent from the file
// keep their values.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
	}
	return nil
}

// Validate checks values that would make the stations misbehave.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial port must be specified")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Serial.Baud)
	}
	if c.Channel.Capacity < 1 {
		return fmt.Errorf("invalid queue capacity %d", c.Channel.Capacity)
	}
	if c.Channel.Tick.Duration <= 0 {
		return fmt.Errorf("invalid tick interval %v", c.Channel.Tick.Duration)
	}
	return nil
}

// Dialer creates the serial port dialer.
func (c *Config) Dialer() *link.Dialer {
	d := link.NewDialer(c.Serial.Port, c.Serial.Baud)
	if c.Serial.RetryMax.Duration > 0 {
		d.MaxRetryInterval = c.Serial.RetryMax.Duration
	}
	return d
}

// MQTTClientID returns the configured client id or one derived from
// the machine id.
func (c *Config) MQTTClientID() string {
	if c.MQTT.ClientID != "" {
		return c.MQTT.ClientID
	}
	return "dccex:" + MachineID()
}

// MachineID retrieves the unique ID identifying the machine, or the
// host name if it's unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID("dccex")
	if err == nil {
		return id[:16]
	}
	if host, herr := os.Hostname(); herr == nil {
		return host
	}
	return "unknown"
}
