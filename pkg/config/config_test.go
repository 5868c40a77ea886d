package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "dccex.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	conf := defaultConfig
	require.NoError(t, conf.LoadFile(writeFile(t, `
[serial]
port = "/dev/ttyACM1"
retry_max = "2s"

[channel]
tick = "5ms"

[mqtt]
url = ""
client_id = "nw-1"
`)))
	require.Equal(t, "/dev/ttyACM1", conf.Serial.Port)
	require.Equal(t, defaultConfig.Serial.Baud, conf.Serial.Baud)
	require.Equal(t, 2*time.Second, conf.Serial.RetryMax.Duration)
	require.Equal(t, 5*time.Millisecond, conf.Channel.Tick.Duration)
	require.Equal(t, 50, conf.Channel.Capacity)
	require.Empty(t, conf.MQTT.URL)
	require.Equal(t, "nw-1", conf.MQTTClientID())
	require.Equal(t, ":8090", conf.WebSocket.Listen)
	require.NoError(t, conf.Validate())

	d := conf.Dialer()
	require.Equal(t, "/dev/ttyACM1", d.Port)
	require.Equal(t, 2*time.Second, d.MaxRetryInterval)
}

func TestLoadFileErrors(t *testing.T) {
	conf := defaultConfig
	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))
	require.Error(t, conf.LoadFile(writeFile(t, "[serial]\nspeed = 9600\n")))
	require.Error(t, conf.LoadFile(writeFile(t, "[channel]\ntick = \"soon\"\n")))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DCCEX_SERIAL_PORT": "/dev/ttyS3",
		"DCCEX_SERIAL_BAUD": "57600",
		"DCCEX_MQTT_URL":    "mqtt://broker/layout/",
		"DCCEX_WS_LISTEN":   "-",
	}
	conf := defaultConfig
	applyEnv(&conf, func(key string) string { return env[key] })
	require.Equal(t, "/dev/ttyS3", conf.Serial.Port)
	require.Equal(t, 57600, conf.Serial.Baud)
	require.Equal(t, "mqtt://broker/layout/", conf.MQTT.URL)
	require.Empty(t, conf.WebSocket.Listen)

	env["DCCEX_SERIAL_BAUD"] = "fast"
	applyEnv(&conf, func(key string) string { return env[key] })
	require.Equal(t, 57600, conf.Serial.Baud)
}

func TestValidate(t *testing.T) {
	tests := []func(*Config){
		func(c *Config) { c.Serial.Port = "" },
		func(c *Config) { c.Serial.Baud = 0 },
		func(c *Config) { c.Channel.Capacity = 0 },
		func(c *Config) { c.Channel.Tick.Duration = 0 },
	}
	for i, mutate := range tests {
		conf := defaultConfig
		mutate(&conf)
		require.Error(t, conf.Validate(), "case %d", i)
	}
}

func TestMachineID(t *testing.T) {
	require.NotEmpty(t, MachineID())
	conf := defaultConfig
	conf.MQTT.ClientID = ""
	require.Contains(t, conf.MQTTClientID(), "dccex:")
}

func TestNewConfigFlagSet(t *testing.T) {
	savedConfig, savedFile, savedSet := defaultConfig, configFile, flagSet
	defer func() {
		defaultConfig, configFile, flagSet = savedConfig, savedFile, savedSet
	}()

	path := writeFile(t, `
[serial]
port = "/dev/ttyACM1"
baud = 57600

[websocket]
listen = ":9000"
`)
	fs := flag.NewFlagSet("nwstation", flag.ContinueOnError)
	SetupFlagSet(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-serial-port", "/dev/ttyS9", "-ws", ""}))

	conf, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyS9", conf.Serial.Port)
	require.Equal(t, 57600, conf.Serial.Baud)
	require.Empty(t, conf.WebSocket.Listen)
}
