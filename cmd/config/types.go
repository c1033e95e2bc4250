package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ChatWidgetConfig holds everything the widget needs to reach its backend.
type ChatWidgetConfig struct {
	ServerURL      string   `yaml:"server_url" toml:"server_url" json:"server_url" env:"CW_SERVER_URL"`
	EndpointPath   string   `yaml:"endpoint_path" toml:"endpoint_path" json:"endpoint_path" env:"CW_ENDPOINT_PATH"`
	MaxRetries     int      `yaml:"max_retries" toml:"max_retries" json:"max_retries" env:"CW_MAX_RETRIES"`
	BaseDelay      Duration `yaml:"base_delay" toml:"base_delay" json:"base_delay" env:"CW_BASE_DELAY"`
	RequestTimeout Duration `yaml:"request_timeout" toml:"request_timeout" json:"request_timeout" env:"CW_REQUEST_TIMEOUT"`
	ErrorMessage   string   `yaml:"error_message" toml:"error_message" json:"error_message" env:"CW_ERROR_MESSAGE"`
	Placeholder    string   `yaml:"placeholder" toml:"placeholder" json:"placeholder"`
	LogFile        string   `yaml:"log_file" toml:"log_file" json:"log_file" env:"CW_LOG_FILE"`
}

// Duration is a time.Duration that reads and writes as "1s", "250ms" and so on
// in every supported config format and in the environment. A bare integer is
// read as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// UnmarshalYAML accepts the same values as UnmarshalText.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var secs int
	if err := unmarshal(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
