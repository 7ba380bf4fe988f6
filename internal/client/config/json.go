package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dvoronkov/lockbox/internal/flagx"
	"github.com/dvoronkov/lockbox/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. timex.Duration
// lets JSON specify the timeout either as a string like "10s" or as integer
// nanoseconds.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	DatabasePath   string         `json:"database_path"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// Keys missing from the file keep their current values.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	jc := JsonConfig{
		ServerURL:      cfg.ServerURL,
		DatabasePath:   cfg.DatabasePath,
		RequestTimeout: timex.Duration{Duration: cfg.RequestTimeout},
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.DatabasePath = jc.DatabasePath
	cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
}
