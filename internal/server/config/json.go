package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dvoronkov/lockbox/internal/flagx"
	"github.com/dvoronkov/lockbox/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "5m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP        string         `json:"endpoint_addr_http"`
	DatabaseDSN             string         `json:"database_dsn"`
	SecretKey               string         `json:"secret_key"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	ChallengeTTL            timex.Duration `json:"challenge_ttl"`
	RPID                    string         `json:"rp_id"`
	RPName                  string         `json:"rp_name"`
	RPOrigins               []string       `json:"rp_origins"`
	RateLimitRPS            float64        `json:"rate_limit_rps"`
	RateLimitBurst          int            `json:"rate_limit_burst"`
	S3RootUser              string         `json:"s3_root_user"`
	S3RootPassword          string         `json:"s3_root_password"`
	S3Bucket                string         `json:"s3_bucket"`
	S3Region                string         `json:"s3_region"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path is taken from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. The DTO is seeded with the
// current config values, so keys missing from the file keep their defaults.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{
		EndpointAddrHTTP:        config.EndpointAddrHTTP,
		DatabaseDSN:             config.DatabaseDSN,
		SecretKey:               config.SecretKey,
		SessionValidityDuration: timex.Duration{Duration: config.SessionValidityDuration},
		ChallengeTTL:            timex.Duration{Duration: config.ChallengeTTL},
		RPID:                    config.RPID,
		RPName:                  config.RPName,
		RPOrigins:               config.RPOrigins,
		RateLimitRPS:            config.RateLimitRPS,
		RateLimitBurst:          config.RateLimitBurst,
		S3RootUser:              config.S3RootUser,
		S3RootPassword:          config.S3RootPassword,
		S3Bucket:                config.S3Bucket,
		S3Region:                config.S3Region,
		S3BaseEndpoint:          config.S3BaseEndpoint,
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SessionValidityDuration = time.Duration(c.SessionValidityDuration.Duration)
	config.ChallengeTTL = time.Duration(c.ChallengeTTL.Duration)
	config.RPID = c.RPID
	config.RPName = c.RPName
	config.RPOrigins = c.RPOrigins
	config.RateLimitRPS = c.RateLimitRPS
	config.RateLimitBurst = c.RateLimitBurst
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
