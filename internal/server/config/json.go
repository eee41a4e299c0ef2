package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/engineerhub/engineerhub/internal/flagx"
	"github.com/engineerhub/engineerhub/internal/timex"
)

// JsonConfig is the on-disk JSON shape of Config. Pointer and zero-valued
// fields that are absent from the file leave the current value untouched.
// Durations use timex.Duration, so both "15m" and integer nanoseconds work.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	S3UsePathStyle              *bool          `json:"s3_use_path_style"`
	DownloadURLValidityDuration timex.Duration `json:"download_url_validity_duration"`
	UploadURLValidityDuration   timex.Duration `json:"upload_url_validity_duration"`
	BlobRetryAttempts           *int           `json:"blob_retry_attempts"`
	BlobRetryBaseDelay          timex.Duration `json:"blob_retry_base_delay"`
	OrphanPrefix                *string        `json:"orphan_prefix"`
	AutoMigrate                 *bool          `json:"auto_migrate"`
	LogLevel                    string         `json:"log_level"`
	LogFormat                   string         `json:"log_format"`
	CORSAllowedOrigins          []string       `json:"cors_allowed_origins"`
}

// parseJson loads the file named by -c / -config, if any, into config.
// A missing or malformed file is a startup error and panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	setDuration(&config.DownloadURLValidityDuration, c.DownloadURLValidityDuration)
	setDuration(&config.UploadURLValidityDuration, c.UploadURLValidityDuration)
	if c.BlobRetryAttempts != nil {
		config.BlobRetryAttempts = *c.BlobRetryAttempts
	}
	setDuration(&config.BlobRetryBaseDelay, c.BlobRetryBaseDelay)
	if c.OrphanPrefix != nil {
		config.OrphanPrefix = *c.OrphanPrefix
	}
	if c.AutoMigrate != nil {
		config.AutoMigrate = *c.AutoMigrate
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
