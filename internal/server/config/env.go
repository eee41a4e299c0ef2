package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/engineerhub/engineerhub/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv loads the dotenv file named by -envfile (default ".env") without
// overriding variables already present in the process environment, then
// copies recognised variables into config.
//
// Every setting has an ENGINEERHUB_* name. The conventional names
// DATABASE_URL, JWT_SECRET, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
// AWS_REGION and S3_BUCKET_NAME are honoured as fallbacks.
func parseEnv(config *Config) {
	if err := godotenv.Load(flagx.EnvFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	envString(&config.EndpointAddrHTTP, "ENGINEERHUB_HTTP_ADDR")
	envString(&config.EndpointAddrGRPC, "ENGINEERHUB_GRPC_ADDR")
	envString(&config.DatabaseDSN, "ENGINEERHUB_DATABASE_DSN", "DATABASE_URL")
	envString(&config.SecretKey, "ENGINEERHUB_SECRET_KEY", "JWT_SECRET")
	envDuration(&config.AccessTokenValidityDuration, "ENGINEERHUB_ACCESS_TOKEN_TTL")
	envString(&config.S3RootUser, "ENGINEERHUB_S3_USER", "AWS_ACCESS_KEY_ID")
	envString(&config.S3RootPassword, "ENGINEERHUB_S3_PASSWORD", "AWS_SECRET_ACCESS_KEY")
	envString(&config.S3Bucket, "ENGINEERHUB_S3_BUCKET", "S3_BUCKET_NAME")
	envString(&config.S3Region, "ENGINEERHUB_S3_REGION", "AWS_REGION")
	envString(&config.S3BaseEndpoint, "ENGINEERHUB_S3_ENDPOINT")
	envBool(&config.S3UsePathStyle, "ENGINEERHUB_S3_PATH_STYLE")
	envDuration(&config.DownloadURLValidityDuration, "ENGINEERHUB_DOWNLOAD_URL_TTL")
	envDuration(&config.UploadURLValidityDuration, "ENGINEERHUB_UPLOAD_URL_TTL")
	envInt(&config.BlobRetryAttempts, "ENGINEERHUB_BLOB_RETRY_ATTEMPTS")
	envDuration(&config.BlobRetryBaseDelay, "ENGINEERHUB_BLOB_RETRY_BASE_DELAY")
	envString(&config.OrphanPrefix, "ENGINEERHUB_ORPHAN_PREFIX")
	envBool(&config.AutoMigrate, "ENGINEERHUB_AUTO_MIGRATE")
	envString(&config.LogLevel, "ENGINEERHUB_LOG_LEVEL")
	envString(&config.LogFormat, "ENGINEERHUB_LOG_FORMAT")
	if v, ok := lookup("ENGINEERHUB_CORS_ORIGINS"); ok {
		config.CORSAllowedOrigins = splitList(v)
	}
}

// lookup returns the first non-empty variable among names.
func lookup(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := os.LookupEnv(n); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func envString(dst *string, names ...string) {
	if v, ok := lookup(names...); ok {
		*dst = v
	}
}

func envBool(dst *bool, names ...string) {
	v, ok := lookup(names...)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}

func envInt(dst *int, names ...string) {
	v, ok := lookup(names...)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envDuration(dst *time.Duration, names ...string) {
	v, ok := lookup(names...)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
