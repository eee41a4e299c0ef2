package blobstore

import "github.com/engineerhub/engineerhub/internal/server/config"

// OptionsFromConfig maps the server configuration onto store options.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		Bucket:         c.S3Bucket,
		Region:         c.S3Region,
		AccessKey:      c.S3RootUser,
		SecretKey:      c.S3RootPassword,
		BaseEndpoint:   c.S3BaseEndpoint,
		UsePathStyle:   c.S3UsePathStyle,
		RetryAttempts:  c.BlobRetryAttempts,
		RetryBaseDelay: c.BlobRetryBaseDelay,
	}
}
