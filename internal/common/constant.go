package common

// AuthorizationHeaderName carries the "Bearer <token>" access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// MaxFileSize is the largest note file accepted for upload (10 MiB).
const MaxFileSize int64 = 10 * 1024 * 1024
