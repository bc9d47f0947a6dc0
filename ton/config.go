// Package ton drives uploads, downloads and upload verification against the
// TON blob-storage API.
package ton

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultDomain is the TON API host.
const DefaultDomain = "ton.twitter.com"

// Config carries the protocol constants. They are configuration rather than
// package globals so tests can shrink the threshold and window sizes.
type Config struct {
	// Domain is the TON API host, without scheme.
	Domain string

	// SingleUploadThreshold routes uploads: files strictly smaller than this
	// go in one request, everything else through a resumable session.
	SingleUploadThreshold int64

	// MaxSingleRequestBytes is the server's hard ceiling for any single
	// request body. A negotiated chunk size above it is rejected.
	MaxSingleRequestBytes int64

	// ExpiryWindow is the retention hint sent with single-shot uploads.
	ExpiryWindow time.Duration

	// StagingPath is where verify mode writes the downloaded copy. It is
	// overwritten on every run and intentionally not cleaned up.
	StagingPath string
}

// DefaultConfig returns the production protocol constants.
func DefaultConfig() Config {
	return Config{
		Domain:                DefaultDomain,
		SingleUploadThreshold: 8 * 1024 * 1024,
		MaxSingleRequestBytes: 64 * 1024 * 1024,
		ExpiryWindow:          10 * 24 * time.Hour,
		StagingPath:           filepath.Join(os.TempDir(), "tonup-verify-staging"),
	}
}

// BaseURL returns the API origin. Domain normally carries just a host; a
// value with an explicit scheme is used as-is.
func (c Config) BaseURL() string {
	if strings.Contains(c.Domain, "://") {
		return c.Domain
	}
	return "https://" + c.Domain
}

var bucketNamePattern = regexp.MustCompile(`^[a-z_0-9]+$`)

// ValidateBucketName rejects bucket names outside [a-z_0-9]+ before any
// network activity.
func ValidateBucketName(bucket string) error {
	if !bucketNamePattern.MatchString(bucket) {
		return &ConfigError{Reason: "bucket name must match ^[a-z_0-9]+$, got \"" + bucket + "\""}
	}
	return nil
}
