package ton

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Verifier re-downloads a stored object and compares it against the local
// source file.
type Verifier interface {
	Verify(ctx context.Context, location, originalPath string) (bool, error)
}

type verifier struct {
	config     Config
	downloader Downloader
	logger     log.Logger
}

// NewVerifier ...
func NewVerifier(config Config, downloader Downloader, logger log.Logger) Verifier {
	return &verifier{
		config:     config,
		downloader: downloader,
		logger:     logger,
	}
}

// Verify downloads the stored object to the staging path and reports whether
// its MD5 digest matches the original file's. The staging file is overwritten
// and left in place.
func (v *verifier) Verify(ctx context.Context, location, originalPath string) (bool, error) {
	// Staging is overwritten on every run; clearing it first means a stale
	// copy can never survive into the digest comparison.
	if err := os.Remove(v.config.StagingPath); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("clear staging file: %w", err)
	}

	if err := v.downloader.Download(ctx, location, v.config.StagingPath); err != nil {
		return false, err
	}

	downloadedDigest, err := fileDigest(v.config.StagingPath)
	if err != nil {
		return false, err
	}
	originalDigest, err := fileDigest(originalPath)
	if err != nil {
		return false, err
	}

	v.logger.Debugf("Digest of downloaded copy: %s", downloadedDigest)
	v.logger.Debugf("Digest of original file:   %s", originalDigest)

	return downloadedDigest == originalDigest, nil
}

func fileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", &FileError{Path: path, Err: err}
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", &FileError{Path: path, Err: err}
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
