package ton

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/melbahja/got"

	"github.com/tonup/tonup/ton/network"
)

// Downloader fetches stored objects. The TON download endpoint accepts
// bearer auth only, so a Downloader always carries an app-auth token.
type Downloader interface {
	Download(ctx context.Context, location, destPath string) error
}

type downloader struct {
	config Config
	token  string
	logger log.Logger
}

// NewDownloader ...
func NewDownloader(config Config, bearerToken string, logger log.Logger) Downloader {
	return &downloader{
		config: config,
		token:  bearerToken,
		logger: logger,
	}
}

// Download fetches the object at the stored location into destPath.
func (d *downloader) Download(ctx context.Context, location, destPath string) error {
	url := location
	if strings.HasPrefix(location, "/") {
		url = d.config.BaseURL() + location
	}

	d.logger.Infof("Downloading %s to %s", url, destPath)
	startTime := time.Now()

	g := got.New()
	g.Client = network.NewHTTPClient(d.logger)

	download := got.NewDownload(ctx, url, destPath)
	download.Header = append(download.Header, got.GotHeader{
		Key:   "Authorization",
		Value: fmt.Sprintf("Bearer %s", d.token),
	})

	if err := g.Do(download); err != nil {
		return &network.TransportError{Op: fmt.Sprintf("GET %s", url), Err: err}
	}

	d.logger.Donef("Downloaded in %s", time.Since(startTime).Round(time.Second))
	return nil
}
