package ton

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"

	"github.com/tonup/tonup/ton/chunker"
	"github.com/tonup/tonup/ton/contenttype"
	"github.com/tonup/tonup/ton/network"
)

// Uploader ...
type Uploader interface {
	Upload(ctx context.Context, filePath, bucket string) (string, error)
}

type uploader struct {
	config Config
	client *network.Client
	logger log.Logger
}

// NewUploader creates an upload engine bound to one signer. The auth variant
// was decided when the signer was constructed; the engine never branches on it.
func NewUploader(config Config, signer network.Signer, logger log.Logger) Uploader {
	return &uploader{
		config: config,
		client: network.NewClient(config.BaseURL(), signer, logger),
		logger: logger,
	}
}

// Upload stores the file in the given bucket and returns the stored object
// location. Files below the single-upload threshold go in one request;
// everything else goes through a resumable session with a server-negotiated
// chunk size.
func (u *uploader) Upload(ctx context.Context, filePath, bucket string) (string, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return "", err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", &FileError{Path: filePath, Err: err}
	}
	size := info.Size()
	contentType := contenttype.Detect(filePath)

	u.logger.Infof("Uploading %s (%s, %s) to bucket %s",
		filePath, units.HumanSizeWithPrecision(float64(size), 3), contentType, bucket)
	startTime := time.Now()

	var location string
	if size < u.config.SingleUploadThreshold {
		location, err = u.uploadSingle(ctx, filePath, bucket, contentType, size)
	} else {
		location, err = u.uploadResumable(ctx, filePath, bucket, contentType, size)
	}
	if err != nil {
		return "", err
	}

	u.logger.Donef("Uploaded in %s, location: %s", time.Since(startTime).Round(time.Second), location)
	return location, nil
}

func (u *uploader) uploadSingle(ctx context.Context, filePath, bucket, contentType string, size int64) (string, error) {
	u.logger.Debugf("File is below the %s threshold, uploading in a single request",
		units.HumanSize(float64(u.config.SingleUploadThreshold)))

	body, err := os.ReadFile(filePath)
	if err != nil {
		return "", &FileError{Path: filePath, Err: err}
	}
	if int64(len(body)) != size {
		return "", &FileError{Path: filePath, Err: chunker.ErrFileShrunk}
	}

	expires := time.Now().Add(u.config.ExpiryWindow)
	return u.client.UploadSingle(ctx, bucket, contentType, body, expires)
}

func (u *uploader) uploadResumable(ctx context.Context, filePath, bucket, contentType string, size int64) (string, error) {
	u.logger.Debugf("Initiating resumable upload session")

	session, err := u.client.InitiateResumable(ctx, bucket, contentType, size)
	if err != nil {
		return "", err
	}
	if session.ChunkSize > u.config.MaxSingleRequestBytes {
		return "", fmt.Errorf("server requested a %s chunk size, above the %s single-request ceiling",
			units.HumanSize(float64(session.ChunkSize)), units.HumanSize(float64(u.config.MaxSingleRequestBytes)))
	}

	u.logger.Debugf("Session URL: %s, chunk size: %s", session.URL, units.HumanSize(float64(session.ChunkSize)))

	reader, err := chunker.New(filePath, session.ChunkSize, size)
	if err != nil {
		return "", &FileError{Path: filePath, Err: err}
	}
	defer func() {
		if err := reader.Close(); err != nil {
			u.logger.Errorf("failed to close file: %s", err)
		}
	}()

	// Chunks are sent strictly in order, one at a time: the continuation
	// protocol is stateful and a chunk is only sent after the previous
	// response was observed.
	for {
		chunk, err := reader.Next()
		if err == io.EOF {
			return "", fmt.Errorf("server did not finalize the upload after the last chunk")
		}
		if err != nil {
			return "", &FileError{Path: filePath, Err: err}
		}

		last := chunk.TotalRead == size
		u.logger.Debugf("Uploading chunk %d (%s at offset %d, %s of %s sent)",
			chunk.Index, units.HumanSize(float64(len(chunk.Data))), chunk.Offset,
			units.HumanSizeWithPrecision(float64(chunk.TotalRead), 3), units.HumanSizeWithPrecision(float64(size), 3))

		location, finished, err := u.client.UploadChunk(ctx, session, contentType, chunk.Data, chunk.Offset, size)
		if err != nil {
			return "", err
		}

		if finished {
			if !last {
				return "", fmt.Errorf("server finalized the upload after chunk %d, before the final chunk", chunk.Index)
			}
			if location == "" {
				return "", errors.New("final chunk response carried no location")
			}
			return location, nil
		}
		if last {
			return "", fmt.Errorf("server expects more data after the final chunk (offset %d)", chunk.Offset)
		}
	}
}
