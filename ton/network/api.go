// Package network implements the TON wire protocol: authenticated single-shot
// uploads, resumable session initiation and per-chunk PUTs.
package network

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	headerExpires        = "X-TON-Expires"
	headerDeclaredType   = "X-TON-Content-Type"
	headerDeclaredLength = "X-TON-Content-Length"
	headerMinChunkSize   = "x-ton-min-chunk-size"
	headerLocation       = "location"

	// statusResumeIncomplete is the server's continuation signal: the chunk
	// was accepted and more are expected.
	statusResumeIncomplete = 308
)

// UploadSession is the state negotiated by the resumable initiation call and
// consumed by every subsequent chunk PUT.
type UploadSession struct {
	URL       string
	ChunkSize int64
}

// TransportError is any HTTP outcome outside the explicitly handled success
// and continuation codes, or a connection-level failure. Status is zero when
// no response was received.
type TransportError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client issues TON API calls through a Signer.
type Client struct {
	signer  Signer
	baseURL string
	logger  log.Logger
}

// NewClient creates a client for the API at baseURL (scheme and host, no
// trailing slash).
func NewClient(baseURL string, signer Signer, logger log.Logger) *Client {
	return &Client{
		signer:  signer,
		baseURL: baseURL,
		logger:  logger,
	}
}

// BucketURL returns the upload endpoint for a bucket.
func (c *Client) BucketURL(bucket string) string {
	return fmt.Sprintf("%s/1.1/ton/bucket/%s", c.baseURL, bucket)
}

// UploadSingle uploads the whole body in one request and returns the stored
// object location.
func (c *Client) UploadSingle(ctx context.Context, bucket, contentType string, body []byte, expires time.Time) (string, error) {
	url := c.BucketURL(bucket)
	header := map[string]string{
		"Content-Type": contentType,
		headerExpires:  expires.UTC().Format(http.TimeFormat),
	}

	resp, err := c.signer.Send(ctx, http.MethodPost, url, header, body)
	if err != nil {
		return "", err
	}
	if !isSuccess(resp.Status) {
		return "", responseError("single-shot upload", resp)
	}

	location := resp.Header[headerLocation]
	if location == "" {
		return "", responseError("single-shot upload: no location in response", resp)
	}
	return location, nil
}

// InitiateResumable starts a multi-part session. The request declares the
// intended total content type and length but carries no body; the server
// answers with the session URL and the chunk size the client must honor.
func (c *Client) InitiateResumable(ctx context.Context, bucket, contentType string, size int64) (*UploadSession, error) {
	url := c.BucketURL(bucket) + "?resumable=true"
	header := map[string]string{
		"Content-Type":       contentType,
		headerDeclaredType:   contentType,
		headerDeclaredLength: strconv.FormatInt(size, 10),
	}

	resp, err := c.signer.Send(ctx, http.MethodPost, url, header, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.Status) {
		return nil, responseError("initiate resumable upload", resp)
	}

	location := resp.Header[headerLocation]
	if location == "" {
		return nil, responseError("initiate resumable upload: no session URL in response", resp)
	}

	chunkSize, err := strconv.ParseInt(resp.Header[headerMinChunkSize], 10, 64)
	if err != nil || chunkSize <= 0 {
		return nil, responseError(fmt.Sprintf("initiate resumable upload: invalid %s %q", headerMinChunkSize, resp.Header[headerMinChunkSize]), resp)
	}

	return &UploadSession{
		URL:       c.resolveLocation(location),
		ChunkSize: chunkSize,
	}, nil
}

// UploadChunk PUTs one chunk to the session URL. It reports whether the
// server considers the upload finished: a 308 means "accepted, send more",
// any other success status carries the final stored location.
func (c *Client) UploadChunk(ctx context.Context, session *UploadSession, contentType string, data []byte, offset, totalSize int64) (location string, finished bool, err error) {
	header := map[string]string{
		"Content-Type":  contentType,
		"Content-Range": fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(data))-1, totalSize),
	}

	resp, err := c.signer.Send(ctx, http.MethodPut, session.URL, header, data)
	if err != nil {
		return "", false, err
	}

	if resp.Status == statusResumeIncomplete {
		return "", false, nil
	}
	if !isSuccess(resp.Status) {
		return "", false, responseError(fmt.Sprintf("upload chunk at offset %d", offset), resp)
	}
	return resp.Header[headerLocation], true, nil
}

// resolveLocation turns a server-relative location into an absolute URL.
// Absolute locations pass through untouched.
func (c *Client) resolveLocation(location string) string {
	if strings.HasPrefix(location, "/") {
		return c.baseURL + location
	}
	return location
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func responseError(op string, resp *Response) error {
	return &TransportError{
		Op:     op,
		Status: resp.Status,
		Body:   string(resp.Body),
	}
}
