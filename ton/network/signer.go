package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/dghubble/oauth1"
	"github.com/hashicorp/go-retryablehttp"
)

// Response is the canonical response shape the rest of the engine operates
// on. Header keys are lower-cased by the signer so the engine never has to
// care which transport produced them.
type Response struct {
	Status int
	Header map[string]string
	Body   []byte
}

// Signer sends one authenticated HTTP request. The auth variant is decided
// once, at construction; call sites never branch on it. Signers do not retry:
// retry policy belongs to the caller, and this client deliberately has none.
type Signer interface {
	Send(ctx context.Context, method, url string, header map[string]string, body []byte) (*Response, error)
}

// NewUserAuthSigner returns a Signer that signs every request per OAuth 1.0a
// (HMAC signature, nonce, timestamp) and performs the call itself, so the
// underlying TLS transport stays under our control.
func NewUserAuthSigner(consumerKey, consumerSecret, token, tokenSecret string, logger log.Logger) Signer {
	base := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: 10 * time.Second,
			IdleConnTimeout:     30 * time.Second,
		},
	}
	config := oauth1.NewConfig(consumerKey, consumerSecret)
	signingCtx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	client := config.Client(signingCtx, oauth1.NewToken(token, tokenSecret))
	client.CheckRedirect = neverFollowRedirects

	return &userAuthSigner{client: client, logger: logger}
}

type userAuthSigner struct {
	client *http.Client
	logger log.Logger
}

func (s *userAuthSigner) Send(ctx context.Context, method, url string, header map[string]string, body []byte) (*Response, error) {
	return send(ctx, s.client, method, url, header, body, s.logger)
}

// NewAppAuthSigner returns a Signer that attaches a static bearer token and
// delegates transport to the shared HTTP client.
func NewAppAuthSigner(bearerToken string, logger log.Logger) Signer {
	return &appAuthSigner{
		client: NewHTTPClient(logger),
		token:  bearerToken,
		logger: logger,
	}
}

type appAuthSigner struct {
	client *http.Client
	token  string
	logger log.Logger
}

func (s *appAuthSigner) Send(ctx context.Context, method, url string, header map[string]string, body []byte) (*Response, error) {
	merged := make(map[string]string, len(header)+1)
	for k, v := range header {
		merged[k] = v
	}
	merged["Authorization"] = fmt.Sprintf("Bearer %s", s.token)

	return send(ctx, s.client, method, url, merged, body, s.logger)
}

// neverRetry backs RetryMax 0: the resumable protocol is stateful and
// ordered, so a transparent replay of a chunk request is never safe.
var neverRetry retryablehttp.CheckRetry = func(_ context.Context, _ *http.Response, err error) (bool, error) {
	return false, err
}

// neverFollowRedirects keeps 308 "Resume Incomplete" responses observable:
// the status reuses a redirect code and must reach the engine untouched.
func neverFollowRedirects(_ *http.Request, _ []*http.Request) error {
	return http.ErrUseLastResponse
}

// NewHTTPClient builds the shared HTTP client: a retryable client with
// retries switched off.
func NewHTTPClient(logger log.Logger) *http.Client {
	client := retryhttp.NewClient(logger)
	client.RetryMax = 0
	client.CheckRetry = neverRetry

	standard := client.StandardClient()
	standard.CheckRedirect = neverFollowRedirects
	return standard
}

func send(ctx context.Context, client *http.Client, method, url string, header map[string]string, body []byte, logger log.Logger) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	// Set Content-Length explicitly, zero-length bodies included: the
	// initiation call declares an empty body on purpose.
	req.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	req.ContentLength = int64(len(body))

	dump, err := httputil.DumpRequest(req, false)
	if err != nil {
		logger.Warnf("error while dumping request: %s", err)
	}
	logger.Debugf("Request dump: %s", string(dump))

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("%s %s", method, url), Err: err}
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			logger.Printf(err.Error())
		}
	}(resp.Body)

	dump, err = httputil.DumpResponse(resp, false)
	if err != nil {
		logger.Warnf("error while dumping response: %s", err)
	}
	logger.Debugf("Response dump: %s", string(dump))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("%s %s", method, url), Err: err}
	}

	return &Response{
		Status: resp.StatusCode,
		Header: normalizeHeader(resp.Header),
		Body:   respBody,
	}, nil
}

// normalizeHeader flattens an http.Header into a single-valued map with
// lower-cased keys, the one header shape the engine works with.
func normalizeHeader(header http.Header) map[string]string {
	normalized := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		normalized[strings.ToLower(key)] = values[0]
	}
	return normalized
}
