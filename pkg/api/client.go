// Package api implements the authenticated HTTP client for the GlassCloset
// backend: multipart image analysis, closet item fetch and delete, and the
// login/signup calls that establish the bearer token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mishal9/glasscloset/pkg/auth"
	"github.com/mishal9/glasscloset/pkg/closet"
	"github.com/mishal9/glasscloset/pkg/netmon"
)

// DefaultTimeout bounds each request and its full response body. Timeouts
// are enforced by the transport, not a separate timer.
const DefaultTimeout = 60 * time.Second

// Endpoint paths on the backend.
const (
	endpointLogin        = "/login"
	endpointSignup       = "/signup"
	endpointAnalyzeImage = "/analyze-image"
	endpointItems        = "/clothing-items"
)

// Client talks to the GlassCloset backend. All authenticated calls check
// the token and connectivity before any bytes hit the wire.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenSource
	monitor    netmon.Monitor
	log        *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMonitor installs a connectivity monitor. Without one, requests go
// straight to the transport.
func WithMonitor(m netmon.Monitor) Option {
	return func(c *Client) { c.monitor = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) { c.log = log.WithField("component", "api") }
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, tokens auth.TokenSource, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}

	c := &Client{
		baseURL:    parsed.Scheme + "://" + parsed.Host,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		log:        logrus.StandardLogger().WithField("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// preflight enforces the auth and connectivity preconditions shared by all
// authenticated operations. It never sends an unauthenticated request.
func (c *Client) preflight() (string, error) {
	token, ok := c.tokens.Token()
	if !ok {
		return "", ErrAuthenticationRequired
	}
	if c.monitor != nil && !c.monitor.Connected() {
		return "", ErrNoNetworkConnection
	}
	return token, nil
}

// analyzeEnvelope is the 200 body of /analyze-image. The attributes object
// is decoded with the resilient per-field decoder; envelope-level id and
// image URL are carried into the returned attributes.
type analyzeEnvelope struct {
	Analysis       string                    `json:"analysis"`
	Attributes     closet.ClothingAttributes `json:"attributes"`
	ClothingItemID string                    `json:"clothing_item_id"`
	ImageURL       string                    `json:"image_url"`
}

// AnalyzeImage uploads a JPEG for analysis and returns the decoded
// attribute record.
func (c *Client) AnalyzeImage(ctx context.Context, jpegData []byte) (closet.ClothingAttributes, error) {
	var zero closet.ClothingAttributes

	token, err := c.preflight()
	if err != nil {
		return zero, err
	}
	if len(jpegData) == 0 {
		return zero, fmt.Errorf("%w: empty image payload", ErrNoData)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	// Boundary token is unique per request.
	if err := writer.SetBoundary("Boundary-" + uuid.NewString()); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if _, err := part.Write(jpegData); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if err := writer.Close(); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpointAnalyzeImage, &body)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	data, err := c.do(req)
	if err != nil {
		return zero, err
	}

	var envelope analyzeEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.log.WithError(err).Warn("analysis envelope did not decode")
		return zero, ErrDecodingFailed
	}

	attrs := envelope.Attributes
	attrs.ID = envelope.ClothingItemID
	attrs.ImageURL = envelope.ImageURL

	c.log.WithFields(logrus.Fields{
		"item_id": attrs.ID,
		"empty":   attrs.IsEmpty(),
	}).Debug("image analyzed")
	return attrs, nil
}

// FetchItems retrieves the caller's closet collection.
func (c *Client) FetchItems(ctx context.Context) ([]closet.ClothingItem, error) {
	token, err := c.preflight()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpointItems, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		ClothingItems []closet.ClothingItem `json:"clothing_items"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, ErrDecodingFailed
	}
	return envelope.ClothingItems, nil
}

// DeleteItem removes an item by id and reports whether the server deleted it.
func (c *Client) DeleteItem(ctx context.Context, id string) (bool, error) {
	token, err := c.preflight()
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+endpointItems+"/"+url.PathEscape(id), nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	data, err := c.do(req)
	if err != nil {
		return false, err
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, ErrDecodingFailed
	}
	return resp.Success, nil
}

// Login exchanges credentials for a bearer token. The token is returned to
// the caller, which owns storing it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
	}
	if err := c.credentialCall(ctx, endpointLogin, email, password, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Signup registers a new account and returns the created user id.
func (c *Client) Signup(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Message string `json:"message"`
		UserID  string `json:"user_id"`
	}
	if err := c.credentialCall(ctx, endpointSignup, email, password, &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

// credentialCall posts email/password as query parameters, the shape the
// backend expects for both login and signup. A non-200 body is a {detail}
// object surfaced as OperationFailed.
func (c *Client) credentialCall(ctx context.Context, endpoint, email, password string, out any) error {
	if c.monitor != nil && !c.monitor.Connected() {
		return ErrNoNetworkConnection
	}

	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	q.Set("email", email)
	q.Set("password", password)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &detail) == nil && detail.Detail != "" {
			return &OperationFailed{Message: detail.Detail}
		}
		return &ServerError{StatusCode: resp.StatusCode}
	}

	if len(data) == 0 {
		return ErrNoData
	}
	if err := json.Unmarshal(data, out); err != nil {
		return ErrDecodingFailed
	}
	return nil
}

// do executes an authenticated request and applies the shared error
// mapping: transport failure, status range check, empty body check.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("url", req.URL.Path).Warn("request failed")
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.WithFields(logrus.Fields{
			"url":    req.URL.Path,
			"status": resp.StatusCode,
		}).Warn("server returned error status")
		return nil, &ServerError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}
	return data, nil
}
