// Package brisk is a client for the Brisk Water cloud endpoint used by the
// vendor's mobile app. It queries device state and forwards valve commands.
// The client keeps no state between calls beyond the device identity and
// imposes no timeout of its own; callers bound each call with ctx.
package brisk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the vendor host the mobile app talks to
	DefaultBaseURL = "http://interface.briskworld.com"

	// UserAgent mimics the iOS app build the endpoint was observed with
	UserAgent = "BriskWater/1.8.6 (iPhone; iOS 17.5.1; Scale/3.00)"

	getStatePath = "/devSta/getState/app"

	// Unverified: the valve endpoint and its valve_state field were never
	// confirmed against the real vendor API.
	setValvePath = "/devSta/setValve/app"
)

// DeviceClient is the interface consumers poll and command through
type DeviceClient interface {
	FetchState(ctx context.Context) (Snapshot, error)
	SetValve(ctx context.Context, on bool) error
	Identity() Identity
}

// Client implements DeviceClient over HTTP
type Client struct {
	identity   Identity
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at a different host (tests, proxies)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new client bound to a single device
func NewClient(identity Identity, opts ...Option) *Client {
	c := &Client{
		identity:   identity,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Identity returns the device identity this client was built for
func (c *Client) Identity() Identity {
	return c.identity
}

// FetchState queries the current device state. The returned snapshot is
// only valid for the instant it was fetched.
func (c *Client) FetchState(ctx context.Context) (Snapshot, error) {
	env, err := c.post(ctx, getStatePath, c.identityForm())
	if err != nil {
		return nil, err
	}

	if !env.OK() {
		return nil, &APIError{Code: string(env.ResCode), Message: env.ResMsg}
	}

	snapshot := Snapshot{}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, &snapshot); err != nil {
			return nil, fmt.Errorf("%w: data is not an object: %w", ErrDecode, err)
		}
	}

	c.logger.Debug("Fetched device state",
		zap.String("device", c.identity.DeviceID),
		zap.Int("fields", len(snapshot)))

	return snapshot, nil
}

// SetValve asks the vendor to open (on=true) or close the valve. It has no
// side effects beyond the request; callers update any cached valve state
// only after it returns nil.
func (c *Client) SetValve(ctx context.Context, on bool) error {
	form := c.identityForm()
	state := "0"
	if on {
		state = "1"
	}
	form.Set("valve_state", state)

	env, err := c.post(ctx, setValvePath, form)
	if err != nil {
		return err
	}

	if !env.OK() {
		return &RejectedError{Code: string(env.ResCode), Message: env.ResMsg}
	}

	c.logger.Debug("Valve command accepted",
		zap.String("device", c.identity.DeviceID),
		zap.Bool("on", on))

	return nil
}

func (c *Client) identityForm() url.Values {
	form := url.Values{}
	form.Set("device", c.identity.DeviceID)
	form.Set("deviceModel", c.identity.DeviceModel)
	return form
}

// post sends one form-encoded request and decodes the envelope
func (c *Client) post(ctx context.Context, path string, form url.Values) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", ErrTransport, err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &env, nil
}

// setHeaders applies the fixed header set the mobile app sends. Host is
// taken from the request URL, which is the vendor host by default.
func setHeaders(req *http.Request) {
	req.Header.Set("Accept-Language", "en-US;q=1")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", UserAgent)
}
