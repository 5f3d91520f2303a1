package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/netgate/internal/config"
	"github.com/pitabwire/netgate/internal/observability"
	"github.com/pitabwire/netgate/model"
)

// Client is the typed interface to the upstream inventory (DCIM) API.
// Implementations return *Error values classified by Kind.
type Client interface {
	GetSite(ctx context.Context, id int64) (*model.Site, error)
	ListSites(ctx context.Context, params ListParams) (*model.SiteList, error)
	CreateSite(ctx context.Context, site *model.Site) (*model.Site, error)
	UpdateSite(ctx context.Context, id int64, site *model.Site) (*model.Site, error)
	DeleteSite(ctx context.Context, id int64) error

	GetDevice(ctx context.Context, id int64) (*model.Device, error)
	ListDevices(ctx context.Context, params ListParams) (*model.DeviceList, error)
	CreateDevice(ctx context.Context, device *model.Device) (*model.Device, error)
	UpdateDevice(ctx context.Context, id int64, device *model.Device) (*model.Device, error)
	DeleteDevice(ctx context.Context, id int64) error
}

// ListParams are the upstream list filters. Nil fields are omitted from the
// query.
type ListParams struct {
	TenantID *int64
	SiteID   *int64 // devices only
	Limit    *int
	Offset   *int
}

// Encode renders the params as a canonical query string. Both caches key
// list entries by this value.
func (p ListParams) Encode() string {
	v := url.Values{}
	if p.TenantID != nil {
		v.Set("tenant_id", strconv.FormatInt(*p.TenantID, 10))
	}
	if p.SiteID != nil {
		v.Set("site_id", strconv.FormatInt(*p.SiteID, 10))
	}
	if p.Limit != nil {
		v.Set("limit", strconv.Itoa(*p.Limit))
	}
	if p.Offset != nil {
		v.Set("offset", strconv.Itoa(*p.Offset))
	}
	return v.Encode()
}

type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds the HTTP inventory client. The token is mandatory; the
// base URL is normalized so "http://netbox:8000" and "http://netbox:8000/"
// both resolve to "http://netbox:8000/api".
func NewClient(cfg config.InventoryConfig, logger *zap.Logger) (Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, authError("inventory API token is required")
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, configError(fmt.Sprintf("invalid inventory URL %q", cfg.URL), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, configError(fmt.Sprintf("invalid inventory URL %q", cfg.URL), nil)
	}

	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &httpClient{
		baseURL: base + "/api",
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout, Transport: transport},
		logger:  logger,
	}, nil
}

// --- sites ---

func (c *httpClient) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	site, err := call[model.Site](ctx, c, http.MethodGet, fmt.Sprintf("/dcim/sites/%d/", id), nil)
	if err != nil {
		return nil, describeNotFound(err, "Site", id)
	}
	return site, nil
}

func (c *httpClient) ListSites(ctx context.Context, params ListParams) (*model.SiteList, error) {
	path := "/dcim/sites/"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}
	return call[model.SiteList](ctx, c, http.MethodGet, path, nil)
}

func (c *httpClient) CreateSite(ctx context.Context, site *model.Site) (*model.Site, error) {
	return call[model.Site](ctx, c, http.MethodPost, "/dcim/sites/", site)
}

func (c *httpClient) UpdateSite(ctx context.Context, id int64, site *model.Site) (*model.Site, error) {
	out, err := call[model.Site](ctx, c, http.MethodPatch, fmt.Sprintf("/dcim/sites/%d/", id), site)
	if err != nil {
		return nil, describeNotFound(err, "Site", id)
	}
	return out, nil
}

func (c *httpClient) DeleteSite(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/dcim/sites/%d/", id), nil)
	return describeNotFound(err, "Site", id)
}

// --- devices ---

func (c *httpClient) GetDevice(ctx context.Context, id int64) (*model.Device, error) {
	device, err := call[model.Device](ctx, c, http.MethodGet, fmt.Sprintf("/dcim/devices/%d/", id), nil)
	if err != nil {
		return nil, describeNotFound(err, "Device", id)
	}
	return device, nil
}

func (c *httpClient) ListDevices(ctx context.Context, params ListParams) (*model.DeviceList, error) {
	path := "/dcim/devices/"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}
	return call[model.DeviceList](ctx, c, http.MethodGet, path, nil)
}

func (c *httpClient) CreateDevice(ctx context.Context, device *model.Device) (*model.Device, error) {
	return call[model.Device](ctx, c, http.MethodPost, "/dcim/devices/", device)
}

func (c *httpClient) UpdateDevice(ctx context.Context, id int64, device *model.Device) (*model.Device, error) {
	out, err := call[model.Device](ctx, c, http.MethodPatch, fmt.Sprintf("/dcim/devices/%d/", id), device)
	if err != nil {
		return nil, describeNotFound(err, "Device", id)
	}
	return out, nil
}

func (c *httpClient) DeleteDevice(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/dcim/devices/%d/", id), nil)
	return describeNotFound(err, "Device", id)
}

// --- request plumbing ---

// call performs a request and decodes the JSON response into T.
func call[T any](ctx context.Context, c *httpClient, method, path string, body any) (*T, error) {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError(err)
	}
	return &out, nil
}

// do executes a single request and returns the raw response body. Any
// status >= 400 is mapped to a classified error.
func (c *httpClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, configError("marshal request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, configError("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+sanitizeHeader(c.token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
	if err != nil {
		return nil, networkError(err)
	}

	c.logger.Debug("inventory request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return nil, errorFromStatus(resp.StatusCode, errorBody(raw))
	}
	return raw, nil
}

// errorBody trims an upstream error payload down to something safe to embed
// in a message.
func errorBody(raw []byte) string {
	const maxLen = 1024
	s := strings.TrimSpace(string(raw))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

// describeNotFound rewrites a bare 404 into a resource-specific message.
func describeNotFound(err error, resource string, id int64) error {
	var ie *Error
	if errors.As(err, &ie) && ie.Kind == KindNotFound {
		return &Error{
			Kind:       KindNotFound,
			StatusCode: ie.StatusCode,
			Message:    fmt.Sprintf("%s with ID %d not found", resource, id),
		}
	}
	return err
}
