// Package ng1 is the REST client for the nG1 API endpoints the onboarding
// engine uses. It holds one session per Client and never retries; the
// caller decides what a failure means.
package ng1

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/johngiles12345/cisco-iot-giles/internal/config"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
)

// SessionCookie carries the nG1 session token.
const SessionCookie = "NSSESSIONID"

var (
	ErrNotFound      = errors.New("ng1: not found")
	ErrAlreadyExists = errors.New("ng1: already exists")
)

// APIError is a non-2xx vendor response. Body is kept verbatim so the
// operator sees what nG1 said.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ng1: %s %s returned %d: %s", e.Method, e.Path, e.Status, strings.TrimSpace(e.Body))
}

// Client talks to one nG1 host.
type Client struct {
	base     *url.URL
	http     *http.Client
	token    string
	username string
	password string
}

// New builds a client from cfg. A token, when configured, is installed as
// the session cookie; otherwise Open authenticates with username/password.
func New(cfg *config.Config) (*Client, error) {
	return NewWithBase(cfg.BaseURL(), cfg)
}

// NewWithBase is New against an explicit base URL (used with the emulator).
func NewWithBase(base string, cfg *config.Config) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing nG1 base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // nG1 appliances use self-signed certs

	c := &Client{
		base:     u,
		http:     &http.Client{Timeout: cfg.RequestTimeout(), Jar: jar, Transport: transport},
		token:    cfg.NG1Token,
		username: cfg.NG1Username,
		password: cfg.NG1Password,
	}
	if c.token != "" {
		jar.SetCookies(u, []*http.Cookie{{Name: SessionCookie, Value: c.token, Path: "/"}})
	}
	return c, nil
}

// ── Session ───────────────────────────────────────────────────────────────────

// Open starts a REST session. The returned cookie is kept in the jar.
func (c *Client) Open(ctx context.Context) error {
	req, err := c.request(ctx, http.MethodPost, "/ng1api/rest-sessions", nil)
	if err != nil {
		return err
	}
	if c.token == "" {
		if c.username == "" {
			return fmt.Errorf("ng1: no token and no username configured")
		}
		req.SetBasicAuth(c.username, c.password)
	}
	if err := c.send(req, nil); err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	log.Printf("[ng1] opened session on %s", c.base.Host)
	return nil
}

// Close ends the REST session.
func (c *Client) Close(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/ng1api/rest-sessions/close", nil, nil); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	log.Printf("[ng1] closed session")
	return nil
}

// ── Topology reads ────────────────────────────────────────────────────────────

func (c *Client) ListDevices(ctx context.Context) ([]models.DeviceConfig, error) {
	var out models.DeviceList
	if err := c.do(ctx, http.MethodGet, "/ng1api/ncm/devices", nil, &out); err != nil {
		return nil, err
	}
	return out.DeviceConfigurations, nil
}

func (c *Client) ListInterfaces(ctx context.Context, device string) ([]models.InterfaceConfig, error) {
	var out models.InterfaceList
	path := "/ng1api/ncm/devices/" + url.PathEscape(device) + "/interfaces"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.InterfaceConfigurations, nil
}

// ListAPNAssociations returns the APN names located on an interface. nG1
// answers {} for an interface without locations.
func (c *Client) ListAPNAssociations(ctx context.Context, device string, iface int) ([]string, error) {
	var out models.LocationList
	path := fmt.Sprintf("/ng1api/ncm/devices/%s/interfaces/%d/locations", url.PathEscape(device), iface)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	var apns []string
	for _, loc := range out.LocationKeyConfigurations {
		if strings.EqualFold(loc.LocationKeyType, models.LocationKindAPN) {
			apns = append(apns, loc.LocationKeyName)
		}
	}
	return apns, nil
}

func (c *Client) ListAPNs(ctx context.Context) ([]models.APN, error) {
	var out models.APNList
	if err := c.do(ctx, http.MethodGet, "/ng1api/ncm/apns", nil, &out); err != nil {
		return nil, err
	}
	return out.APNs, nil
}

// ── Services ──────────────────────────────────────────────────────────────────

// GetService returns the named service or ErrNotFound.
func (c *Client) GetService(ctx context.Context, name string) (*models.ServiceDetail, error) {
	var out models.ServiceEnvelope
	if err := c.do(ctx, http.MethodGet, "/ng1api/ncm/services/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	if len(out.ServiceDetail) == 0 {
		return nil, ErrNotFound
	}
	return &out.ServiceDetail[0], nil
}

// CreateService posts a definition. nG1 does not return the new id.
func (c *Client) CreateService(ctx context.Context, def models.ServiceDetail) error {
	body := models.ServiceEnvelope{ServiceDetail: []models.ServiceDetail{def}}
	return c.do(ctx, http.MethodPost, "/ng1api/ncm/services", body, nil)
}

// ── Domains ───────────────────────────────────────────────────────────────────

func (c *Client) ListDomains(ctx context.Context) ([]models.DomainSummary, error) {
	var out models.DomainList
	if err := c.do(ctx, http.MethodGet, "/ng1api/ncm/domains", nil, &out); err != nil {
		return nil, err
	}
	return out.Domains, nil
}

func (c *Client) CreateDomain(ctx context.Context, def models.DomainDetail) error {
	body := models.DomainEnvelope{DomainDetail: []models.DomainDetail{def}}
	return c.do(ctx, http.MethodPost, "/ng1api/ncm/domains", body, nil)
}

// GetDomain returns the first domain nG1 reports under name, or ErrNotFound.
func (c *Client) GetDomain(ctx context.Context, name string) (*models.DomainDetail, error) {
	var out models.DomainEnvelope
	if err := c.do(ctx, http.MethodGet, "/ng1api/ncm/domains/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	if len(out.DomainDetail) == 0 {
		return nil, ErrNotFound
	}
	return &out.DomainDetail[0], nil
}

// ── Transport ─────────────────────────────────────────────────────────────────

func (c *Client) request(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	// path segments are already escaped by the callers
	target := strings.TrimSuffix(c.base.String(), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req, err := c.request(ctx, method, path, in)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

// send executes req and maps the vendor status onto ErrNotFound,
// ErrAlreadyExists or *APIError.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ng1: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ng1: reading %s response: %w", req.URL.Path, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Method: req.Method, Path: req.URL.Path, Status: resp.StatusCode, Body: string(raw)}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
		case resp.StatusCode == http.StatusConflict, strings.Contains(strings.ToLower(apiErr.Body), "already exist"):
			return fmt.Errorf("%w: %w", ErrAlreadyExists, apiErr)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ng1: decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}
