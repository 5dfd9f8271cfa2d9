package technitium

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultTimeout = 10 * time.Second

	// SplitHorizonClassPath is the APP record handler that stores the
	// hostname to address map consumed by the PTR engine.
	SplitHorizonClassPath = "SplitHorizon.SimpleAddress"
)

var (
	// ErrInvalidToken is returned when the server rejects the session token
	ErrInvalidToken = errors.New("technitium: invalid token")
)

// APIError is an error reported by the DNS server API itself
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("technitium API error: %s", e.Message)
}

// Client talks to one Technitium DNS server over its HTTP API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the server at baseURL. token may be
// empty; call Login or SetToken before authenticated operations.
func NewClient(baseURL, token string, timeout time.Duration, insecureSkipVerify bool) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport
	if insecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// SetToken replaces the session token
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current session token
func (c *Client) Token() string {
	return c.token
}

// apiResponse is the envelope every JSON endpoint answers with
type apiResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"errorMessage"`
	Response     json.RawMessage `json:"response"`
}

// call issues a request to path, decodes the envelope and unmarshals the
// response payload into out when out is non-nil.
func (c *Client) call(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if c.token != "" && !params.Has("token") {
		params.Set("token", c.token)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	switch envelope.Status {
	case "ok":
		if out != nil && len(envelope.Response) > 0 {
			if err := json.Unmarshal(envelope.Response, out); err != nil {
				return fmt.Errorf("failed to parse result: %w", err)
			}
		}
		return nil
	case "invalid-token":
		return ErrInvalidToken
	default:
		msg := envelope.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		return &APIError{Message: msg}
	}
}

// Login authenticates with username and password and stores the
// returned session token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	params := url.Values{}
	params.Set("user", username)
	params.Set("pass", password)
	params.Set("includeInfo", "true")

	// The login request itself sends no token, even if one is stale.
	saved := c.token
	c.token = ""
	var out LoginResponse
	err := c.call(ctx, "/api/user/login", params, &out)
	if err != nil {
		c.token = saved
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// Logout invalidates the current session token
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, "/api/user/logout", nil, nil)
	if err == nil {
		c.token = ""
	}
	return err
}

// ListApps lists installed DNS apps
func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	var out struct {
		Apps []App `json:"apps"`
	}
	if err := c.call(ctx, "/api/apps/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

// HasSplitHorizon reports whether any installed app exposes the
// SimpleAddress APP record handler.
func (c *Client) HasSplitHorizon(ctx context.Context) (bool, error) {
	apps, err := c.ListApps(ctx)
	if err != nil {
		return false, err
	}
	for _, app := range apps {
		for _, dnsApp := range app.DNSApps {
			if dnsApp.ClassPath == SplitHorizonClassPath {
				return true, nil
			}
		}
	}
	return false, nil
}

// ListZones lists all hosted zones
func (c *Client) ListZones(ctx context.Context) ([]Zone, error) {
	var out struct {
		Zones []Zone `json:"zones"`
	}
	if err := c.call(ctx, "/api/zones/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Zones, nil
}

// CreateZone creates a zone. zone may be a name or a network CIDR; for a
// CIDR the server derives the reverse zone name and returns it. catalog
// optionally enrolls the new zone as a member of a catalog zone.
func (c *Client) CreateZone(ctx context.Context, zone, zoneType, catalog string) (string, error) {
	params := url.Values{}
	params.Set("zone", zone)
	params.Set("type", zoneType)
	if catalog != "" {
		params.Set("catalog", catalog)
	}

	var out struct {
		Domain string `json:"domain"`
	}
	if err := c.call(ctx, "/api/zones/create", params, &out); err != nil {
		return "", err
	}
	return out.Domain, nil
}

// GetZoneRecords lists all records of a zone
func (c *Client) GetZoneRecords(ctx context.Context, zone string) ([]Record, error) {
	params := url.Values{}
	params.Set("domain", zone)
	params.Set("zone", zone)
	params.Set("listZone", "true")

	var out struct {
		Records []Record `json:"records"`
	}
	if err := c.call(ctx, "/api/zones/records/get", params, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// AddPTRRecord creates a PTR record. domain is the record owner name
// (absolute), zone the enclosing reverse zone.
func (c *Client) AddPTRRecord(ctx context.Context, domain, zone, ptrName string, ttl int) error {
	params := url.Values{}
	params.Set("domain", domain)
	params.Set("zone", zone)
	params.Set("type", "PTR")
	params.Set("ttl", strconv.Itoa(ttl))
	params.Set("ptrName", ptrName)
	return c.call(ctx, "/api/zones/records/add", params, nil)
}

// UpdatePTRRecord rewrites the target of an existing PTR record
func (c *Client) UpdatePTRRecord(ctx context.Context, domain, zone, oldPtrName, newPtrName string, ttl int) error {
	params := url.Values{}
	params.Set("domain", domain)
	params.Set("zone", zone)
	params.Set("type", "PTR")
	params.Set("ttl", strconv.Itoa(ttl))
	params.Set("ptrName", oldPtrName)
	params.Set("newPtrName", newPtrName)
	return c.call(ctx, "/api/zones/records/update", params, nil)
}

// recordParams encodes the shared and type-specific parameters of a
// generic record mutation.
func recordParams(rec RecordValues) url.Values {
	params := url.Values{}
	params.Set("domain", rec.Domain)
	params.Set("zone", rec.Zone)
	params.Set("type", rec.Type)
	if rec.TTL > 0 {
		params.Set("ttl", strconv.Itoa(rec.TTL))
	}
	switch rec.Type {
	case "A", "AAAA":
		params.Set("ipAddress", rec.IPAddress)
	case "CNAME":
		params.Set("cname", rec.CName)
	case "PTR":
		params.Set("ptrName", rec.PTRName)
	case "TXT":
		params.Set("text", rec.Text)
	case "NS":
		params.Set("nameServer", rec.NameServer)
	}
	return params
}

// AddRecord creates a record of any supported type
func (c *Client) AddRecord(ctx context.Context, rec RecordValues) error {
	return c.call(ctx, "/api/zones/records/add", recordParams(rec), nil)
}

// DeleteRecord removes a record of any supported type
func (c *Client) DeleteRecord(ctx context.Context, rec RecordValues) error {
	return c.call(ctx, "/api/zones/records/delete", recordParams(rec), nil)
}

// DeletePTRRecord removes a PTR record
func (c *Client) DeletePTRRecord(ctx context.Context, domain, zone, ptrName string) error {
	params := url.Values{}
	params.Set("domain", domain)
	params.Set("zone", zone)
	params.Set("type", "PTR")
	params.Set("ptrName", ptrName)
	return c.call(ctx, "/api/zones/records/delete", params, nil)
}

// ListDHCPScopes lists configured DHCP scopes
func (c *Client) ListDHCPScopes(ctx context.Context) ([]DHCPScope, error) {
	var out struct {
		Scopes []DHCPScope `json:"scopes"`
	}
	if err := c.call(ctx, "/api/dhcp/scopes/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Scopes, nil
}

// ListDHCPLeases lists all DHCP leases
func (c *Client) ListDHCPLeases(ctx context.Context) ([]DHCPLease, error) {
	var out struct {
		Leases []DHCPLease `json:"leases"`
	}
	if err := c.call(ctx, "/api/dhcp/leases/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Leases, nil
}

// ListAllowedZones lists entries under a domain in the allowed list
func (c *Client) ListAllowedZones(ctx context.Context, domain string) ([]Zone, error) {
	return c.listZoneTree(ctx, "/api/allowed/list", domain)
}

// AddAllowedZone adds a domain to the allowed list
func (c *Client) AddAllowedZone(ctx context.Context, domain string) error {
	params := url.Values{}
	params.Set("domain", domain)
	return c.call(ctx, "/api/allowed/add", params, nil)
}

// DeleteAllowedZone removes a domain from the allowed list
func (c *Client) DeleteAllowedZone(ctx context.Context, domain string) error {
	params := url.Values{}
	params.Set("domain", domain)
	return c.call(ctx, "/api/allowed/delete", params, nil)
}

// ListBlockedZones lists entries under a domain in the blocked list
func (c *Client) ListBlockedZones(ctx context.Context, domain string) ([]Zone, error) {
	return c.listZoneTree(ctx, "/api/blocked/list", domain)
}

// AddBlockedZone adds a domain to the blocked list
func (c *Client) AddBlockedZone(ctx context.Context, domain string) error {
	params := url.Values{}
	params.Set("domain", domain)
	return c.call(ctx, "/api/blocked/add", params, nil)
}

// DeleteBlockedZone removes a domain from the blocked list
func (c *Client) DeleteBlockedZone(ctx context.Context, domain string) error {
	params := url.Values{}
	params.Set("domain", domain)
	return c.call(ctx, "/api/blocked/delete", params, nil)
}

func (c *Client) listZoneTree(ctx context.Context, path, domain string) ([]Zone, error) {
	params := url.Values{}
	if domain != "" {
		params.Set("domain", domain)
	}
	var out struct {
		Zones []Zone `json:"zones"`
	}
	if err := c.call(ctx, path, params, &out); err != nil {
		return nil, err
	}
	return out.Zones, nil
}

// QueryLogs fetches a page of query logs from the query-logs app
func (c *Client) QueryLogs(ctx context.Context, req QueryLogsRequest) (*QueryLogPage, error) {
	params := url.Values{}
	params.Set("name", req.AppName)
	params.Set("classPath", req.ClassPath)
	if req.PageNumber > 0 {
		params.Set("pageNumber", strconv.Itoa(req.PageNumber))
	}
	if req.EntriesPerPage > 0 {
		params.Set("entriesPerPage", strconv.Itoa(req.EntriesPerPage))
	}
	params.Set("descendingOrder", strconv.FormatBool(req.DescendingOrder))
	if req.Start != "" {
		params.Set("start", req.Start)
	}
	if req.End != "" {
		params.Set("end", req.End)
	}
	if req.ClientIPAddress != "" {
		params.Set("clientIpAddress", req.ClientIPAddress)
	}
	if req.QName != "" {
		params.Set("qname", req.QName)
	}
	if req.QType != "" {
		params.Set("qtype", req.QType)
	}
	if req.ResponseType != "" {
		params.Set("responseType", req.ResponseType)
	}
	if req.RCode != "" {
		params.Set("rcode", req.RCode)
	}

	var out QueryLogPage
	if err := c.call(ctx, "/api/logs/query", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBackup downloads a settings backup zip. Unlike the JSON
// endpoints this returns the raw archive bytes.
func (c *Client) CreateBackup(ctx context.Context, opts BackupOptions) ([]byte, error) {
	params := url.Values{}
	if c.token != "" {
		params.Set("token", c.token)
	}
	flags := map[string]bool{
		"blockLists":   opts.BlockLists,
		"logs":         opts.Logs,
		"scopes":       opts.Scopes,
		"stats":        opts.Stats,
		"zones":        opts.Zones,
		"allowedZones": opts.AllowedZones,
		"blockedZones": opts.BlockedZones,
		"dnsSettings":  opts.DNSSettings,
		"authConfig":   opts.AuthConfig,
		"logSettings":  opts.LogSettings,
	}
	for name, enabled := range flags {
		params.Set(name, strconv.FormatBool(enabled))
	}

	reqURL := fmt.Sprintf("%s/api/settings/backup?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backup request failed: HTTP %d", resp.StatusCode)
	}

	// An error still comes back as the JSON envelope; a success is a zip.
	contentType := resp.Header.Get("Content-Type")
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if contentType == "application/json" || contentType == "application/json; charset=utf-8" {
		var envelope apiResponse
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status != "ok" {
			if envelope.Status == "invalid-token" {
				return nil, ErrInvalidToken
			}
			msg := envelope.ErrorMessage
			if msg == "" {
				msg = "unknown error"
			}
			return nil, &APIError{Message: msg}
		}
	}
	return body, nil
}
