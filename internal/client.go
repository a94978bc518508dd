package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response is kept for logging
const maxErrorBody = 512

// ServiceInfo is the banner served at the backend root
type ServiceInfo struct {
	Service   string   `json:"service"`
	Endpoints []string `json:"endpoints"`
}

// ChatReply is the /chat response. Status is "success" when Answer is set;
// otherwise Message explains the failure.
type ChatReply struct {
	Status  string `json:"status"`
	Answer  string `json:"answer"`
	Message string `json:"message"`
}

// WarehouseBackend is what the connection wizard needs from the service
type WarehouseBackend interface {
	ListTables(ctx context.Context, cfg ConnectionConfig) ([]string, error)
	RunAnalysis(ctx context.Context, cfg ConnectionConfig, tables []string) error
}

// ReportSource is what the report view model needs from the service.
// Report payloads are returned undecoded; only the normalizer interprets them.
type ReportSource interface {
	CurrentReport(ctx context.Context) (json.RawMessage, error)
	ReportByID(ctx context.Context, loadID string) (json.RawMessage, error)
	Runs(ctx context.Context) ([]HistoryEntry, error)
}

// ChatBackend is what the assistant needs from the service
type ChatBackend interface {
	Chat(ctx context.Context, message string) (*ChatReply, error)
}

// Client talks to the analysis service over HTTP
type Client struct {
	baseURL    string // without trailing slash
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit paces requests to rps per second. Zero or less disables pacing.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBackendURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL scheme: %q (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL: missing host")
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping fetches the service banner
func (c *Client) Ping(ctx context.Context) (*ServiceInfo, error) {
	var info ServiceInfo
	if err := c.getJSON(ctx, "ping", "/", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListTables asks the service for the tables visible with cfg
func (c *Client) ListTables(ctx context.Context, cfg ConnectionConfig) ([]string, error) {
	body, contentType, err := connectionForm(cfg, nil)
	if err != nil {
		return nil, &TransportError{Op: "list-tables", Err: err}
	}

	var resp struct {
		Tables []string `json:"tables"`
	}
	if err := c.postJSON(ctx, "list-tables", "/list-tables", contentType, body, &resp); err != nil {
		return nil, err
	}
	if resp.Tables == nil {
		resp.Tables = []string{}
	}
	return resp.Tables, nil
}

// RunAnalysis triggers an analysis over tables. The response body is ignored;
// the new report is read back through CurrentReport.
func (c *Client) RunAnalysis(ctx context.Context, cfg ConnectionConfig, tables []string) error {
	body, contentType, err := connectionForm(cfg, tables)
	if err != nil {
		return &TransportError{Op: "run-analysis", Err: err}
	}
	return c.postJSON(ctx, "run-analysis", "/run-analysis", contentType, body, nil)
}

// CurrentReport returns the latest report payload, or ErrNoReport
func (c *Client) CurrentReport(ctx context.Context) (json.RawMessage, error) {
	return c.reportData(ctx, "clean-report", "/clean-report")
}

// ReportByID returns the payload of one past run, or ErrNoReport
func (c *Client) ReportByID(ctx context.Context, loadID string) (json.RawMessage, error) {
	if strings.TrimSpace(loadID) == "" {
		return nil, &ValidationError{Field: "load_id", Msg: "load id is required"}
	}
	return c.reportData(ctx, "clean-report", "/clean-report/"+url.PathEscape(loadID))
}

// Runs lists past analysis runs, newest first as the service orders them
func (c *Client) Runs(ctx context.Context) ([]HistoryEntry, error) {
	var runs []HistoryEntry
	if err := c.getJSON(ctx, "clean-report-runs", "/clean-report/runs", &runs); err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []HistoryEntry{}
	}
	return runs, nil
}

// Chat sends one question to the assistant endpoint. The service reports its
// own failures as {status, message} with a 4xx/5xx code; those come back as
// a ChatReply rather than an error.
func (c *Client) Chat(ctx context.Context, message string) (*ChatReply, error) {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, &TransportError{Op: "chat", Err: err}
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "chat", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	status, data, err := c.do(req, "chat")
	if err != nil {
		return nil, err
	}

	var reply ChatReply
	if jerr := json.Unmarshal(data, &reply); jerr != nil || reply.Status == "" {
		if status/100 != 2 {
			return nil, &TransportError{Op: "chat", Status: status, Err: fmt.Errorf("unexpected response: %s", truncate(data))}
		}
		if jerr != nil {
			return nil, &TransportError{Op: "chat", Status: status, Err: fmt.Errorf("decode response: %w", jerr)}
		}
	}
	return &reply, nil
}

func (c *Client) reportData(ctx context.Context, op, p string) (json.RawMessage, error) {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	err := c.getJSON(ctx, op, p, &resp)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) && terr.IsNotFound() {
			return nil, ErrNoReport
		}
		return nil, err
	}
	trimmed := bytes.TrimSpace(resp.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrNoReport
	}
	return resp.Data, nil
}

func (c *Client) getJSON(ctx context.Context, op, p string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, p, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, op, out)
}

func (c *Client) postJSON(ctx context.Context, op, p, contentType string, body io.Reader, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodPost, p, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, op, out)
}

func (c *Client) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
}

func (c *Client) doJSON(req *http.Request, op string, out interface{}) error {
	status, data, err := c.do(req, op)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return &TransportError{Op: op, Status: status, Err: fmt.Errorf("unexpected status: %s", truncate(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// do sends req and reads the whole body. Only a missing response is an error here.
func (c *Client) do(req *http.Request, op string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return 0, nil, &TransportError{Op: op, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		LogDebug("%s %s failed after %v: %v", req.Method, req.URL.Path, time.Since(start), err)
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	LogDebug("%s %s -> %d (%v, %d bytes)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start), len(data))
	return resp.StatusCode, data, nil
}

// connectionForm builds the multipart body shared by /list-tables and
// /run-analysis. tables is only sent when non-nil.
func connectionForm(cfg ConnectionConfig, tables []string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"account", cfg.Account},
		{"user", cfg.User},
		{"role", cfg.Role},
		{"warehouse", cfg.Warehouse},
		{"database", cfg.Database},
		{"schema", cfg.Schema},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if cfg.PrivateKey != nil {
		name := cfg.PrivateKey.Name
		if name == "" {
			name = "private_key.pem"
		}
		part, err := w.CreateFormFile("private_key_file", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(cfg.PrivateKey.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.WriteField("private_key_passphrase", cfg.Passphrase); err != nil {
		return nil, "", err
	}

	if tables != nil {
		encoded, err := json.Marshal(tables)
		if err != nil {
			return nil, "", err
		}
		if err := w.WriteField("tables", string(encoded)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
