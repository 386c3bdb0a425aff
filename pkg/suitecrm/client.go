// Package suitecrm provides OAuth2-authenticated access to the SuiteCRM V8
// REST API.
package suitecrm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultPageSize = 20

// tokenExpirySkew is subtracted from expires_in so a token is refreshed
// before the server rejects it.
const tokenExpirySkew = 30 * time.Second

// Client performs lead reads against the SuiteCRM V8 API.
type Client interface {
	GetAllLeads(ctx context.Context) ([]Lead, error)
	// GetLeadByID returns (nil, nil) when the CRM has no such lead.
	GetLeadByID(ctx context.Context, id string) (*Lead, error)
}

// Lead is the wire shape of one lead: the CRM-assigned id plus the raw
// attribute object. Attribute mapping is left to the caller.
type Lead struct {
	ID         string
	Attributes json.RawMessage
}

// Credentials holds the OAuth2 password-grant inputs.
type Credentials struct {
	ClientID string
	Username string
	Password string
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize sets the page[size] parameter for list fetches.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimit sets a per-second rate limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	baseURL  string
	creds    Credentials
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a SuiteCRM API client. baseURL points at the V8 API
// root, e.g. https://crm.example.com/Api/V8.
func NewClient(baseURL string, creds Credentials, opts ...Option) Client {
	c := &httpClient{
		baseURL:  baseURL,
		creds:    creds,
		pageSize: defaultPageSize,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	AccessToken string `json:"access_token"`
}

// authenticate obtains a bearer token, reusing the cached one until it
// nears expiry.
func (c *httpClient) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"grant_type": "password",
		"client_id":  c.creds.ClientID,
		"username":   c.creds.Username,
		"password":   c.creds.Password,
	})
	if err != nil {
		return "", eris.Wrap(err, "suitecrm: marshal token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "suitecrm: create token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "suitecrm: authenticate")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "suitecrm: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("suitecrm: authenticate: unexpected status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return "", eris.Wrap(err, "suitecrm: unmarshal token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("suitecrm: authenticate: empty access token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySkew)
	return c.token, nil
}

// get performs an authenticated GET and returns the response body.
// A 404 returns (nil, nil).
func (c *httpClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "suitecrm: rate limit")
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "suitecrm: create request %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "suitecrm: get %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "suitecrm: read response %s", path)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("suitecrm: get %s: unexpected status %d", path, resp.StatusCode)
	}
	return body, nil
}

func (c *httpClient) GetAllLeads(ctx context.Context) ([]Lead, error) {
	query := url.Values{}
	query.Set("page[size]", strconv.Itoa(c.pageSize))

	body, err := c.get(ctx, "/module/Leads", query)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, eris.New("suitecrm: leads endpoint not found")
	}

	var envelope struct {
		Data []struct {
			ID         string          `json:"id"`
			Attributes json.RawMessage `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "suitecrm: unmarshal leads response")
	}

	leads := make([]Lead, len(envelope.Data))
	for i, d := range envelope.Data {
		leads[i] = Lead{ID: d.ID, Attributes: d.Attributes}
	}
	return leads, nil
}

func (c *httpClient) GetLeadByID(ctx context.Context, id string) (*Lead, error) {
	body, err := c.get(ctx, "/module/Leads/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var envelope struct {
		Data struct {
			ID         string          `json:"id"`
			Attributes json.RawMessage `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrapf(err, "suitecrm: unmarshal lead %s", id)
	}

	leadID := envelope.Data.ID
	if leadID == "" {
		leadID = id
	}
	return &Lead{ID: leadID, Attributes: envelope.Data.Attributes}, nil
}
