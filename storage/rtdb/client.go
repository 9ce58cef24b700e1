// Package rtdb talks to a Firebase Realtime Database over its REST API.
// Reads and multi-path updates are plain requests; subscriptions use the streaming (SSE) endpoint.
package rtdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/storage/tree"
)

var scopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

type (
	Client struct {
		baseURL string
		secret  string
		tokens  oauth2.TokenSource
		rest    *rest.Client
		stream  *http.Client
		log     core.Logger

		mu   sync.Mutex
		subs map[*subscription]struct{}
	}

	Options struct {
		URL             string
		Secret          string // legacy database secret, sent as `auth`
		CredentialsFile string // service account JSON, exchanged for `access_token`
		HTTPClient      *http.Client
		Logger          core.Logger
	}

	// APIError is returned for non 2xx responses.
	APIError struct {
		StatusCode int
		Message    string
	}
)

var _ reconcile.Store = (*Client)(nil) // interface compliance check

func (e *APIError) Error() string {
	return "rtdb: " + http.StatusText(e.StatusCode) + ": " + e.Message
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if _, err := url.Parse(opts.URL); err != nil || opts.URL == "" {
		return nil, errors.Errorf("invalid database URL %q", opts.URL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.URL, "/"),
		secret:  opts.Secret,
		rest:    &rest.Client{HTTPClient: httpClient},
		stream:  httpClient,
		log:     opts.Logger,
		subs:    make(map[*subscription]struct{}),
	}

	if opts.CredentialsFile != "" {
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, errors.Wrap(err, "reading credentials")
		}
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, errors.Wrap(err, "parsing credentials")
		}
		c.tokens = oauth2.ReuseTokenSource(nil, creds.TokenSource)
	}
	return c, nil
}

// Get returns the JSON value at path; nil when missing.
func (c *Client) Get(ctx context.Context, path string) (interface{}, error) {
	req, err := c.request(rest.Get, path, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	if err = checkResponse(res); err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}

	var v interface{}
	if err = json.Unmarshal([]byte(res.Body), &v); err != nil {
		return nil, errors.Wrapf(err, "decoding %q", path)
	}
	return v, nil
}

// Update sends a multi-path PATCH, applied atomically by the server.
func (c *Client) Update(ctx context.Context, path string, values map[string]interface{}) error {
	body, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "encoding update")
	}
	req, err := c.request(rest.Patch, path, body)
	if err != nil {
		return err
	}
	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "updating %q", path)
	}
	return errors.Wrapf(checkResponse(res), "updating %q", path)
}

// Close cancels every open subscription.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Cancel()
	}
	return nil
}

func (c *Client) request(method rest.Method, path string, body []byte) (rest.Request, error) {
	params, err := c.authParams()
	if err != nil {
		return rest.Request{}, err
	}
	req := rest.Request{
		Method:      method,
		BaseURL:     c.nodeURL(path),
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: params,
	}
	if body != nil {
		req.Headers["Content-Type"] = "application/json"
		req.Body = body
	}
	return req, nil
}

func (c *Client) nodeURL(path string) string {
	keys := tree.Split(path)
	for i, k := range keys {
		keys[i] = url.PathEscape(k)
	}
	return c.baseURL + "/" + strings.Join(keys, "/") + ".json"
}

func (c *Client) authParams() (map[string]string, error) {
	params := make(map[string]string)
	switch {
	case c.tokens != nil:
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, errors.Wrap(err, "fetching access token")
		}
		params["access_token"] = tok.AccessToken
	case c.secret != "":
		params["auth"] = c.secret
	}
	return params, nil
}

func checkResponse(res *rest.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: res.StatusCode, Message: strings.TrimSpace(res.Body)}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(res.Body), &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
