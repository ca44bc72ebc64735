// Package client talks to the catalog server over its REST interface. It
// handles session lifecycle, query execution and entity reflection, and
// exposes the server's schema as a metadata.Provider.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"catalog-query-api/pkg/metadata"
	"catalog-query-api/pkg/query"
)

// Config carries the connection settings for a catalog server.
type Config struct {
	// BaseURL is the server root, e.g. https://catalog.example.org/api.
	BaseURL string
	// Auth names the authentication plugin (simple, ldap, anon, ...).
	Auth     string
	Username string
	Password string
	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration
	// Insecure skips TLS certificate verification.
	Insecure bool
}

// ServerError is a non-2xx response from the catalog server.
type ServerError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Client is a session-holding connection to one catalog server. It is safe
// for concurrent use; the session ID is guarded by a mutex so a Refresh or
// re-Login does not race in-flight requests.
type Client struct {
	rest *resty.Client

	mu        sync.Mutex
	sessionID string
}

// New builds a Client from cfg. No connection is made until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Insecure {
		rest.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	installLogging(rest)

	return &Client{rest: rest}, nil
}

// SessionID returns the current session ID, empty when not logged in.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// checkResponse turns a non-2xx response into a ServerError.
func checkResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	serr := &ServerError{Status: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), serr); err != nil || serr.Message == "" {
		serr.Message = resp.Status()
	}
	return serr
}

// Login opens a session with the given authenticator and credentials.
func (c *Client) Login(ctx context.Context, auth, username, password string) error {
	credentials := struct {
		Plugin      string              `json:"plugin"`
		Credentials []map[string]string `json:"credentials"`
	}{
		Plugin: auth,
		Credentials: []map[string]string{
			{"username": username},
			{"password": password},
		},
	}
	body, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("client: encode credentials: %w", err)
	}

	var result struct {
		SessionID string `json:"sessionId"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{"json": string(body)}).
		SetResult(&result).
		Post("/session")
	if err != nil {
		return fmt.Errorf("client: login: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("client: login: %w", err)
	}
	if result.SessionID == "" {
		return fmt.Errorf("client: login: server returned no session ID")
	}
	c.setSessionID(result.SessionID)
	return nil
}

// Logout closes the current session. A client without a session is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	session := c.SessionID()
	if session == "" {
		return nil
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		Delete("/session/" + url.PathEscape(session))
	if err != nil {
		return fmt.Errorf("client: logout: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("client: logout: %w", err)
	}
	c.setSessionID("")
	return nil
}

// Refresh extends the lifetime of the current session.
func (c *Client) Refresh(ctx context.Context) error {
	session := c.SessionID()
	if session == "" {
		return fmt.Errorf("client: refresh: not logged in")
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		Put("/session/" + url.PathEscape(session))
	if err != nil {
		return fmt.Errorf("client: refresh: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("client: refresh: %w", err)
	}
	return nil
}

// Version reports the server's API version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var result struct {
		Version string `json:"version"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/version")
	if err != nil {
		return "", fmt.Errorf("client: version: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return "", fmt.Errorf("client: version: %w", err)
	}
	return result.Version, nil
}

// Search runs a query string against the server and returns the raw result
// rows as decoded JSON values.
func (c *Client) Search(ctx context.Context, q string) ([]any, error) {
	session := c.SessionID()
	if session == "" {
		return nil, fmt.Errorf("client: search: not logged in")
	}
	var rows []any
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sessionId": session,
			"query":     q,
		}).
		SetResult(&rows).
		Get("/entityManager")
	if err != nil {
		return nil, fmt.Errorf("client: search: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("client: search: %w", err)
	}
	return rows, nil
}

// SearchQuery renders q and runs it.
func (c *Client) SearchQuery(ctx context.Context, q *query.Query) ([]any, error) {
	return c.Search(ctx, q.Render())
}

// EntityNames lists the entity type names the server knows.
func (c *Client) EntityNames(ctx context.Context) ([]string, error) {
	var names []string
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&names).
		Get("/entityManager/getEntityNames")
	if err != nil {
		return nil, fmt.Errorf("client: entity names: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("client: entity names: %w", err)
	}
	return names, nil
}

// entityInfoDoc mirrors the server's entity reflection document.
type entityInfoDoc struct {
	Name        string `json:"name"`
	Constraints []struct {
		FieldNames []string `json:"fieldNames"`
	} `json:"constraints"`
	Fields []struct {
		Field struct {
			Name        string `json:"name"`
			Type        string `json:"type"`
			RelType     string `json:"relType"`
			NotNullable bool   `json:"notNullable"`
		} `json:"field"`
	} `json:"fields"`
}

// EntityInfo fetches the server's reflection of one entity type and maps it
// into the metadata model. Natural-sort attribute lists come from
// metadata.NaturalSortOverrides since the server declares none.
func (c *Client) EntityInfo(ctx context.Context, name string) (*metadata.EntityType, error) {
	var doc entityInfoDoc
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("entityName", name).
		SetResult(&doc).
		Get("/entityManager/getEntityInfo")
	if err != nil {
		return nil, fmt.Errorf("client: entity info %s: %w", name, err)
	}
	if resp.StatusCode() == 404 {
		return nil, &metadata.NotFoundError{Name: name}
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("client: entity info %s: %w", name, err)
	}
	return entityTypeFromDoc(name, &doc), nil
}

func entityTypeFromDoc(name string, doc *entityInfoDoc) *metadata.EntityType {
	attrs := make([]metadata.AttrInfo, 0, len(doc.Fields))
	for _, f := range doc.Fields {
		kind := metadata.KindAttribute
		attrType := ""
		switch f.Field.RelType {
		case "ONE":
			kind = metadata.KindOne
			attrType = f.Field.Type
		case "MANY":
			kind = metadata.KindMany
			attrType = f.Field.Type
		}
		attrs = append(attrs, metadata.AttrInfo{
			Name:        f.Field.Name,
			Kind:        kind,
			Type:        attrType,
			NotNullable: f.Field.NotNullable,
		})
	}
	var constraint []string
	if len(doc.Constraints) > 0 {
		constraint = doc.Constraints[0].FieldNames
	}
	return metadata.NewEntityType(name, attrs, constraint, metadata.NaturalSortOverrides[name])
}

// Create stores one object of the given entity type and returns its id.
func (c *Client) Create(ctx context.Context, entityType string, object map[string]any) (int64, error) {
	session := c.SessionID()
	if session == "" {
		return 0, fmt.Errorf("client: create: not logged in")
	}
	body, err := json.Marshal([]map[string]any{{entityType: object}})
	if err != nil {
		return 0, fmt.Errorf("client: create: encode object: %w", err)
	}

	var ids []int64
	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"sessionId": session,
			"entities":  string(body),
		}).
		SetResult(&ids).
		Post("/entityManager")
	if err != nil {
		return 0, fmt.Errorf("client: create: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return 0, fmt.Errorf("client: create: %w", err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("client: create: server returned no id")
	}
	return ids[0], nil
}
