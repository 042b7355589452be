// Package rest implements the driver connection over a stateless HTTP API.
//
// Each request is a POST to {endpoint}/action/{name} with a JSON body; the
// transport keeps no state between calls, so sessions (and therefore
// transactions) are not supported.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jacentio/lattice/driver"
	"github.com/jacentio/lattice/internal/extjson"
)

// httpClient is the part of http.Client the transport uses.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a stateless driver.Conn over HTTP. It is safe for concurrent
// use.
type Client struct {
	endpoint string
	apiKey   string
	http     httpClient
}

// Options configure a REST client.
type Options struct {
	// APIKey, when set, is sent in the api-key request header.
	APIKey string

	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration
}

// New builds a Client for the given endpoint. Endpoints without a scheme
// are assumed to be http.
func New(endpoint string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("rest: invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("rest: unsupported scheme %q", u.Scheme)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(u.String(), "/"),
		apiKey:   opts.APIKey,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// errorBody is the API's error response shape.
type errorBody struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"errorCode"`
}

// Exec implements driver.Conn.
func (c *Client) Exec(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if req.SessionID != "" {
		return nil, fmt.Errorf("rest: sessions are not supported")
	}

	body, err := extjson.Marshal(requestBody(req))
	if err != nil {
		return nil, fmt.Errorf("rest: encode request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/action/"+req.Action, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rest: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		hreq.Header.Set("api-key", c.apiKey)
	}

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, fmt.Errorf("rest: read response: %w", err)
	}

	if hresp.StatusCode < 200 || hresp.StatusCode >= 300 {
		var eb errorBody
		if jerr := json.Unmarshal(data, &eb); jerr == nil && eb.Error != "" {
			return nil, &driver.Error{Code: eb.ErrorCode, Message: eb.Error}
		}
		return nil, fmt.Errorf("rest: status %d: %s", hresp.StatusCode, strings.TrimSpace(string(data)))
	}

	raw, err := extjson.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("rest: decode response: %w", err)
	}
	doc, ok := raw.(driver.Document)
	if !ok {
		return nil, fmt.Errorf("rest: unexpected response shape %T", raw)
	}
	return driver.DecodeResponse(doc), nil
}

// Close implements driver.Conn. The transport is stateless, so there is
// nothing to release.
func (c *Client) Close(ctx context.Context) error {
	return nil
}

// requestBody flattens the request into the API's JSON shape, omitting
// unset fields.
func requestBody(req *driver.Request) driver.Document {
	body := driver.Document{
		"database":   req.Database,
		"collection": req.Collection,
	}
	if req.Filter != nil {
		body["filter"] = req.Filter
	}
	if req.Update != nil {
		body["update"] = req.Update
	}
	if req.Replacement != nil {
		body["replacement"] = req.Replacement
	}
	if req.Documents != nil {
		body["documents"] = req.Documents
	}
	if req.Pipeline != nil {
		body["pipeline"] = req.Pipeline
	}
	if req.Projection != nil {
		body["projection"] = req.Projection
	}
	if req.Sort != nil {
		body["sort"] = req.Sort
	}
	if req.Skip != 0 {
		body["skip"] = req.Skip
	}
	if req.Limit != 0 {
		body["limit"] = req.Limit
	}
	if req.Upsert {
		body["upsert"] = true
	}
	return body
}
