package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jacentio/lattice/driver"
	"github.com/jacentio/lattice/driver/rest"
	"github.com/jacentio/lattice/oid"
)

// recordedRequest is one request as seen by the test server.
type recordedRequest struct {
	path   string
	apiKey string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, respBody string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		var body map[string]any
		if len(data) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		mu.Lock()
		seen = append(seen, recordedRequest{
			path:   r.URL.Path,
			apiKey: r.Header.Get("api-key"),
			body:   body,
		})
		mu.Unlock()

		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), seen...)
	}
}

func TestExecFindOne(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK,
		`{"document":{"_id":{"$oid":"64b5f0a1e4b0c83d9c000001"},"name":"ada"}}`)
	client, err := rest.New(srv.URL, &rest.Options{APIKey: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := client.Exec(context.Background(), &driver.Request{
		Action:     "findOne",
		Database:   "lattice",
		Collection: "users",
		Filter:     driver.Document{"name": "ada"},
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	if resp.Document["name"] != "ada" {
		t.Errorf("expected name 'ada', got %v", resp.Document["name"])
	}
	id, ok := resp.Document["_id"].(oid.ID)
	if !ok || id.Hex() != "64b5f0a1e4b0c83d9c000001" {
		t.Errorf("expected decoded identifier, got %v", resp.Document["_id"])
	}

	seen := requests()
	if len(seen) != 1 {
		t.Fatalf("expected 1 request, got %d", len(seen))
	}
	if seen[0].path != "/action/findOne" {
		t.Errorf("expected path /action/findOne, got %q", seen[0].path)
	}
	if seen[0].apiKey != "secret" {
		t.Errorf("expected api-key header, got %q", seen[0].apiKey)
	}
	if seen[0].body["database"] != "lattice" || seen[0].body["collection"] != "users" {
		t.Errorf("unexpected body namespace: %v", seen[0].body)
	}
	filter, _ := seen[0].body["filter"].(map[string]any)
	if filter["name"] != "ada" {
		t.Errorf("unexpected filter: %v", seen[0].body["filter"])
	}
}

func TestExecEncodesIdentifiers(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, `{}`)
	client, err := rest.New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id, _ := oid.FromHex("64b5f0a1e4b0c83d9c000001")
	_, err = client.Exec(context.Background(), &driver.Request{
		Action:     "deleteOne",
		Database:   "lattice",
		Collection: "users",
		Filter:     driver.Document{"_id": id},
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	filter := requests()[0].body["filter"].(map[string]any)
	wrapper, ok := filter["_id"].(map[string]any)
	if !ok || wrapper["$oid"] != "64b5f0a1e4b0c83d9c000001" {
		t.Errorf("expected identifier sent as wrapper, got %v", filter["_id"])
	}
}

func TestExecStoreError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusConflict,
		`{"error":"duplicate key","errorCode":11000}`)
	client, err := rest.New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Exec(context.Background(), &driver.Request{
		Action:     "insertOne",
		Database:   "lattice",
		Collection: "users",
		Documents:  []driver.Document{{"email": "ada@acme.dev"}},
	})
	var se *driver.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected a store error, got %v", err)
	}
	if se.Code != 11000 {
		t.Errorf("expected code 11000, got %d", se.Code)
	}
}

func TestExecNonJSONErrorBody(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadGateway, "upstream timeout")
	client, err := rest.New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Exec(context.Background(), &driver.Request{Action: "find"})
	if err == nil {
		t.Fatal("expected an error")
	}
	var se *driver.Error
	if errors.As(err, &se) {
		t.Errorf("expected a transport error, got store error %v", se)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestExecRejectsSessions(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, `{}`)
	client, err := rest.New(srv.URL, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Exec(context.Background(), &driver.Request{
		Action:    "find",
		SessionID: "sess-1",
	})
	if err == nil {
		t.Fatal("expected an error for a session-bound request")
	}
	if len(requests()) != 0 {
		t.Error("expected no request sent for a session-bound call")
	}
}

func TestNewEndpointParsing(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"https", "https://data.example.com/api/v1", false},
		{"http", "http://localhost:8080", false},
		{"schemeless assumes http", "localhost:8080", false},
		{"unsupported scheme", "ftp://example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rest.New(tt.endpoint, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			}
		})
	}
}

func TestCloseIsNoOp(t *testing.T) {
	client, err := rest.New("localhost:8080", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}
