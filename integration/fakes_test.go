/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package integration

import (
	"context"
	"sync"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
	"github.com/nmos-community/nmos-core/registry"
)

// fakeRegistrationClient stands in for transport.HTTPTransport: it
// forwards registration.Behaviour's calls straight into an in-process
// registry.Registry keyed by the same base URL string the Behaviour
// computes from a discovery.Instance, instead of going over the wire
// (§1's "concrete REST routing is out of scope" applies just as much to
// a test double as to a real server).
type fakeRegistrationClient struct {
	mu      sync.Mutex
	backend map[string]*registry.Registry
	down    map[string]bool
}

func newFakeRegistrationClient() *fakeRegistrationClient {
	return &fakeRegistrationClient{backend: map[string]*registry.Registry{}, down: map[string]bool{}}
}

func (f *fakeRegistrationClient) addBackend(baseURL string, reg *registry.Registry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backend[baseURL] = reg
}

// setDown simulates stopping a registry process: every call against
// baseURL fails as if the connection was refused, until cleared.
func (f *fakeRegistrationClient) setDown(baseURL string, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down[baseURL] = down
}

func (f *fakeRegistrationClient) lookup(baseURL string) (*registry.Registry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[baseURL] {
		return nil, cmn.New(cmn.KindTransient, "integration: connection refused")
	}
	reg, ok := f.backend[baseURL]
	if !ok {
		return nil, cmn.Newf(cmn.KindTransient, "integration: no registry behind %s", baseURL)
	}
	return reg, nil
}

func (f *fakeRegistrationClient) Register(_ context.Context, baseURL, resourceType string, body []byte) (int, []byte, error) {
	reg, err := f.lookup(baseURL)
	if err != nil {
		return 0, nil, err
	}
	res, err := model.NewEmpty(model.Type(resourceType))
	if err != nil {
		return 0, nil, err
	}
	if err := cmn.Unmarshal(body, res); err != nil {
		return 0, nil, err
	}
	res.Envelope().Type = model.Type(resourceType)
	status, _ := reg.Register(res, time.Now())
	return status, nil, nil
}

func (f *fakeRegistrationClient) Delete(_ context.Context, baseURL, resourceType, id string) (int, error) {
	reg, err := f.lookup(baseURL)
	if err != nil {
		return 0, err
	}
	status, _ := reg.Delete(id)
	return status, nil
}

func (f *fakeRegistrationClient) Heartbeat(_ context.Context, baseURL, nodeID string) (int, error) {
	reg, err := f.lookup(baseURL)
	if err != nil {
		return 0, err
	}
	status, _ := reg.Heartbeat(nodeID, time.Now())
	return status, nil
}

// fakeSystemClient never resolves a global configuration document; the
// scenarios below don't exercise §4.8, but core.NewNodeServer still
// needs a transport.SystemClient to wire up, same as a real Node would
// hand it one pointed at a System API it may never find.
type fakeSystemClient struct{}

func (fakeSystemClient) FetchGlobal(context.Context, string) (int, []byte, error) {
	return 0, nil, cmn.New(cmn.KindTransient, "integration: no system api in this scenario")
}

func noopAutoResolver(_ model.Connectable, staged model.TransportParams) (model.TransportParams, error) {
	return staged, nil
}

func fastCfg(role string) *cmn.Config {
	c := cmn.Defaults(role)
	c.RegistrationTimeout = time.Second
	c.HeartbeatInterval = 20 * time.Millisecond
	c.HeartbeatTimeout = time.Second
	c.Backoff = cmn.BackoffConfig{Min: 10 * time.Millisecond, Max: 40 * time.Millisecond, Factor: 1.5}
	c.ExpiryInterval = 2 * time.Second
	c.SystemIntervalMin, c.SystemIntervalMax = time.Hour, time.Hour
	return c
}
