/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Config is the settings document shared by Node and Registry daemons.
// Ambient-stack concerns (parsing a config *file*, flags, env vars) are
// explicitly out of scope (§1); callers construct a Config however they
// like and hand it to core.Server (via a ConfigOwner).
type Config struct {
	Role string // cmn.RoleNode | cmn.RoleRegistry

	// identity
	NodeSeed string // seed for deterministic resource identity (§3.1); not read by any package here (cmd/nmos-node takes its seed from the -node-seed flag)

	// discovery / registration (§4.3)
	RegistryServiceTypes []string      // defaults: _nmos-register._tcp, _nmos-registration._tcp
	RegistryDomain       string        // DNS-SD domain to browse, "" = default
	APIVersions          []string      // supported API versions this Node/Registry accepts, e.g. ["v1.3"]
	APIProto             string        // "http" | "https"
	APIAuth              bool          // whether auth is required/advertised
	Priority             int           // pri value for this instance (discovery.PriorityDoNotAdvertise to opt out); no advertisement in this module includes it
	RegistrationTimeout  time.Duration // default 30s
	HeartbeatInterval    time.Duration // default 5s
	HeartbeatTimeout     time.Duration // default 5s
	MaxDiscoveryAttempts int           // attempts before falling back to peer-to-peer; 0 = unlimited

	Backoff BackoffConfig

	// registry-side (§3.3, §4.4)
	ExpiryInterval time.Duration // default 12s

	// system (§4.8)
	SystemServiceTypes []string
	SystemIntervalMin  time.Duration // default ~3600s
	SystemIntervalMax  time.Duration
	SystemTimeout      time.Duration // per-GET timeout, default 30s

	// connection (§4.7)
	MaxActivationSkew time.Duration // absolute activations must fall within ±this of now at PATCH time; default 30s
}

type BackoffConfig struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
}

const (
	RoleNode     = "node"
	RoleRegistry = "registry"
)

// Defaults returns a Config populated with every default named in the
// spec (§4.2-§4.8).
func Defaults(role string) *Config {
	return &Config{
		Role:                 role,
		RegistryServiceTypes: []string{"_nmos-register._tcp", "_nmos-registration._tcp"},
		APIVersions:          []string{"v1.3"},
		APIProto:             "http",
		Priority:             100,
		RegistrationTimeout:  30 * time.Second,
		HeartbeatInterval:    5 * time.Second,
		HeartbeatTimeout:     5 * time.Second,
		MaxDiscoveryAttempts: 0,
		Backoff:              BackoffConfig{Min: time.Second, Max: 30 * time.Second, Factor: 1.5},
		ExpiryInterval:       12 * time.Second,
		SystemServiceTypes:   []string{"_nmos-system._tcp"},
		SystemIntervalMin:    3600 * time.Second,
		SystemIntervalMax:    3600 * time.Second,
		SystemTimeout:        30 * time.Second,
		MaxActivationSkew:    30 * time.Second,
	}
}

// ConfigOwner holds a Config behind an atomic pointer so readers never
// block on a writer mid-update, mirroring the teacher's
// globalConfigOwner (get/put/clone/begin-commit-update) in
// cmn/config.go.
type ConfigOwner struct {
	mtx sync.Mutex
	cur atomic.Value
}

func NewConfigOwner(initial *Config) *ConfigOwner {
	co := &ConfigOwner{}
	co.cur.Store(initial)
	return co
}

func (co *ConfigOwner) Get() *Config { return co.cur.Load().(*Config) }

func (co *ConfigOwner) Put(c *Config) { co.cur.Store(c) }

// Clone returns a shallow copy safe to mutate before CommitUpdate.
func (co *ConfigOwner) Clone() *Config {
	c := *co.Get()
	return &c
}

// BeginUpdate locks the owner for a read-modify-write cycle; the caller
// must follow with CommitUpdate or DiscardUpdate.
func (co *ConfigOwner) BeginUpdate() *Config {
	co.mtx.Lock()
	return co.Clone()
}

func (co *ConfigOwner) CommitUpdate(c *Config) {
	co.cur.Store(c)
	co.mtx.Unlock()
}

func (co *ConfigOwner) DiscardUpdate() {
	co.mtx.Unlock()
}
