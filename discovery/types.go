// Package discovery defines the DNS-SD service-type vocabulary and the
// Resolver/Advertiser interface contracts NMOS components browse and
// advertise through (§4.2, §6.1). The DNS-SD transport itself (mDNS or
// unicast-DNS wire protocol) is explicitly out of scope for the core
// (§1): this package supplies the vocabulary, the priority/shuffle
// selection rule, and one concrete Resolver built on the standard
// library's unicast-DNS SRV/TXT lookups, which a caller is free to
// replace with a real mDNS library behind the same interface.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package discovery

import "context"

// Service types (§6.1).
const (
	ServiceRegister     = "_nmos-register._tcp"
	ServiceRegistration = "_nmos-registration._tcp" // legacy alias, still probed (§4.3)
	ServiceQuery        = "_nmos-query._tcp"
	ServiceNode         = "_nmos-node._tcp"
	ServiceSystem       = "_nmos-system._tcp"
)

// PriorityDoNotAdvertise is the `pri` TXT sentinel meaning "never select
// this instance" (§4.2: "max-int = do-not-advertise").
const PriorityDoNotAdvertise = int(^uint(0) >> 1)

// Instance is one resolved DNS-SD instance (§4.2).
type Instance struct {
	Name string
	Host string
	Port int

	Priority int      // from TXT `pri`
	APIVer   []string  // from TXT `api_ver`, comma-separated list
	APIProto string    // from TXT `api_proto`: http | https
	APIAuth  bool      // from TXT `api_auth`

	// Node-API-only version counters (§6.1, §D): incremented by the
	// advertiser on every resource-class change so p2p Query clients
	// can detect staleness without polling.
	VerSlf, VerSrc, VerFlw, VerDvc, VerSnd, VerRcv uint8

	TXT map[string]string
	TTL int // seconds
}

// Resolver browses and resolves DNS-SD service instances (§4.2).
type Resolver interface {
	// Browse returns every instance of serviceType visible in domain
	// (empty domain = implementation default) within the call's
	// context deadline. It must return promptly when ctx is cancelled
	// (§4.3: "any blocking step... must honour a shutdown signal").
	Browse(ctx context.Context, serviceType, domain string) ([]Instance, error)
}

// Advertiser publishes this process's own service instance (§4.2,
// peer-to-peer fallback in §4.3).
type Advertiser interface {
	// Advertise starts advertising serviceType on port with the given
	// TXT records and returns a function that stops it.
	Advertise(ctx context.Context, serviceType string, port int, txt map[string]string) (stop func(), err error)
}
