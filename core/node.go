/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package core

import (
	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/connection"
	"github.com/nmos-community/nmos-core/discovery"
	"github.com/nmos-community/nmos-core/model"
	"github.com/nmos-community/nmos-core/registration"
	"github.com/nmos-community/nmos-core/system"
	"github.com/nmos-community/nmos-core/transport"
)

// NodeServer wires the registration, connection and system behaviours
// a Node runs (§4.3, §4.7, §4.8) into one supervised Server.
type NodeServer struct {
	*Server
	Registration *registration.Behaviour
	Connection   *connection.Manager
	System       *system.Behaviour
}

// NewNodeServer builds a Node's task set. resolver/advertiser/clients
// are supplied by the caller so tests can substitute discovery.Static*
// and a fake transport instead of the default DNS resolver and
// net/http-backed transport.HTTPTransport.
func NewNodeServer(
	cfg *cmn.Config,
	store *model.Store,
	nodeID string,
	resolver discovery.Resolver,
	advertiser discovery.Advertiser,
	regClient transport.RegistrationClient,
	sysClient transport.SystemClient,
	autoResolver connection.AutoResolver,
	transportfileSetter connection.TransportfileSetter,
	systemDeliver system.Callback,
) *NodeServer {
	owner := cmn.NewConfigOwner(cfg)
	srv := NewServer(owner, store)

	reg := registration.New(cfg, store, nodeID, resolver, advertiser, regClient)
	conn := connection.NewManager(store, cfg.MaxActivationSkew, autoResolver, transportfileSetter)
	sys := system.New(cfg, resolver, sysClient, systemDeliver)

	srv.Supervise("registration", reg.Run)
	srv.Supervise("connection", conn.Run)
	srv.Supervise("system", sys.Run)

	return &NodeServer{Server: srv, Registration: reg, Connection: conn, System: sys}
}
