// Package model holds the seven NMOS resource types (§3.2), their
// common envelope and the in-memory, versioned, indexed Store that
// backs both the Node's local resources and the Registry's catalogue
// (§3.4, §3.5).
//
// The type layout generalises the teacher's two-variant cluster map
// (cluster.Snode/cluster.Smap in cluster/map.go, proxy vs target) to
// seven resource types sharing one envelope.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import (
	"github.com/nmos-community/nmos-core/cmn"
)

// Type enumerates the seven polymorphic resource kinds (§3.2).
type Type string

const (
	TypeNode         Type = "node"
	TypeDevice       Type = "device"
	TypeSource       Type = "source"
	TypeFlow         Type = "flow"
	TypeSender       Type = "sender"
	TypeReceiver     Type = "receiver"
	TypeSubscription Type = "subscription" // Registry-only (§4.5)
)

// cascadeOrder is the fixed parent->child walk order used by Store.Erase
// (§4.1: "Cascade delete walks parent->child edges in a fixed order:
// Node -> Device -> Source -> Flow -> Sender; Device -> Receiver").
var cascadeOrder = []Type{TypeDevice, TypeSource, TypeFlow, TypeSender, TypeReceiver}

// Envelope is the common header every resource carries: identity,
// version, human-readable metadata and the parent references used for
// referential-integrity checks and cascade delete.
type Envelope struct {
	ID          string      `json:"id"`
	Version     string      `json:"version"` // "<sec>:<nsec>", cmn.TAITime.String()
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Tags        interface{} `json:"tags,omitempty"`

	Type Type `json:"-"` // not part of the NMOS wire envelope; used for internal indexing only

	// Parent references, set according to Type:
	//   Device:   NodeID
	//   Source:   DeviceID
	//   Flow:     SourceID, DeviceID
	//   Sender:   FlowID, DeviceID
	//   Receiver: DeviceID
	NodeID   string `json:"node_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	FlowID   string `json:"flow_id,omitempty"`

	// APIVersion is the earliest API version this resource validates
	// against (§3.1).
	APIVersion string `json:"-"`

	// health is the Node's liveness clock: the monotonic wall-time
	// seconds of the last heartbeat for the owning Node, inherited by
	// every descendant (§3.3). math.MaxInt64 means "never expire"
	// (locally-owned self-resources on a Node).
	Health int64 `json:"-"`
}

const NeverExpire = int64(1)<<63 - 1

// Resource is the interface every resource type and the Subscription
// satisfy; the registry and store operate on it polymorphically while
// HTTP-boundary code converts to/from the concrete typed struct
// (§9 "Tagged variants... are preferred over open maps for internal
// indexing -- convert at the HTTP boundary").
type Resource interface {
	Envelope() *Envelope
	Clone() Resource
}

// Node is the top of the resource tree (§3.2).
type Node struct {
	Envelope
	Href     string          `json:"href"`
	Hostname string          `json:"hostname,omitempty"`
	Caps     cmn.RawMessage  `json:"caps,omitempty"`
	Services []Service       `json:"services"`
	Clocks   []Clock         `json:"clocks"`
	Interfaces []NetInterface `json:"interfaces"`
	APIEx    NodeAPI         `json:"api"`
}

type Service struct {
	Href string `json:"href"`
	Type string `json:"type"`
}

type Clock struct {
	Name string `json:"name"`
	Ref  string `json:"ref_type"`
}

type NetInterface struct {
	Name       string `json:"name"`
	ChassisID  string `json:"chassis_id,omitempty"`
	PortID     string `json:"port_id,omitempty"`
}

type NodeAPI struct {
	Versions []string     `json:"versions"`
	Endpoints []APIEndpoint `json:"endpoints"`
}

type APIEndpoint struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}

func (n *Node) Envelope() *Envelope { return &n.Envelope }
func (n *Node) Clone() Resource     { c := *n; return &c }

// Device groups Sources/Flows/Senders/Receivers under a Node (§3.2).
type Device struct {
	Envelope
	Type      string   `json:"type"`
	Senders   []string `json:"senders"`
	Receivers []string `json:"receivers"`
}

func (d *Device) Envelope() *Envelope { return &d.Envelope }
func (d *Device) Clone() Resource {
	c := *d
	c.Senders = append([]string(nil), d.Senders...)
	c.Receivers = append([]string(nil), d.Receivers...)
	return &c
}

// Format enumerates the media format families shared by Source/Flow/
// Receiver (§3.2).
type Format string

const (
	FormatVideo Format = "urn:x-nmos:format:video"
	FormatAudio Format = "urn:x-nmos:format:audio"
	FormatData  Format = "urn:x-nmos:format:data"
	FormatMux   Format = "urn:x-nmos:format:mux"
)

// Source declares a media format (§3.2).
type Source struct {
	Envelope
	Format      Format   `json:"format"`
	Caps        cmn.RawMessage `json:"caps,omitempty"`
	ClockName   string   `json:"clock_name,omitempty"`
	Channels    []Channel `json:"channels,omitempty"` // audio only
}

type Channel struct {
	Label  string `json:"label"`
	Symbol string `json:"symbol,omitempty"`
}

func (s *Source) Envelope() *Envelope { return &s.Envelope }
func (s *Source) Clone() Resource     { c := *s; c.Channels = append([]Channel(nil), s.Channels...); return &c }

// Flow is an encoded representation of a Source (§3.2). Format-specific
// fields are kept loose (RawMessage) since they vary by Format and the
// schema validator (§6.4), not this package, is the source of truth for
// their shape.
type Flow struct {
	Envelope
	Format      Format         `json:"format"`
	// video
	FrameWidth  int            `json:"frame_width,omitempty"`
	FrameHeight int            `json:"frame_height,omitempty"`
	Colorspace  string         `json:"colorspace,omitempty"`
	Interlace   bool           `json:"interlace_mode,omitempty"`
	// audio
	SampleRate  int            `json:"sample_rate,omitempty"`
	BitDepth    int            `json:"bit_depth,omitempty"`
	// data/mux
	EventType   string         `json:"event_type,omitempty"`
	MediaType   string         `json:"media_type,omitempty"`
	Extra       cmn.RawMessage `json:"-"`
}

func (f *Flow) Envelope() *Envelope { return &f.Envelope }
func (f *Flow) Clone() Resource     { c := *f; return &c }

// Transport enumerates the transports a Sender/Receiver declares.
type Transport string

const (
	TransportRTP        Transport = "urn:x-nmos:transport:rtp"
	TransportRTPMcast    Transport = "urn:x-nmos:transport:rtp.mcast"
	TransportRTPUcast    Transport = "urn:x-nmos:transport:rtp.ucast"
	TransportWebsocket   Transport = "urn:x-nmos:transport:websocket"
	TransportMQTT        Transport = "urn:x-nmos:transport:mqtt"
)

// SenderSubscription is the subscription block on a Sender (§3.2).
type SenderSubscription struct {
	ReceiverID *string `json:"receiver_id"`
	Active     bool    `json:"active"`
}

// Sender declares a transport and interface bindings (§3.2).
type Sender struct {
	Envelope
	Transport    Transport          `json:"transport"`
	Interfaces   []string           `json:"interface_bindings"`
	Subscription SenderSubscription `json:"subscription"`
	ManifestHref string             `json:"manifest_href,omitempty"`
	Connection   ConnectionState    `json:"-"` // IS-05 facet (§4.7); exposed via the Connection API, not the Node API document
}

func (s *Sender) Envelope() *Envelope { return &s.Envelope }
func (s *Sender) Clone() Resource {
	c := *s
	c.Interfaces = append([]string(nil), s.Interfaces...)
	c.Connection = s.Connection.Clone()
	return &c
}

// ReceiverSubscription is the subscription block on a Receiver (§3.2).
type ReceiverSubscription struct {
	SenderID *string `json:"sender_id"`
	Active   bool    `json:"active"`
}

// Receiver accepts a format & transport, matched against a Sender
// subscription (§3.2).
type Receiver struct {
	Envelope
	Format       Format               `json:"format"`
	Transport    Transport            `json:"transport"`
	Interfaces   []string             `json:"interface_bindings"`
	Caps         cmn.RawMessage       `json:"caps,omitempty"` // capability constraint-sets
	Subscription ReceiverSubscription `json:"subscription"`
	Connection   ConnectionState      `json:"-"` // IS-05 facet (§4.7)
}

func (r *Receiver) Envelope() *Envelope { return &r.Envelope }
func (r *Receiver) Clone() Resource {
	c := *r
	c.Interfaces = append([]string(nil), r.Interfaces...)
	c.Connection = r.Connection.Clone()
	return &c
}
