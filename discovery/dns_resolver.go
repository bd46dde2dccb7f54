/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/nmos-community/nmos-core/cmn"
)

// DNSResolver resolves DNS-SD service instances over unicast DNS
// (RFC 6763 §11: SRV + TXT records under `<service>.<domain>`), using
// only the standard library's resolver. It deliberately does not speak
// mDNS: §1 excludes "the DNS-SD (mDNS/unicast-DNS) library itself" from
// the core, leaving only the Resolver interface and this unicast
// fallback; an embedder wanting multicast discovery supplies its own
// Resolver built on a real mDNS library instead.
type DNSResolver struct {
	Net *net.Resolver // nil = net.DefaultResolver
}

func (d *DNSResolver) resolver() *net.Resolver {
	if d.Net != nil {
		return d.Net
	}
	return net.DefaultResolver
}

func (d *DNSResolver) Browse(ctx context.Context, serviceType, domain string) ([]Instance, error) {
	name := serviceType
	if domain != "" {
		name = serviceType + "." + domain
	}
	_, srvs, err := d.resolver().LookupSRV(ctx, "", "", name)
	if err != nil {
		return nil, cmn.Wrap(cmn.KindTransient, err, "discovery: SRV lookup failed for "+name)
	}
	out := make([]Instance, 0, len(srvs))
	for _, srv := range srvs {
		inst := Instance{
			Name: strings.TrimSuffix(srv.Target, "."),
			Host: strings.TrimSuffix(srv.Target, "."),
			Port: int(srv.Port),
			TTL:  60,
			TXT:  map[string]string{},
		}
		if txts, err := d.resolver().LookupTXT(ctx, inst.Name); err == nil {
			for _, rec := range txts {
				mergeTXT(inst.TXT, rec)
			}
		}
		applyTXT(&inst)
		out = append(out, inst)
	}
	return out, nil
}

// mergeTXT parses a single TXT record string (as returned by
// net.Resolver.LookupTXT, one "key=value" pair per record in this
// implementation's convention) into dst.
func mergeTXT(dst map[string]string, rec string) {
	kv := strings.SplitN(rec, "=", 2)
	if len(kv) == 2 {
		dst[kv[0]] = kv[1]
	}
}

// applyTXT populates Instance's typed fields from its raw TXT map
// (§4.2, §6.1).
func applyTXT(inst *Instance) {
	if v, ok := inst.TXT["pri"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			inst.Priority = n
		}
	} else {
		inst.Priority = 100 // spec default bucket: "development" range
	}
	if v, ok := inst.TXT["api_ver"]; ok {
		inst.APIVer = strings.Split(v, ",")
	}
	inst.APIProto = inst.TXT["api_proto"]
	inst.APIAuth = inst.TXT["api_auth"] == "true"

	inst.VerSlf = txtByte(inst.TXT, "ver_slf")
	inst.VerSrc = txtByte(inst.TXT, "ver_src")
	inst.VerFlw = txtByte(inst.TXT, "ver_flw")
	inst.VerDvc = txtByte(inst.TXT, "ver_dvc")
	inst.VerSnd = txtByte(inst.TXT, "ver_snd")
	inst.VerRcv = txtByte(inst.TXT, "ver_rcv")
}

func txtByte(txt map[string]string, key string) uint8 {
	if v, ok := txt[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return uint8(n)
		}
	}
	return 0
}
