/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"github.com/golang/glog"
	"github.com/teris-io/shortid"
)

// Logf/Warningf/Errorf are thin re-exports of glog's leveled logging,
// matching the call shape of the teacher's nlog.Infof/Warningf/Errorf
// so every behaviour task that logs (registration, system, GC,
// connection) does so the same way regardless of daemon role.
func Logf(format string, args ...interface{})     { glog.Infof(format, args...) }
func Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func Errorf(format string, args ...interface{})    { glog.Errorf(format, args...) }
func Fatalf(format string, args ...interface{})    { glog.Fatalf(format, args...) }

// correlation IDs: short, non-deterministic, for log lines and
// subscription-id suffixes. Deterministic "seeded" resource identity
// (§3.1) is a model concern, not this one - see model.SeededID.
var sid *shortid.Shortid

func init() {
	s, err := shortid.New(1, shortid.DefaultABC, 0xC0FFEE)
	if err != nil {
		panic(err)
	}
	sid = s
}

// CorrelationID returns a short, URL-safe identifier suitable for log
// correlation or a subscription id suffix. It is not resource identity.
func CorrelationID() string {
	id, err := sid.Generate()
	if err != nil {
		// shortid's worker-local counter cannot realistically overflow
		// within a process lifetime; fall back rather than panic.
		return "cid-fallback"
	}
	return id
}
