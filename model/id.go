/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import "github.com/google/uuid"

// idNamespace is an arbitrary, fixed namespace UUID used to derive
// repeatable resource identifiers from a caller-supplied seed, so the
// same seed produces the same ID across restarts (§3.1).
var idNamespace = uuid.MustParse("b8c6b3d0-0e0a-4e8a-9c0e-6e2a7f8f9a10")

// NewID returns a fresh, random resource identifier.
func NewID() string { return uuid.NewString() }

// SeededID derives a repeatable identifier from seed+discriminator, so
// that e.g. the same Node seed always yields the same Node id and the
// same Device label under it always yields the same Device id, without
// requiring persistent storage between restarts.
func SeededID(seed, discriminator string) string {
	return uuid.NewSHA1(idNamespace, []byte(seed+"\x00"+discriminator)).String()
}

// IsValidID reports whether s parses as a UUID (the only envelope
// invariant the store enforces on id per §4.1).
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
