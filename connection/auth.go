/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package connection

import (
	"github.com/golang-jwt/jwt/v4"

	"github.com/nmos-community/nmos-core/cmn"
)

// AuthValidator is the `validate_authorization_token(token) -> scope_set`
// callback (§6.4): side-effect-free, returns the scopes a bearer token
// grants or an Unauthorized error if the token itself doesn't parse or
// verify. Query/Registration API handlers (out of this module's scope,
// per §1) call it at the HTTP boundary; Manager.ApplyPatch callers that
// front IS-05 PATCH with bearer auth use it the same way.
type AuthValidator interface {
	ValidateToken(token string) (scopes []string, err error)
}

// JWTAuthValidator is the reference AuthValidator: bearer tokens are
// standard JWTs, scopes come from a space-separated "scope" claim (the
// OAuth2 convention), and Keyfunc supplies whatever key material the
// embedder's load_ca_certificates/load_server_certificates callbacks
// would have produced.
type JWTAuthValidator struct {
	Keyfunc jwt.Keyfunc
}

func (v JWTAuthValidator) ValidateToken(token string) ([]string, error) {
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, v.Keyfunc); err != nil {
		return nil, cmn.Wrap(cmn.KindUnauthorized, err, "connection: bearer token failed verification")
	}
	raw, _ := claims["scope"].(string)
	if raw == "" {
		return nil, nil
	}
	var scopes []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ' ' {
			if i > start {
				scopes = append(scopes, raw[start:i])
			}
			start = i + 1
		}
	}
	return scopes, nil
}

// RequireScope reports whether scopes contains want, the check a
// Query/Registration/Connection handler runs after ValidateToken
// succeeds (§7: "scope insufficient" -> Forbidden).
func RequireScope(scopes []string, want string) error {
	for _, s := range scopes {
		if s == want {
			return nil
		}
	}
	return cmn.Newf(cmn.KindForbidden, "connection: token scope %q required", want)
}
