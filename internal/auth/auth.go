// Package auth builds the Authorization header used for every call to the
// review service.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Scheme names how the secret is presented to the review service
type Scheme string

const (
	// SchemeBasic sends a personal access token as basic credentials with an empty user name
	SchemeBasic Scheme = "Basic"
	// SchemeBearer sends a job or OAuth token verbatim
	SchemeBearer Scheme = "Bearer"
)

// ErrEmptySecret is returned when a credential has no secret value
var ErrEmptySecret = errors.New("auth: empty secret")

// ParseScheme accepts "basic"/"pat" and "bearer"/"oauth" in any casing.
// An empty value selects Basic.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic", "pat":
		return SchemeBasic, nil
	case "bearer", "oauth", "systemaccesstoken":
		return SchemeBearer, nil
	default:
		return "", fmt.Errorf("auth: unknown scheme %q (expected Basic or Bearer)", s)
	}
}

// Credential is a secret plus the scheme it is presented with.
// It must never be logged; String masks the secret.
type Credential struct {
	secret string
	scheme Scheme
}

// NewCredential validates and builds a credential
func NewCredential(secret string, scheme Scheme) (Credential, error) {
	if secret == "" {
		return Credential{}, ErrEmptySecret
	}
	if scheme != SchemeBasic && scheme != SchemeBearer {
		return Credential{}, fmt.Errorf("auth: unsupported scheme %q", scheme)
	}
	return Credential{secret: secret, scheme: scheme}, nil
}

// Scheme returns the credential's scheme
func (c Credential) Scheme() Scheme { return c.scheme }

// Secret returns the raw secret for handing to a child process environment
func (c Credential) Secret() string { return c.secret }

// IsZero reports whether the credential was never set
func (c Credential) IsZero() bool { return c.secret == "" }

// String never reveals the secret
func (c Credential) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return string(c.scheme) + " ****"
}

// Header returns the header map for this credential
func (c Credential) Header() http.Header {
	return Header(c.secret, c.scheme)
}

// Apply sets the Authorization header on a request
func (c Credential) Apply(req *http.Request) {
	req.Header.Set("Authorization", authorizationValue(c.secret, c.scheme))
}

// Header maps a secret and scheme to the Authorization header.
// Basic encodes ":"+secret, Bearer passes the secret through.
func Header(secret string, scheme Scheme) http.Header {
	h := make(http.Header)
	h.Set("Authorization", authorizationValue(secret, scheme))
	return h
}

func authorizationValue(secret string, scheme Scheme) string {
	if scheme == SchemeBearer {
		return "Bearer " + secret
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+secret))
}
