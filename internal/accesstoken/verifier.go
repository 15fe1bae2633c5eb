// Package accesstoken verifies the assertion an access-control proxy (Cloudflare
// Access style) attaches to admin requests and resolves the caller identity.
package accesstoken

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// AssertionHeader carries the signed identity assertion set by the proxy.
	AssertionHeader = "Cf-Access-Jwt-Assertion"
	// AssertionCookie is the browser cookie fallback for the same assertion.
	AssertionCookie = "CF_Authorization"

	defaultLeeway       = 30 * time.Second
	defaultJWKSCacheTTL = 5 * time.Minute
)

var (
	// ErrMissingAssertion means the request carried no access assertion at all.
	ErrMissingAssertion = errors.New("access assertion missing")
	// ErrNotAllowed means the assertion is valid but the email is not an administrator.
	ErrNotAllowed = errors.New("identity not allowed")

	errUnknownKey = errors.New("unknown token key")
)

// Identity is the verified caller behind an access assertion.
type Identity struct {
	Email   string
	Subject string
}

// Config configures access assertion verification.
type Config struct {
	// JWKSURL is the certs endpoint, e.g. https://<team>.cloudflareaccess.com/cdn-cgi/access/certs.
	JWKSURL  string
	Issuer   string
	Audience string
	// AllowedEmails restricts admin access further; empty trusts every verified identity.
	AllowedEmails []string
	Leeway        time.Duration
	HTTPClient    *http.Client
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates access assertions (RS256 + JWKS).
type Verifier struct {
	issuer   string
	audience string
	leeway   time.Duration
	allowed  map[string]struct{}
	keys     *keyCache
}

// NewVerifier creates an assertion verifier and loads the signing keys once.
func NewVerifier(cfg Config) (*Verifier, error) {
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, errors.New("access verifier requires audience")
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}

	v := &Verifier{
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: audience,
		leeway:   leeway,
	}
	if len(cfg.AllowedEmails) > 0 {
		v.allowed = make(map[string]struct{}, len(cfg.AllowedEmails))
		for _, email := range cfg.AllowedEmails {
			email = strings.ToLower(strings.TrimSpace(email))
			if email != "" {
				v.allowed[email] = struct{}{}
			}
		}
	}

	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, errors.New("access verifier requires jwksURL")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	v.keys = &keyCache{url: jwksURL, client: client}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := v.keys.refresh(ctx, 0); err != nil {
		return nil, err
	}

	return v, nil
}

// AssertionFromRequest returns the raw assertion from the header or the cookie fallback.
func AssertionFromRequest(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get(AssertionHeader)); raw != "" {
		return raw
	}
	if c, err := r.Cookie(AssertionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// VerifyRequest verifies the assertion attached to r.
func (v *Verifier) VerifyRequest(r *http.Request) (Identity, error) {
	raw := AssertionFromRequest(r)
	if raw == "" {
		return Identity{}, ErrMissingAssertion
	}
	return v.verify(r.Context(), raw)
}

// Verify validates the assertion and returns the caller identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	return v.verify(context.Background(), token)
}

func (v *Verifier) verify(ctx context.Context, token string) (Identity, error) {
	claims, err := v.parse(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return Identity{}, errors.New("assertion email missing")
	}
	if v.allowed != nil {
		if _, ok := v.allowed[email]; !ok {
			return Identity{}, ErrNotAllowed
		}
	}
	return Identity{Email: email, Subject: strings.TrimSpace(claims.Subject)}, nil
}

// parse checks the signature and claims. An unknown kid or an expired key set
// triggers one refetch of the certs before giving up.
func (v *Verifier) parse(ctx context.Context, token string) (accessClaims, error) {
	var seenGen uint64
	missing := false
	keyfunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, gen, ok := v.keys.lookup(strings.TrimSpace(kid))
		seenGen = gen
		if !ok {
			missing = true
			return nil, errUnknownKey
		}
		return key, nil
	}

	claims, err := v.parseWith(token, keyfunc)
	if err == nil {
		return claims, nil
	}
	if !missing && !v.keys.stale() {
		return claims, err
	}
	if err := v.keys.refresh(ctx, seenGen); err != nil {
		return accessClaims{}, err
	}
	return v.parseWith(token, keyfunc)
}

func (v *Verifier) parseWith(token string, keyfunc jwt.Keyfunc) (accessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims accessClaims
	if _, err := jwt.ParseWithClaims(token, &claims, keyfunc, opts...); err != nil {
		return accessClaims{}, err
	}
	return claims, nil
}
