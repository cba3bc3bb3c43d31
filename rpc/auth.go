package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"stakevault/crypto"
	"stakevault/native/common"
)

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   []string
	ClockSkew  time.Duration
}

// Caller is the identity carried by a verified token. Sender is the token
// subject; Origin defaults to Sender when the token carries no origin claim.
type Caller struct {
	Sender [20]byte
	Origin [20]byte
}

// Context converts the caller into the ledger call context.
func (c Caller) Context() common.Context {
	return common.Context{Sender: c.Sender, Origin: c.Origin}
}

type callerClaims struct {
	Origin string `json:"origin,omitempty"`
	jwt.RegisteredClaims
}

type callerKey struct{}

// CallerFromContext returns the caller attached by the auth middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok
}

var (
	errMissingBearer    = errors.New("missing bearer token")
	errSecretMissing    = errors.New("auth secret not configured")
	errAudienceMismatch = errors.New("audience mismatch")
)

// Authenticator verifies HMAC signed JWTs and resolves them into callers.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
}

func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	secret := []byte(strings.TrimSpace(cfg.HMACSecret))
	if len(secret) == 0 {
		return nil, errSecretMissing
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = time.Minute
	}
	return &Authenticator{cfg: cfg, secret: secret}, nil
}

// Authenticate resolves the bearer token carried by r.
func (a *Authenticator) Authenticate(r *http.Request) (Caller, error) {
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return Caller{}, errMissingBearer
	}
	return a.parse(tokenString)
}

func (a *Authenticator) parse(tokenString string) (Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer := strings.TrimSpace(a.cfg.Issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &callerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Caller{}, err
	}
	if !token.Valid {
		return Caller{}, errors.New("token invalid")
	}
	if !audienceMatches(claims.Audience, a.cfg.Audience) {
		return Caller{}, errAudienceMismatch
	}
	sender, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return Caller{}, fmt.Errorf("subject: %w", err)
	}
	caller := Caller{Sender: sender, Origin: sender}
	if strings.TrimSpace(claims.Origin) != "" {
		origin, err := crypto.ParseAddress(claims.Origin)
		if err != nil {
			return Caller{}, fmt.Errorf("origin: %w", err)
		}
		caller.Origin = origin
	}
	return caller, nil
}

func audienceMatches(have jwt.ClaimStrings, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, candidate := range have {
		for _, allowed := range want {
			if candidate == allowed {
				return true
			}
		}
	}
	return false
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// TokenRequest describes a token minted by IssueToken.
type TokenRequest struct {
	Secret   string
	Issuer   string
	Audience []string
	Subject  [20]byte
	Origin   [20]byte
	TTL      time.Duration
	Now      time.Time
}

// IssueToken mints an HS256 token accepted by an Authenticator sharing the
// same secret.
func IssueToken(req TokenRequest) (string, error) {
	secret := strings.TrimSpace(req.Secret)
	if secret == "" {
		return "", errSecretMissing
	}
	if req.Subject == ([20]byte{}) {
		return "", errors.New("subject required")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := callerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    req.Issuer,
			Subject:   crypto.FormatAddress(req.Subject),
			Audience:  jwt.ClaimStrings(req.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if req.Origin != ([20]byte{}) && req.Origin != req.Subject {
		claims.Origin = crypto.FormatAddress(req.Origin)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
