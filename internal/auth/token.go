package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose distinguishes what a token may be used for.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeReset   Purpose = "reset"
)

// Purposes returns every purpose the issuer knows about.
func Purposes() []Purpose {
	return []Purpose{PurposeAccess, PurposeRefresh, PurposeReset}
}

// ErrPurposeMismatch is returned by Parse when a valid token was issued for a
// different purpose.
var ErrPurposeMismatch = errors.New("token purpose mismatch")

// Claims are the JWT claims carried by every token.
type Claims struct {
	UserID  string  `json:"uid"`
	Purpose Purpose `json:"purpose"`
	// Stamp binds a token to the password it was issued against.
	Stamp string `json:"stm,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig is the signing configuration handed to NewTokenIssuer.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    map[Purpose]time.Duration
}

// TokenIssuer signs and parses HS256 tokens. It is safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    map[Purpose]time.Duration
	now    func() time.Time
}

// NewTokenIssuer validates cfg and returns an issuer. Every known purpose needs
// a positive TTL.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token issuer: secret is required")
	}
	ttl := make(map[Purpose]time.Duration, len(Purposes()))
	for _, p := range Purposes() {
		d, ok := cfg.TTL[p]
		if !ok || d <= 0 {
			return nil, fmt.Errorf("token issuer: %s token TTL must be positive", p)
		}
		ttl[p] = d
	}
	return &TokenIssuer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs one token per requested purpose for subjectID.
func (i *TokenIssuer) Issue(subjectID string, purposes ...Purpose) (map[Purpose]string, error) {
	return i.IssueStamped(subjectID, "", purposes...)
}

// IssueStamped is Issue with a password stamp carried in every token.
func (i *TokenIssuer) IssueStamped(subjectID, stamp string, purposes ...Purpose) (map[Purpose]string, error) {
	tokens := make(map[Purpose]string, len(purposes))
	for _, p := range purposes {
		ttl, ok := i.ttl[p]
		if !ok {
			return nil, fmt.Errorf("unknown token purpose %q", p)
		}

		now := i.now().UTC()
		claims := &Claims{
			UserID:  subjectID,
			Purpose: p,
			Stamp:   stamp,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   subjectID,
				Issuer:    i.issuer,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
		}

		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
		if err != nil {
			return nil, fmt.Errorf("sign %s token: %w", p, err)
		}
		tokens[p] = signed
	}
	return tokens, nil
}

// Parse verifies the signature and expiry of token and checks that it was
// issued for want.
func (i *TokenIssuer) Parse(token string, want Purpose) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse %s token: %w", want, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid %s token claims", want)
	}
	if claims.Purpose != want {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrPurposeMismatch, claims.Purpose, want)
	}
	return claims, nil
}
