package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the closed set of principal roles the platform issues.
type Role string

const (
	RoleBidder Role = "bidder"
	RoleArtist Role = "artist"
	RoleAdmin  Role = "admin"
)

// ParseRole maps a token claim to a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBidder, RoleArtist, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated caller as asserted by the identity
// provider. The bidding core trusts these values and never re-derives them.
type Principal struct {
	UserID   uuid.UUID
	Role     Role
	SchoolID uuid.UUID
}

// Claims is the token payload issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	SchoolID string `json:"school_id"`
}

// Verifier validates tokens signed by the identity provider.
// This service only validates, it never signs.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewVerifier creates a Verifier from a PEM-encoded RSA public key.
func NewVerifier(publicKeyPEM []byte, issuer string) (*Verifier, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to parse public key PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}

	return &Verifier{
		publicKey: rsaPub,
		issuer:    issuer,
	}, nil
}

// VerifyToken validates the signed token and maps its claims to a Principal.
func (v *Verifier) VerifyToken(tokenString string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}
	schoolID, err := uuid.Parse(claims.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("invalid school_id claim: %w", err)
	}

	return &Principal{
		UserID:   userID,
		Role:     role,
		SchoolID: schoolID,
	}, nil
}
