package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Helper to generate fresh keys for each test
func generateTestKeys(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return privateKey, pubPEM
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func validClaims(issuer string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role:     string(RoleBidder),
		SchoolID: uuid.New().String(),
	}
}

func TestVerifyToken(t *testing.T) {
	key, pubPEM := generateTestKeys(t)
	verifier, err := NewVerifier(pubPEM, "test-issuer")
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	claims := validClaims("test-issuer")
	principal, err := verifier.VerifyToken(signToken(t, key, claims))
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if principal.UserID.String() != claims.Subject {
		t.Errorf("got user %s, want %s", principal.UserID, claims.Subject)
	}
	if principal.Role != RoleBidder {
		t.Errorf("got role %s, want bidder", principal.Role)
	}
	if principal.SchoolID.String() != claims.SchoolID {
		t.Errorf("got school %s, want %s", principal.SchoolID, claims.SchoolID)
	}
}

func TestVerifyTokenSecurity(t *testing.T) {
	key, pubPEM := generateTestKeys(t)
	verifier, _ := NewVerifier(pubPEM, "test-issuer")

	t.Run("Rejects Expired Token", func(t *testing.T) {
		claims := validClaims("test-issuer")
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))

		if _, err := verifier.VerifyToken(signToken(t, key, claims)); err == nil {
			t.Error("VerifyToken should have rejected expired token")
		}
	})

	t.Run("Rejects Missing Expiration", func(t *testing.T) {
		claims := validClaims("test-issuer")
		claims.ExpiresAt = nil

		if _, err := verifier.VerifyToken(signToken(t, key, claims)); err == nil {
			t.Error("VerifyToken should have rejected token without exp")
		}
	})

	t.Run("Rejects Wrong Issuer", func(t *testing.T) {
		claims := validClaims("someone-else")

		if _, err := verifier.VerifyToken(signToken(t, key, claims)); err == nil {
			t.Error("VerifyToken should have rejected wrong issuer")
		}
	})

	t.Run("Rejects Wrong Key Signature", func(t *testing.T) {
		attackerKey, _ := generateTestKeys(t)
		claims := validClaims("test-issuer")

		if _, err := verifier.VerifyToken(signToken(t, attackerKey, claims)); err == nil {
			t.Error("VerifyToken should have rejected token signed by wrong key")
		}
	})

	t.Run("Rejects HMAC Algorithm Confusion", func(t *testing.T) {
		// Simulates an attacker switching RS256 to HS256 with the public
		// key bytes as the HMAC secret.
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("test-issuer"))
		tokenString, _ := token.SignedString([]byte("some-secret"))

		_, err := verifier.VerifyToken(tokenString)
		if err == nil {
			t.Error("VerifyToken should have rejected HS256 algorithm")
		}
		if !strings.Contains(err.Error(), "unexpected signing method") {
			t.Errorf("Expected signing method error, got: %v", err)
		}
	})

	t.Run("Rejects Unknown Role", func(t *testing.T) {
		claims := validClaims("test-issuer")
		claims.Role = "superuser"

		if _, err := verifier.VerifyToken(signToken(t, key, claims)); err == nil {
			t.Error("VerifyToken should have rejected unknown role")
		}
	})

	t.Run("Rejects Malformed Token", func(t *testing.T) {
		if _, err := verifier.VerifyToken("this.is.garbage"); err == nil {
			t.Error("Should reject malformed string")
		}
	})
}

func TestNewVerifierValidation(t *testing.T) {
	t.Run("Fails on invalid PEM", func(t *testing.T) {
		if _, err := NewVerifier([]byte("not-a-pem"), "test-issuer"); err == nil {
			t.Error("Should fail on invalid public key")
		}
	})
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"bidder", "artist", "admin"} {
		if _, err := ParseRole(valid); err != nil {
			t.Errorf("ParseRole(%q) failed: %v", valid, err)
		}
	}
	if _, err := ParseRole("teacher"); err == nil {
		t.Error("ParseRole should reject unknown roles")
	}
}
