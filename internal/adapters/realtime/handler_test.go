package realtime

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelbid/easelbid/pkg/auth"
	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

// Every channel family the notifier publishes must be bridged, or events
// are published into the void.
func TestSubscriptionPatternsCoverNotifierTopics(t *testing.T) {
	id := uuid.New()
	topics := []string{
		pkgevents.LotTopic(id),
		pkgevents.AuctionTopic(id),
		pkgevents.UserTopic(id),
	}

	for _, topic := range topics {
		matched := false
		for _, pattern := range subscriptionPatterns {
			if strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*")) {
				matched = true
				break
			}
		}
		assert.True(t, matched, "no subscription pattern matches topic %q", topic)
	}
}

func testVerifier(t *testing.T) (*rsa.PrivateKey, *auth.Verifier) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	verifier, err := auth.NewVerifier(pubPEM, "test-issuer")
	require.NoError(t, err)
	return key, verifier
}

func signToken(t *testing.T, key *rsa.PrivateKey, userID uuid.UUID) string {
	t.Helper()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role:     string(auth.RoleBidder),
		SchoolID: uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestUserChannelRequiresMatchingPrincipal(t *testing.T) {
	key, verifier := testVerifier(t)
	hub := NewHub(slog.New(slog.DiscardHandler))
	go hub.Run()

	srv := httptest.NewServer(NewHandler(hub, verifier, slog.New(slog.DiscardHandler)).Routes())
	defer srv.Close()

	userID := uuid.New()

	// No token.
	resp, err := http.Get(srv.URL + "/ws/users/" + userID.String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A principal may not watch someone else's channel.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/ws/users/"+userID.String(), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, uuid.New()))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUserChannelDeliversBroadcasts(t *testing.T) {
	key, verifier := testVerifier(t)
	hub := NewHub(slog.New(slog.DiscardHandler))
	go hub.Run()

	srv := httptest.NewServer(NewHandler(hub, verifier, slog.New(slog.DiscardHandler)).Routes())
	defer srv.Close()

	userID := uuid.New()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/users/" + userID.String()
	header := http.Header{"Authorization": {"Bearer " + signToken(t, key, userID)}}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	resp.Body.Close()

	// Registration races the dial response, so keep broadcasting until the
	// client hears one.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				hub.Broadcast("user:"+userID.String(), []byte(`{"type":"bid.outbid"}`))
				time.Sleep(20 * time.Millisecond)
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"bid.outbid"}`, string(msg))
}
