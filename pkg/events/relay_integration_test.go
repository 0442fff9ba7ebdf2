//go:build integration

package events_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/easelbid/easelbid/internal/adapters/database"
	"github.com/easelbid/easelbid/internal/domain/bidding"
	pkgdb "github.com/easelbid/easelbid/pkg/database"
	pkgevents "github.com/easelbid/easelbid/pkg/events"
	"github.com/easelbid/easelbid/pkg/testhelpers"
)

const exchange = "auction.events"

// TestRelayIntegrationWithRabbitMQ drives a pending outbox row through the
// relay into a real RabbitMQ container.
func TestRelayIntegrationWithRabbitMQ(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err)
	defer func() {
		if termErr := rabbitmqContainer.Terminate(ctx); termErr != nil {
			t.Fatalf("failed to terminate container: %s", termErr)
		}
	}()

	amqpURL, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	dbPool := testDB.Pool

	pubConn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer pubConn.Close()

	rabbitPublisher, err := pkgevents.NewRabbitMQPublisher(pubConn, exchange)
	require.NoError(t, err)
	defer rabbitPublisher.Close()

	txManager := pkgdb.NewPostgresTransactionManager(dbPool, time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(dbPool)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		10,
		50*time.Millisecond,
		exchange,
		logger,
	)

	// Separate consumer connection to verify delivery.
	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	require.NoError(t, err)

	q, err := ch.QueueDeclare("", false, false, true, false, nil)
	require.NoError(t, err)

	err = ch.QueueBind(q.Name, bidding.EventTypeBidPlaced, exchange, false, nil)
	require.NoError(t, err)

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	eventID := uuid.New()
	expectedPayload := []byte(`{"test":"integration"}`)
	_, err = dbPool.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, eventID, bidding.EventTypeBidPlaced, expectedPayload, pkgevents.OutboxStatusPending, time.Now())
	require.NoError(t, err)

	ctxRelay, cancelRelay := context.WithCancel(ctx)
	go func() {
		_ = relay.Run(ctxRelay)
	}()
	defer cancelRelay()

	select {
	case msg := <-msgs:
		assert.Equal(t, expectedPayload, msg.Body)
		assert.Equal(t, bidding.EventTypeBidPlaced, msg.RoutingKey)
	case <-time.After(10 * time.Second):
		t.Fatal("Timeout waiting for message from RabbitMQ")
	}

	require.Eventually(t, func() bool {
		var status string
		err = dbPool.QueryRow(ctx, "SELECT status FROM outbox_events WHERE id = $1", eventID).Scan(&status)
		if err != nil {
			return false
		}
		return status == string(pkgevents.OutboxStatusPublished)
	}, 2*time.Second, 100*time.Millisecond, "Event status should be updated to 'published'")
}
