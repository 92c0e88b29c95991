package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/pkg/db/dbtest"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/outbox"
)

func TestEmitWritesEnvelopeInsideTx(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, logger.Nop())
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]string{"order_id": orderID.String()},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, orderID, rows[0].AggregateID)

	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	require.Equal(t, outbox.CurrentVersion, env.Version)
	require.NotEmpty(t, env.EventID)
	require.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(env.Data))
}

func TestEmitRolledBackWithTx(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	pending, err := outbox.NewRepository(conn).CountPending()
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestEmitRejectsMissingTxAndUnknownType(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, outbox.DomainEvent{EventType: enums.EventOrderCreated}))
	require.Error(t, svc.Emit(context.Background(), conn, outbox.DomainEvent{EventType: "nope"}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, repo.Insert(conn, models.OutboxEvent{
			ID:            id,
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}))
	}

	require.NoError(t, repo.MarkPublishedTx(conn, ids[0]))
	require.NoError(t, repo.MarkFailedTx(conn, ids[1], errors.New("transient")))
	require.NoError(t, repo.MarkTerminalTx(conn, ids[2], errors.New("bad payload"), 3))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, ids[1], rows[0].ID)
	require.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	require.Equal(t, "transient", *rows[0].LastError)
	require.False(t, rows[0].Settled(3))

	var parked models.OutboxEvent
	require.NoError(t, conn.First(&parked, "id = ?", ids[2]).Error)
	require.True(t, parked.Settled(3))

	pending, err := repo.CountPending()
	require.NoError(t, err)
	require.EqualValues(t, 2, pending)
}

func TestDeleteSettledBeforeKeepsPendingAndRecentRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	insert := func(createdAt time.Time, attempts int, published bool) uuid.UUID {
		event := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     createdAt,
			AttemptCount:  attempts,
		}
		if published {
			at := createdAt.Add(time.Second)
			event.PublishedAt = &at
		}
		require.NoError(t, repo.Insert(conn, event))
		return event.ID
	}

	insert(old, 0, true)
	insert(old, 10, false)
	pendingOld := insert(old, 2, false)
	recentPublished := insert(recent, 0, true)

	deleted, err := repo.DeleteSettledBefore(conn, cutoff, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Order("created_at").Pluck("id", &remaining).Error)
	require.ElementsMatch(t, []uuid.UUID{pendingOld, recentPublished}, remaining)
}
