package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/testutil"
)

// Any matches any argument value.
type Any struct{}

// Match satisfies sqlmock.Argument interface.
func (a Any) Match(v driver.Value) bool {
	return true
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func newSQLiteStore(t *testing.T) (Store, *gorm.DB) {
	gormDB := testutil.NewSQLiteDB(t)
	return NewGormStore(gormDB), gormDB
}

var t0 = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func openSession(equipmentID, memberID string, startedAt time.Time) *model.UsageSession {
	return &model.UsageSession{
		ID:            uuid.NewString(),
		EquipmentID:   equipmentID,
		MemberID:      memberID,
		StartedAt:     startedAt,
		AutoExpiresAt: startedAt.Add(3 * time.Hour),
	}
}

func waitingEntry(equipmentID, memberID string, position int) *model.QueueEntry {
	return &model.QueueEntry{
		ID:          uuid.NewString(),
		EquipmentID: equipmentID,
		MemberID:    memberID,
		Position:    position,
		State:       model.QueueWaiting,
		JoinedAt:    t0,
	}
}

func TestGormStore_GetEquipmentForUpdate_LocksOnPostgres(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "equipment" WHERE id = \$1 ORDER BY "equipment"."id" LIMIT \$2 FOR UPDATE`).
		WithArgs("tm-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "status"}).
			AddRow("tm-1", "Treadmill 1", "CARDIO", "AVAILABLE"))

	eq, err := s.GetEquipmentForUpdate(context.Background(), "tm-1")
	require.NoError(t, err)
	assert.Equal(t, model.EquipmentAvailable, eq.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CloseSession_ConditionalUpdate(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	ended := t0.Add(30 * time.Minute)
	sess := &model.UsageSession{ID: "sess-1", EndedAt: &ended, DurationSeconds: 1800, CaloriesBurned: 360}

	testCases := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "open session is closed", affected: 1, want: true},
		{name: "already closed session is left alone", affected: 0, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "usage_sessions" SET`) + `.*` +
				regexp.QuoteMeta(`WHERE id = $`) + `\d+` + regexp.QuoteMeta(` AND ended_at IS NULL`)).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))
			mock.ExpectCommit()

			closed, err := s.CloseSession(context.Background(), sess)
			require.NoError(t, err)
			assert.Equal(t, tc.want, closed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_TransitionQueueEntry_StoreError(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "queue_entries" SET`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	ok, err := s.TransitionQueueEntry(context.Background(), "q-1",
		[]model.QueueState{model.QueueWaiting}, QueueTransition{State: model.QueueCancelled})
	require.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetEquipment_NotFound(t *testing.T) {
	s, _ := newSQLiteStore(t)

	_, err := s.GetEquipment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_ListEquipment_FiltersCategory(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentAvailable)
	testutil.SeedEquipment(t, gormDB, "rack-1", model.CategoryStrength, model.EquipmentAvailable)

	all, err := s.ListEquipment(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cardio, err := s.ListEquipment(context.Background(), model.CategoryCardio)
	require.NoError(t, err)
	require.Len(t, cardio, 1)
	assert.Equal(t, "tm-1", cardio[0].ID)
}

func TestGormStore_AddUsageHours(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentAvailable)
	ctx := context.Background()

	require.NoError(t, s.AddUsageHours(ctx, "tm-1", 0.5))
	require.NoError(t, s.AddUsageHours(ctx, "tm-1", 0.25))

	eq, err := s.GetEquipment(ctx, "tm-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, eq.UsageHours, 1e-9)
}

func TestGormStore_UpdateEquipmentStatus_Missing(t *testing.T) {
	s, _ := newSQLiteStore(t)

	err := s.UpdateEquipmentStatus(context.Background(), "missing", model.EquipmentInUse)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_OneOpenSessionPerEquipment(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentAvailable)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, openSession("tm-1", "alice", t0)))

	err := s.CreateSession(ctx, openSession("tm-1", "bob", t0))
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	open, err := s.FindOpenSession(ctx, "tm-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "alice", open.MemberID)
}

func TestGormStore_CloseSession_OnlyOnce(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentAvailable)
	ctx := context.Background()

	sess := openSession("tm-1", "alice", t0)
	require.NoError(t, s.CreateSession(ctx, sess))

	ended := t0.Add(10 * time.Minute)
	sess.EndedAt = &ended
	sess.DurationSeconds = 600
	sess.CaloriesBurned = 120

	closed, err := s.CloseSession(ctx, sess)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = s.CloseSession(ctx, sess)
	require.NoError(t, err)
	assert.False(t, closed)

	open, err := s.FindOpenSession(ctx, "tm-1")
	require.NoError(t, err)
	assert.Nil(t, open)

	stored, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), stored.DurationSeconds)
	assert.Equal(t, 120, stored.CaloriesBurned)

	// A new session may open once the previous one is closed.
	require.NoError(t, s.CreateSession(ctx, openSession("tm-1", "bob", ended)))
}

func TestGormStore_ListExpiredSessions(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentInUse)
	testutil.SeedEquipment(t, gormDB, "tm-2", model.CategoryCardio, model.EquipmentInUse)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, openSession("tm-1", "alice", t0)))
	require.NoError(t, s.CreateSession(ctx, openSession("tm-2", "bob", t0.Add(time.Hour))))

	expired, err := s.ListExpiredSessions(ctx, t0.Add(3*time.Hour+time.Second))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "tm-1", expired[0].EquipmentID)
}

func TestGormStore_OneActiveEntryPerMember(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentInUse)
	ctx := context.Background()

	first := waitingEntry("tm-1", "alice", 1)
	require.NoError(t, s.CreateQueueEntry(ctx, first))

	err := s.CreateQueueEntry(ctx, waitingEntry("tm-1", "alice", 2))
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	// Terminal entries do not count.
	ok, err := s.TransitionQueueEntry(ctx, first.ID, model.ActiveQueueStates, QueueTransition{State: model.QueueCancelled})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.CreateQueueEntry(ctx, waitingEntry("tm-1", "alice", 1)))
}

func TestGormStore_QueueOrderingAndShift(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentInUse)
	ctx := context.Background()

	maxPos, err := s.MaxWaitingPosition(ctx, "tm-1")
	require.NoError(t, err)
	assert.Equal(t, 0, maxPos)

	members := []string{"a", "b", "c", "d"}
	entries := make([]*model.QueueEntry, len(members))
	for i, m := range members {
		entries[i] = waitingEntry("tm-1", m, i+1)
		require.NoError(t, s.CreateQueueEntry(ctx, entries[i]))
	}

	maxPos, err = s.MaxWaitingPosition(ctx, "tm-1")
	require.NoError(t, err)
	assert.Equal(t, 4, maxPos)

	// Promote the head, then close the gap.
	notifiedAt := t0.Add(time.Minute)
	deadline := notifiedAt.Add(5 * time.Minute)
	ok, err := s.TransitionQueueEntry(ctx, entries[0].ID, []model.QueueState{model.QueueWaiting}, QueueTransition{
		State:          model.QueueNotified,
		NotifiedAt:     &notifiedAt,
		ClaimExpiresAt: &deadline,
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.ShiftPositionsAfter(ctx, "tm-1", entries[0].Position))

	// A second transition from WAITING must not apply.
	ok, err = s.TransitionQueueEntry(ctx, entries[0].ID, []model.QueueState{model.QueueWaiting}, QueueTransition{State: model.QueueCancelled})
	require.NoError(t, err)
	assert.False(t, ok)

	queue, err := s.ListActiveQueue(ctx, "tm-1")
	require.NoError(t, err)
	require.Len(t, queue, 4)
	assert.Equal(t, model.QueueNotified, queue[0].State)
	assert.Equal(t, "a", queue[0].MemberID)
	for i, e := range queue[1:] {
		assert.Equal(t, model.QueueWaiting, e.State)
		assert.Equal(t, i+1, e.Position)
		assert.Equal(t, members[i+1], e.MemberID)
	}

	head, err := s.HeadWaiting(ctx, "tm-1")
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "b", head.MemberID)

	notified, err := s.FindNotifiedEntry(ctx, "tm-1")
	require.NoError(t, err)
	require.NotNil(t, notified)
	assert.Equal(t, entries[0].ID, notified.ID)

	expired, err := s.ListExpiredClaims(ctx, deadline.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, entries[0].ID, expired[0].ID)

	expired, err = s.ListExpiredClaims(ctx, deadline.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestGormStore_WithTx_RollsBack(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentAvailable)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		if err := s.UpdateEquipmentStatus(ctx, "tm-1", model.EquipmentInUse); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return s.WithTx(ctx, func(ctx context.Context) error {
			if err := s.CreateSession(ctx, openSession("tm-1", "alice", t0)); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	eq, err := s.GetEquipment(ctx, "tm-1")
	require.NoError(t, err)
	assert.Equal(t, model.EquipmentAvailable, eq.Status)

	open, err := s.FindOpenSession(ctx, "tm-1")
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestGormStore_CompletedQueueEntries(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	testutil.SeedEquipment(t, gormDB, "tm-1", model.CategoryCardio, model.EquipmentInUse)
	ctx := context.Background()

	recent := waitingEntry("tm-1", "a", 1)
	old := waitingEntry("tm-1", "b", 2)
	require.NoError(t, s.CreateQueueEntry(ctx, recent))
	require.NoError(t, s.CreateQueueEntry(ctx, old))

	recentAt := t0.Add(10 * time.Minute)
	oldAt := t0.Add(-10 * 24 * time.Hour)
	_, err := s.TransitionQueueEntry(ctx, recent.ID, model.ActiveQueueStates, QueueTransition{State: model.QueueCompleted, ResolvedAt: &recentAt})
	require.NoError(t, err)
	_, err = s.TransitionQueueEntry(ctx, old.ID, model.ActiveQueueStates, QueueTransition{State: model.QueueCompleted, ResolvedAt: &oldAt})
	require.NoError(t, err)

	done, err := s.CompletedQueueEntries(ctx, "tm-1", t0.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, recent.ID, done[0].ID)
}
