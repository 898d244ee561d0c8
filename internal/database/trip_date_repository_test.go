package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tripDateTestColumns = []string{
	"id", "trip_id", "starts_at", "ends_at",
	"capacity_total", "capacity_occupied", "state", "price_override",
	"trip_name", "base_price", "max_participants",
	"created_at", "updated_at",
}

func tripDateRow(id uuid.UUID, total, occupied int, state string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tripDateTestColumns).AddRow(
		id, uuid.New(), now.Add(24*time.Hour), now.Add(48*time.Hour),
		total, occupied, state, nil,
		"Volcano Hike", 120.0, nil,
		now, now,
	)
}

func TestGetTripDateByID(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDb.Close()

	db := sqlx.NewDb(mockDb, "sqlmock")
	repo := NewTripDateRepository(db)

	t.Run("Success", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM trip_dates td`).
			WithArgs(id).
			WillReturnRows(tripDateRow(id, 10, 4, "available"))

		td, err := repo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, id, td.ID)
		assert.Equal(t, 6, td.SeatsAvailable())
		assert.Equal(t, 120.0, td.UnitPrice())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM trip_dates td`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(tripDateTestColumns))

		_, err := repo.GetByID(id)
		assert.ErrorIs(t, err, models.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLockTripDateForUpdate(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDb.Close()

	db := sqlx.NewDb(mockDb, "sqlmock")
	repo := NewTripDateRepository(db)

	t.Run("Success", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FOR UPDATE OF td NOWAIT`).
			WithArgs(id).
			WillReturnRows(tripDateRow(id, 10, 10, "full"))
		mock.ExpectRollback()

		tx, err := db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()

		td, err := repo.LockForUpdate(tx, id)
		require.NoError(t, err)
		assert.Equal(t, models.TripDateFull, td.State)
	})

	t.Run("Lock Contention", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FOR UPDATE OF td NOWAIT`).
			WithArgs(id).
			WillReturnError(&pq.Error{Code: "55P03"})
		mock.ExpectRollback()

		tx, err := db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()

		_, err = repo.LockForUpdate(tx, id)
		assert.ErrorIs(t, err, models.ErrConcurrencyConflict)
	})

	t.Run("Not Found", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FOR UPDATE OF td NOWAIT`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(tripDateTestColumns))
		mock.ExpectRollback()

		tx, err := db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()

		_, err = repo.LockForUpdate(tx, id)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestUpdateOccupancy(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDb.Close()

	db := sqlx.NewDb(mockDb, "sqlmock")
	repo := NewTripDateRepository(db)

	t.Run("Success", func(t *testing.T) {
		td := &models.TripDate{
			ID:               uuid.New(),
			CapacityOccupied: 7,
			State:            models.TripDateAvailable,
		}

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trip_dates`).
			WithArgs(7, models.TripDateAvailable, td.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Beginx()
		require.NoError(t, err)

		require.NoError(t, repo.UpdateOccupancy(tx, td))
		require.NoError(t, tx.Commit())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Row Vanished", func(t *testing.T) {
		td := &models.TripDate{ID: uuid.New(), State: models.TripDateAvailable}

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trip_dates`).
			WithArgs(0, models.TripDateAvailable, td.ID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()

		assert.ErrorIs(t, repo.UpdateOccupancy(tx, td), models.ErrNotFound)
	})

	t.Run("Database Error", func(t *testing.T) {
		td := &models.TripDate{ID: uuid.New(), State: models.TripDateAvailable}

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trip_dates`).
			WillReturnError(fmt.Errorf("database error"))
		mock.ExpectRollback()

		tx, err := db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()

		err = repo.UpdateOccupancy(tx, td)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update trip date occupancy")
	})
}
