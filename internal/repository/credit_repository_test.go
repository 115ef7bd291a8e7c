package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trainer-booking/internal/model"
)

func TestCreditRepo_ActivePackagesForUpdateTx(t *testing.T) {
	db, mock := newMockDB(t)
	tx := beginTx(t, db, mock)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := created.AddDate(0, 3, 0)

	mock.ExpectQuery(`FROM client_packages\s+WHERE client_id = \? AND status = 'active'\s+ORDER BY expires_at IS NULL, expires_at, created_at\s+FOR UPDATE`).
		WithArgs("cl-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "client_id", "package_id", "sessions_total", "sessions_used", "expires_at", "status", "created_at",
		}).
			AddRow("pk-1", "cl-1", "ten-pack", 10, 3, expires, "active", created).
			AddRow("pk-2", "cl-1", "five-pack", 5, 0, nil, "active", created))

	pkgs, err := NewCreditRepo(db).ActivePackagesForUpdateTx(context.Background(), tx, "cl-1")
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, 7, pkgs[0].SessionsRemaining())
	require.NotNil(t, pkgs[0].ExpiresAt)
	assert.Nil(t, pkgs[1].ExpiresAt)
	assert.Equal(t, model.PackageActive, pkgs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_ConsumeTx(t *testing.T) {
	t.Run("guard matched", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(`UPDATE client_packages\s+SET sessions_used = sessions_used \+ \?`).
			WithArgs(1, "pk-1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, NewCreditRepo(db).ConsumeTx(context.Background(), tx, "pk-1", 1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient remaining", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(`UPDATE client_packages`).
			WithArgs(2, "pk-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewCreditRepo(db).ConsumeTx(context.Background(), tx, "pk-1", 2)
		assert.True(t, errors.Is(err, ErrConflict))
	})
}

func TestCreditRepo_RestoreTx(t *testing.T) {
	db, mock := newMockDB(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec(`(?s)SET sessions_used = sessions_used - \?.*WHERE id = \? AND sessions_used >= \?`).
		WithArgs(1, "pk-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewCreditRepo(db).RestoreTx(context.Background(), tx, "pk-1", 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_UsageByBookingTx(t *testing.T) {
	db, mock := newMockDB(t)
	tx := beginTx(t, db, mock)
	mock.ExpectQuery(`FROM credit_usages WHERE booking_id = \? FOR UPDATE`).
		WithArgs("bk-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_package_id", "booking_id", "credits_used", "created_at"}))

	_, err := NewCreditRepo(db).UsageByBookingTx(context.Background(), tx, "bk-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditRepo_CreateUsageTxDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	tx := beginTx(t, db, mock)
	mock.ExpectExec(`INSERT INTO credit_usages`).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	err := NewCreditRepo(db).CreateUsageTx(context.Background(), tx, &model.CreditUsage{
		ID: "u-1", ClientPackageID: "pk-1", BookingID: "bk-1", CreditsUsed: 1, CreatedAt: time.Now(),
	})
	assert.True(t, errors.Is(err, ErrConflict))
}
