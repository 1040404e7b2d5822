package harvests

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestFindForUpdateLocksRow(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	id := uuid.New()
	seller := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "harvests" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_id", "title"}).AddRow(id.String(), seller.String(), "Leeks"))

	harvest, err := NewRepository(conn).FindForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, harvest.ID)
	assert.Equal(t, seller, harvest.SellerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
