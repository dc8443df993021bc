package address

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionRepository_RegionExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRegionRepository(db)

	t.Run("Known region", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("Ghana", "Greater Accra").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		ok, err := repo.RegionExists(context.Background(), "Ghana", "Greater Accra")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Unknown region", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("Ghana", "Atlantis").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		ok, err := repo.RegionExists(context.Background(), "Ghana", "Atlantis")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnError(errors.New("db error"))

		_, err := repo.RegionExists(context.Background(), "Ghana", "Volta")
		assert.ErrorIs(t, err, apperror.ErrPersistence)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipping_Normalize(t *testing.T) {
	email := "  "
	notes := " leave at gate "
	s := Shipping{
		FullName: "  Ama Mensah ",
		Phone:    " 0240000000",
		Email:    &email,
		Address:  " 12 Ring Rd ",
		City:     "Accra ",
		Region:   " Greater Accra",
		Country:  "Ghana",
		Notes:    &notes,
	}

	s.Normalize()

	assert.Equal(t, "Ama Mensah", s.FullName)
	assert.Equal(t, "0240000000", s.Phone)
	assert.Nil(t, s.Email)
	assert.Equal(t, "12 Ring Rd", s.Address)
	assert.Equal(t, "Accra", s.City)
	assert.Equal(t, "Greater Accra", s.Region)
	require.NotNil(t, s.Notes)
	assert.Equal(t, "leave at gate", *s.Notes)
}
