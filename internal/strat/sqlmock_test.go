package strat

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddNoteSurfacesInsertFailure exercises the SQL error path with a
// mocked driver, which a real-file integration test cannot trigger on
// demand.
func TestAddNoteSurfacesInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO notes").WillReturnError(assert.AnError)

	s := NewStore(db)
	_, err = s.AddNote("CH-250101-1", CategoryLearned, "content", nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
