// internal/store/waypoints_test.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
	"priorauth-engine/internal/waypoint"
)

func newStore(t *testing.T) (*WaypointStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWaypointStore(db, logger.NewTestLogger(t)), mock
}

func testWaypoint() *waypoint.Waypoint {
	req := &models.Request{
		RequestID: "req-1",
		Member:    models.Member{ID: "M-1001"},
		Service:   models.Service{ProcedureCodes: []string{"72148"}, DiagnosisCodes: []string{"M54.5"}},
		Provider:  models.Provider{NPI: "1234567893"},
	}
	return waypoint.New(req, nil, models.ResultSet{}, nil,
		models.ConfidenceBreakdown{Total: 90, RawTotal: 90},
		models.Recommendation{Decision: models.DecisionApprove, ConfidenceScore: 90},
		nil)
}

func TestSave_InsertsRecord(t *testing.T) {
	s, mock := newStore(t)
	w := testWaypoint()

	mock.ExpectExec("INSERT INTO assessment_waypoints").
		WithArgs(w.RequestID(), w.SchemaVersion(), "APPROVE", w.CreatedAt(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Save(context.Background(), w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_DuplicateIsRejectedNotOverwritten(t *testing.T) {
	s, mock := newStore(t)
	w := testWaypoint()

	// ON CONFLICT DO NOTHING reports zero rows affected.
	mock.ExpectExec("INSERT INTO assessment_waypoints").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Save(context.Background(), w)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicateWaypoint, errors.CodeOf(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestSave_InsertFailureIsRetryable(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectExec("INSERT INTO assessment_waypoints").
		WillReturnError(fmt.Errorf("connection refused"))

	err := s.Save(context.Background(), testWaypoint())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatabaseInsertFailed, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestLoad_ReturnsRecord(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("SELECT record FROM assessment_waypoints").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow([]byte(`{"schemaVersion":"1.0"}`)))

	record, err := s.Load(context.Background(), "req-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"schemaVersion":"1.0"}`, string(record))
}

func TestLoad_MissingWaypointIsNil(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("SELECT record FROM assessment_waypoints").
		WithArgs("req-404").
		WillReturnError(sql.ErrNoRows)

	record, err := s.Load(context.Background(), "req-404")
	require.NoError(t, err)
	assert.Nil(t, record)
}
