// internal/store/waypoints.go

// Package store persists assessment waypoints. The table is append-only
// and keyed by request id: a second write for the same assessment is
// rejected, never overwritten.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"

	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/waypoint"
)

// WaypointStore writes and reads serialized waypoints in Postgres.
type WaypointStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewWaypointStore(db *sql.DB, log logger.Logger) *WaypointStore {
	return &WaypointStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "waypoint-store"}),
	}
}

const insertWaypointQuery = `
INSERT INTO assessment_waypoints (request_id, schema_version, decision, created_at, record)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (request_id) DO NOTHING`

// Save persists the waypoint. Write-once: an existing record for the
// same request id fails with DUPLICATE_WAYPOINT and is left untouched.
func (s *WaypointStore) Save(ctx context.Context, w *waypoint.Waypoint) error {
	record, err := w.Serialize()
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	res, err := s.db.ExecContext(ctx, insertWaypointQuery,
		w.RequestID(),
		w.SchemaVersion(),
		string(w.Recommendation().Decision),
		w.CreatedAt(),
		record,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	if rows == 0 {
		return errors.NewDuplicateWaypointError(w.RequestID())
	}

	s.logger.Info("waypoint persisted", map[string]interface{}{
		"requestId": w.RequestID(),
		"decision":  w.Recommendation().Decision,
	})
	return nil
}

const selectWaypointQuery = `
SELECT record FROM assessment_waypoints WHERE request_id = $1`

// Load returns the serialized record for a request id, or nil when no
// waypoint exists.
func (s *WaypointStore) Load(ctx context.Context, requestID string) ([]byte, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, selectWaypointQuery, requestID).Scan(&record)
	switch {
	case err == nil:
		return record, nil
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
}
