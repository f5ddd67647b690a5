// internal/connectors/feeschedule.go
package connectors

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

// FeeScheduleConnector resolves procedure-code descriptions from the
// fee-schedule table. Lookups run sequentially in submitted order; a
// code absent from the table is a negative answer, not an outage.
type FeeScheduleConnector struct {
	db        *sql.DB
	timeout   time.Duration
	mandatory bool
	logger    logger.Logger
}

func NewFeeScheduleConnector(db *sql.DB, cfg config.ConnectorConfig, log logger.Logger) *FeeScheduleConnector {
	return &FeeScheduleConnector{
		db:        db,
		timeout:   time.Duration(cfg.Timeout) * time.Millisecond,
		mandatory: cfg.Mandatory,
		logger:    log.WithFields(map[string]interface{}{"connector": models.ConnectorFeeSchedule}),
	}
}

func (c *FeeScheduleConnector) Name() string           { return models.ConnectorFeeSchedule }
func (c *FeeScheduleConnector) Mandatory() bool        { return c.mandatory }
func (c *FeeScheduleConnector) Timeout() time.Duration { return c.timeout }

const feeScheduleQuery = `SELECT description FROM fee_schedule WHERE procedure_code = $1`

func (c *FeeScheduleConnector) Fetch(ctx context.Context, req *models.Request) (*Finding, error) {
	lookup := models.FeeScheduleLookup{
		Descriptions: make(map[string]string, len(req.Service.ProcedureCodes)),
	}

	for _, code := range req.Service.ProcedureCodes {
		var description string
		err := c.db.QueryRowContext(ctx, feeScheduleQuery, code).Scan(&description)
		switch {
		case err == nil:
			lookup.Descriptions[code] = description
		case stderrors.Is(err, sql.ErrNoRows):
			lookup.Missing = append(lookup.Missing, code)
		default:
			return nil, errors.NewDatabaseConnectionFailedError(err)
		}
	}

	if len(lookup.Missing) > 0 {
		sort.Strings(lookup.Missing)
		c.logger.Warn("codes missing from fee schedule", map[string]interface{}{
			"requestId": req.RequestID,
			"missing":   lookup.Missing,
		})
		return negative(lookup, "codes not on fee schedule: "+strings.Join(lookup.Missing, ", ")), nil
	}
	return success(lookup), nil
}
