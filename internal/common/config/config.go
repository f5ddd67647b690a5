// internal/common/config/config.go
package config

import (
	"fmt"

	"priorauth-engine/internal/models"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Connectors    ConnectorsConfig        `mapstructure:"connectors"`
	Rubric        RubricConfig            `mapstructure:"rubric"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	PolicyIndex string   `mapstructure:"policy_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Connector Configuration ---

// ConnectorConfig holds per-connector dispatch settings. Each call
// carries its own timeout; transient failures get at most one retry.
type ConnectorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
	Mandatory bool   `mapstructure:"mandatory"`
}

// ConnectorsConfig groups the validation sources fanned out by the
// orchestrator plus shared fan-in settings.
type ConnectorsConfig struct {
	ProviderRegistry ConnectorConfig `mapstructure:"provider_registry"`
	CodeValidation   ConnectorConfig `mapstructure:"code_validation"`
	PolicySearch     ConnectorConfig `mapstructure:"policy_search"`
	FeeSchedule      ConnectorConfig `mapstructure:"fee_schedule"`
	LiteratureSearch ConnectorConfig `mapstructure:"literature_search"`

	// OptionalGrace is the soft-join secondary deadline for optional
	// connectors after all mandatory results are in (milliseconds).
	OptionalGrace int `mapstructure:"optional_grace"`
	// CacheTTL is the Redis TTL for idempotent connector results (seconds).
	CacheTTL int `mapstructure:"cache_ttl"`
}

// --- Decision Rubric Configuration ---

// RubricConfig is the injected, versioned decision rubric: component
// weights, gating thresholds, and the borderline window. Passed
// explicitly into the scorer and decision engine, never read from
// global state.
type RubricConfig struct {
	Version string         `mapstructure:"version"`
	Weights models.Weights `mapstructure:"weights"`

	// ApproveConfidence is the minimum overall confidence for APPROVE.
	ApproveConfidence float64 `mapstructure:"approve_confidence"`
	// CriteriaMetRatio is the minimum fraction of criteria judged MET.
	CriteriaMetRatio float64 `mapstructure:"criteria_met_ratio"`
	// BorderlineBand: confidence within [ApproveConfidence,
	// ApproveConfidence+band) flags the case for medical-director review.
	BorderlineBand float64 `mapstructure:"borderline_band"`
	// EvidenceFloor is the minimum extraction confidence for a fact to
	// support a MET judgment (0-100).
	EvidenceFloor float64 `mapstructure:"evidence_floor"`
	// LowConfidenceWarn is the soft threshold below which a
	// LOW_CONFIDENCE_WARNING is surfaced to the caller.
	LowConfidenceWarn float64 `mapstructure:"low_confidence_warn"`

	// DatasetLimitationDelta is the logged confidence adjustment applied
	// when a reference connector declares a known dataset limitation.
	DatasetLimitationDelta float64 `mapstructure:"dataset_limitation_delta"`
	// MaxAdjustment bounds any confidence adjustment.
	MaxAdjustment float64 `mapstructure:"max_adjustment"`
}

// --- Notification Configuration ---

// NotificationConfig holds settings for the notify-outcome worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ReviewerTo string `mapstructure:"reviewer_to"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled     bool   `mapstructure:"enabled"`
		ReviewerTel string `mapstructure:"reviewer_tel"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// ObservabilityConfig holds tracing settings. Metrics are always
// exported; tracing only when a collector endpoint is set.
type ObservabilityConfig struct {
	JaegerURL string `mapstructure:"jaeger_url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
