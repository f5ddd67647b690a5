// internal/normalizer/normalizer.go
package normalizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

var (
	// ICD-10-CM: letter (no U), digit, alphanumeric, optional dotted extension.
	icd10Pattern = regexp.MustCompile(`^[A-TV-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)
	// CPT (5 digits, optional trailing alpha for Category II/III) or
	// HCPCS Level II (letter + 4 digits).
	procPattern = regexp.MustCompile(`^[0-9]{4}[0-9A-Z]$|^[A-V][0-9]{4}$`)
)

// rawRequest mirrors the wire shape of an incoming request, which keys
// fields differently from the internal record model.
type rawRequest struct {
	Member struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DateOfBirth string `json:"dateOfBirth"`
		State       string `json:"state"`
	} `json:"member"`
	Service struct {
		Description    string   `json:"description"`
		ProcedureCodes []string `json:"procedureCodes"`
		DiagnosisCodes []string `json:"diagnosisCodes"`
	} `json:"service"`
	Provider struct {
		NPI       string `json:"npi"`
		Name      string `json:"name"`
		Specialty string `json:"specialty"`
	} `json:"provider"`
	ClinicalText string `json:"clinicalText"`
}

func (r rawRequest) toModel() models.Request {
	return models.Request{
		Member: models.Member{
			ID:    r.Member.ID,
			Name:  r.Member.Name,
			DOB:   r.Member.DateOfBirth,
			State: r.Member.State,
		},
		Service: models.Service{
			Description:    r.Service.Description,
			ProcedureCodes: append([]string(nil), r.Service.ProcedureCodes...),
			DiagnosisCodes: append([]string(nil), r.Service.DiagnosisCodes...),
		},
		Provider: models.Provider{
			NPI:       r.Provider.NPI,
			Name:      r.Provider.Name,
			Specialty: r.Provider.Specialty,
		},
		ClinicalText: r.ClinicalText,
	}
}

// Normalizer validates and shapes the raw incoming request into the
// immutable internal model. No external calls are made here; a request
// that fails validation is rejected before any connector dispatch.
type Normalizer struct {
	schema *gojsonschema.Schema
	logger logger.Logger
}

func New(log logger.Logger) (*Normalizer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return &Normalizer{
		schema: schema,
		logger: log.WithFields(map[string]interface{}{"component": "normalizer"}),
	}, nil
}

// Normalize validates raw against the request schema plus semantic code
// checks and returns the internal Request along with the clinical facts
// extracted from the attached text.
func (n *Normalizer) Normalize(raw json.RawMessage) (*models.Request, []models.ClinicalFact, error) {
	result, err := n.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, nil, errors.NewSchemaViolationError(fmt.Sprintf("unparseable request: %v", err))
	}
	if !result.Valid() {
		var details []string
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, nil, errors.NewSchemaViolationError(strings.Join(details, "; "))
	}

	var in rawRequest
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, nil, errors.NewSchemaViolationError(fmt.Sprintf("decode request: %v", err))
	}
	req := in.toModel()

	if err := n.checkCodes(&req); err != nil {
		return nil, nil, err
	}

	req.RequestID = uuid.New().String()

	facts := ExtractFacts(req.ClinicalText)

	n.logger.Info("request accepted", map[string]interface{}{
		"requestId":      req.RequestID,
		"memberState":    req.Member.State,
		"procedureCodes": len(req.Service.ProcedureCodes),
		"diagnosisCodes": len(req.Service.DiagnosisCodes),
		"facts":          len(facts),
	})

	return &req, facts, nil
}

// checkCodes enforces code formats the JSON Schema cannot express.
// Format violations are schema violations, not connector negatives: a
// malformed code never reaches the validators.
func (n *Normalizer) checkCodes(req *models.Request) error {
	for _, code := range req.Service.DiagnosisCodes {
		if !icd10Pattern.MatchString(code) {
			return errors.NewSchemaViolationError(fmt.Sprintf("malformed diagnosis code %q", code))
		}
	}
	for _, code := range req.Service.ProcedureCodes {
		if !procPattern.MatchString(code) {
			return errors.NewSchemaViolationError(fmt.Sprintf("malformed procedure code %q", code))
		}
	}
	return nil
}
