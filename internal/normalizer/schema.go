// internal/normalizer/schema.go
package normalizer

// requestSchema is the JSON Schema every raw coverage request must
// satisfy before any connector is called. Code-format and checksum
// rules beyond what JSON Schema can express live in normalizer.go.
const requestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["member", "service", "provider"],
  "properties": {
    "member": {
      "type": "object",
      "required": ["id", "name", "dateOfBirth", "state"],
      "properties": {
        "id":          {"type": "string", "minLength": 1},
        "name":        {"type": "string", "minLength": 1},
        "dateOfBirth": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
        "state":       {"type": "string", "pattern": "^[A-Z]{2}$"}
      }
    },
    "service": {
      "type": "object",
      "required": ["description", "procedureCodes", "diagnosisCodes"],
      "properties": {
        "description":    {"type": "string", "minLength": 1},
        "procedureCodes": {"type": "array", "minItems": 1, "items": {"type": "string"}},
        "diagnosisCodes": {"type": "array", "minItems": 1, "items": {"type": "string"}}
      }
    },
    "provider": {
      "type": "object",
      "required": ["npi", "name"],
      "properties": {
        "npi":       {"type": "string", "pattern": "^\\d{10}$"},
        "name":      {"type": "string", "minLength": 1},
        "specialty": {"type": "string"}
      }
    },
    "clinicalText": {"type": "string"}
  }
}`
