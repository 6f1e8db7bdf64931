package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// bulkSchemaJSON requires of every bulk record what single entry requires of
// its form fields.
const bulkSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["title", "due_date", "estimated_hours", "importance"],
    "properties": {
      "title": { "type": "string", "pattern": "\\S" },
      "due_date": { "type": "string", "pattern": "\\S" },
      "estimated_hours": { "type": "number", "minimum": 0 },
      "importance": { "type": "integer", "minimum": -2147483648, "maximum": 2147483647 },
      "dependencies": {
        "type": ["array", "null"],
        "items": { "type": ["integer", "string"], "pattern": "^-?[0-9]+$" }
      }
    }
  }
}`

const scoredSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id"],
    "properties": {
      "id": { "type": ["integer", "string"], "pattern": "^-?[0-9]+$" },
      "title": { "type": "string" },
      "due_date": { "type": ["string", "null"] },
      "estimated_hours": { "type": ["number", "null"] },
      "importance": { "type": ["integer", "null"] },
      "score": { "type": ["number", "null"] },
      "explanation": { "type": ["string", "null"] },
      "dependencies": {
        "type": ["array", "null"],
        "items": { "type": ["integer", "string"], "pattern": "^-?[0-9]+$" }
      }
    }
  }
}`

var (
	bulkSchemaLoader   = gojsonschema.NewStringLoader(bulkSchemaJSON)
	scoredSchemaLoader = gojsonschema.NewStringLoader(scoredSchemaJSON)
)

// bulkRecord is the accepted shape of one bulk entry. Incoming ids are ignored.
type bulkRecord struct {
	Title          string   `json:"title"`
	DueDate        string   `json:"due_date"`
	EstimatedHours float64  `json:"estimated_hours"`
	Importance     float64  `json:"importance"`
	Dependencies   []TaskID `json:"dependencies"`
}

// ParseBulk validates a JSON array of task records and converts it to tasks
// without ids. Missing dependencies default to an empty list.
func ParseBulk(payload []byte) ([]Task, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidBulk)
	}

	result, err := gojsonschema.Validate(bulkSchemaLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBulk, err)
	}
	if !result.Valid() {
		return nil, &BulkError{Problems: describeErrors(result)}
	}

	var records []bulkRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBulk, err)
	}

	out := make([]Task, len(records))
	for i, r := range records {
		deps := r.Dependencies
		if deps == nil {
			deps = make([]TaskID, 0)
		}
		out[i] = Task{
			Title:          strings.TrimSpace(r.Title),
			DueDate:        strings.TrimSpace(r.DueDate),
			EstimatedHours: r.EstimatedHours,
			Importance:     int(r.Importance),
			Dependencies:   deps,
		}
	}
	return out, nil
}

// DecodeScored validates and decodes a scoring service response: a JSON
// array of task records each carrying at least an id.
func DecodeScored(body []byte) ([]Task, error) {
	result, err := gojsonschema.Validate(scoredSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScored, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrMalformedScored, strings.Join(describeErrors(result), "; "))
	}

	var scored []Task
	if err := json.Unmarshal(body, &scored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScored, err)
	}
	for i := range scored {
		if scored[i].Dependencies == nil {
			scored[i].Dependencies = make([]TaskID, 0)
		}
	}
	return scored, nil
}

// YAMLToJSON converts a YAML bulk payload to the equivalent JSON so it can go
// through ParseBulk.
func YAMLToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBulk, err)
	}
	out, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBulk, err)
	}
	return out, nil
}

func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeYAML(item)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return m
	case []any:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return val
	}
}

func describeErrors(result *gojsonschema.Result) []string {
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems
}
