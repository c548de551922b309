package gradingapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// statusSchema describes the wire contract for submission status documents.
// Strict clients fail the call on a violation; lenient clients only log.
const statusSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["submission_id", "status"],
  "properties": {
    "submission_id": {"type": "integer", "minimum": 1},
    "status": {"enum": ["pending", "processing", "completed", "failed"]},
    "ocr_text": {"type": ["string", "null"]},
    "ocr_confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
    "grading_result": {
      "type": ["object", "null"],
      "required": ["total_score", "max_score", "percentage"],
      "properties": {
        "total_score": {"type": "number", "minimum": 0},
        "max_score": {"type": "number", "minimum": 0},
        "percentage": {"type": "number", "minimum": 0, "maximum": 100},
        "feedback": {"type": "string"},
        "per_question_scores": {"type": "array"}
      }
    },
    "error_message": {"type": ["string", "null"]}
  }
}`

var compiledStatusSchema = jsonschema.MustCompileString("submission_status.schema.json", statusSchema)

func validateStatusDocument(body []byte, strict bool, logger zerolog.Logger) error {
	var document any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStatusPayload, err)
	}

	if err := compiledStatusSchema.Validate(document); err != nil {
		if strict {
			return fmt.Errorf("%w: %v", ErrInvalidStatusPayload, err)
		}
		logger.Warn().Err(err).Msg("submission status payload failed schema validation")
	}

	return nil
}
