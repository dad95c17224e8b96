package dataset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	errs "github.com/matzehuels/rostermap/pkg/errors"
)

//go:embed schema/steps.schema.json
var stepsSchemaJSON string

const stepsSchemaURL = "steps.schema.json"

var stepsSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(stepsSchemaURL, stepsSchemaJSON)
})

// StepsSchema returns the JSON schema steps files are validated against.
func StepsSchema() string { return stepsSchemaJSON }

// ValidateSteps checks a steps document against the embedded schema.
func ValidateSteps(data []byte) error {
	sch, err := stepsSchema()
	if err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "compile steps schema")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode steps")
	}
	if err := sch.Validate(doc); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidFormat, err, "steps do not match schema")
	}
	return nil
}
