package jobspec

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	jss "github.com/kaptinlin/jsonschema"
)

//go:embed schemas/jobspec.schema.json
var schemaFS embed.FS

const schemaPath = "schemas/jobspec.schema.json"

// Validator checks a job specification document against the embedded JSON schema.
type Validator struct {
	schema *jss.Schema
}

func NewValidator() (Validator, error) {
	var zero Validator
	b, err := schemaFS.ReadFile(schemaPath)
	if err != nil {
		return zero, fmt.Errorf("reading embedded schema: %w", err)
	}
	compiler := jss.NewCompiler()
	schema, err := compiler.Compile(b)
	if err != nil {
		return zero, fmt.Errorf("compiling schema: %w", err)
	}
	return Validator{schema: schema}, nil
}

// Validate encodes v as JSON and validates the result.
func (v Validator) Validate(ctx context.Context, spec any) error {
	b, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encoding job specification to JSON: %w", err)
	}
	return v.ValidateBytes(ctx, b)
}

func (v Validator) ValidateBytes(ctx context.Context, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := v.schema.Validate(b)
	if !res.Valid {
		var errorMsgs []string
		for _, err := range res.Errors {
			errorMsgs = append(errorMsgs, fmt.Sprintf("%s: %s", err.Keyword, err.Error()))
		}
		return fmt.Errorf("%w: schema validation failed:\n%s", ErrInvalid, strings.Join(errorMsgs, "\n"))
	}
	return nil
}
