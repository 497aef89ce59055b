// Package indicators validates and summarizes the activity-specific
// indicator payload a worker submits when completing a task.
//
// Each activity type owns one strongly typed variant. The Registry maps an
// activity code to its schema; it is built once and is read-only afterwards,
// so it can be shared between goroutines and replaced in tests.
package indicators

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Activity type codes.
const (
	Pruning       = "poda"
	Weeding       = "maleza"
	Nutrition     = "nutricion"
	Phytosanitary = "fitosanitario"
	Bagging       = "enfunde"
	Harvest       = "cosecha"
)

var ErrNoSchema = errors.New("activity type has no indicator schema")

// Indicators is implemented by every activity variant.
type Indicators interface {
	ActivityType() string
}

// Summary is the compact projection stored next to the full payload.
type Summary map[string]any

// Schema describes one activity variant.
type Schema interface {
	New() Indicators
	Summarize(Indicators) Summary
	SummaryKey() string
}

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type ValidationError struct {
	ActivityType string       `json:"activity_type"`
	Fields       []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("invalid %s indicators: %s", e.ActivityType, strings.Join(parts, "; "))
}

type Registry struct {
	schemas  map[string]Schema
	validate *validator.Validate
}

// NewRegistry returns the registry with every built-in activity schema.
func NewRegistry() *Registry {
	return NewRegistryWith(map[string]Schema{
		Pruning:       pruningSchema{},
		Weeding:       weedingSchema{},
		Nutrition:     nutritionSchema{},
		Phytosanitary: phytosanitarySchema{},
		Bagging:       baggingSchema{},
	})
}

// NewRegistryWith builds a registry from an explicit schema set.
func NewRegistryWith(schemas map[string]Schema) *Registry {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	copied := make(map[string]Schema, len(schemas))
	for code, s := range schemas {
		copied[code] = s
	}
	return &Registry{schemas: copied, validate: v}
}

func (r *Registry) Has(activityType string) bool {
	_, ok := r.schemas[activityType]
	return ok
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.schemas))
	for c := range r.schemas {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func (r *Registry) SummaryKey(activityType string) (string, bool) {
	s, ok := r.schemas[activityType]
	if !ok {
		return "", false
	}
	return s.SummaryKey(), true
}

// Validate decodes payload into the variant registered for activityType and
// checks it. Unknown JSON fields are rejected so typos surface to the user.
func (r *Registry) Validate(activityType string, payload json.RawMessage) (Indicators, error) {
	s, ok := r.schemas[activityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSchema, activityType)
	}

	target := s.New()
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, &ValidationError{ActivityType: activityType, Fields: []FieldError{decodeFieldError(err)}}
	}

	if err := r.validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fieldPath(fe),
				Rule:    fe.Tag(),
				Message: ruleMessage(fe),
			})
		}
		return nil, &ValidationError{ActivityType: activityType, Fields: fields}
	}
	return target, nil
}

func (r *Registry) Summarize(activityType string, ind Indicators) (Summary, error) {
	s, ok := r.schemas[activityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSchema, activityType)
	}
	if ind == nil || ind.ActivityType() != activityType {
		return nil, fmt.Errorf("indicators do not belong to activity type %s", activityType)
	}
	return s.Summarize(ind), nil
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "datetime":
		return "must be a date formatted as YYYY-MM-DD"
	default:
		return "failed " + fe.Tag() + " rule"
	}
}

func decodeFieldError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return FieldError{Field: typeErr.Field, Rule: "type", Message: "must be of type " + typeErr.Type.String()}
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return FieldError{Field: "", Rule: "json", Message: "payload is not valid JSON"}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return FieldError{Field: name, Rule: "unknown", Message: "is not a recognized indicator"}
	default:
		return FieldError{Field: "", Rule: "json", Message: err.Error()}
	}
}
