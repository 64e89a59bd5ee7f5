package models

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Search defaults.
const (
	DefaultSearchLimit     = 5
	DefaultSearchThreshold = 0.5
	MaxSearchLimit         = 100
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SearchQuery is a similarity search request.
type SearchQuery struct {
	Query     string   `json:"query" validate:"required"`
	Limit     int      `json:"limit,omitempty" validate:"gte=0"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=-1,lte=1"`
}

// Validate checks the query and fills in defaults.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if err := structErr(validate.Struct(q)); err != nil {
		return err
	}
	if q.Limit == 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
	if q.Threshold == nil {
		t := DefaultSearchThreshold
		q.Threshold = &t
	}
	return nil
}

// ContextQuery asks for the part of a document most relevant to a question.
type ContextQuery struct {
	Query      string `json:"query" validate:"required"`
	Content    string `json:"content" validate:"required"`
	SourceName string `json:"source_name" validate:"required"`
}

// Validate checks that every field is present.
func (q *ContextQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	return structErr(validate.Struct(q))
}

// structErr turns the first validator failure into a *ValidationError naming the field.
func structErr(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		if fe.Tag() == "required" {
			return Invalid(field, "must not be empty")
		}
		return Invalid(field, "failed "+fe.Tag()+" "+fe.Param())
	}
	return Invalid("request", err.Error())
}
