package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
)

// ReportQuery selects the report trend granularity.
type ReportQuery struct {
	Period    string `query:"period" validate:"omitempty,oneof=quarter month"`
	Window    int    `query:"window" validate:"omitempty,min=1,max=12"`
	Narrative bool   `query:"narrative"`
}

type TrainersQuery struct {
	Order string `query:"order" validate:"omitempty,oneof=asc desc"`
}

type TrainerQuery struct {
	Narrative bool `query:"narrative"`
}

type SearchQuery struct {
	Q       string `query:"q" validate:"required,max=200"`
	Trainer string `query:"trainer" validate:"max=200"`
	Limit   int    `query:"limit" validate:"omitempty,min=1,max=200"`
}

type ExportQuery struct {
	Category string `query:"category" validate:"omitempty,oneof=delegate partner master"`
}

// EmailRequest is the body of POST /api/report/email.
type EmailRequest struct {
	To      []string `json:"to" validate:"required,min=1,max=10,dive,email"`
	Subject string   `json:"subject" validate:"max=200"`
	Trainer string   `json:"trainer" validate:"max=200"`
	Attach  string   `json:"attach" validate:"omitempty,oneof=csv xlsx none"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			if name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]; name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

func newQueryDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.SetTagName("query")
	return d
}

// decodeFields flattens form decode errors into field -> message.
func decodeFields(err error) map[string]string {
	var derrs form.DecodeErrors
	if !errors.As(err, &derrs) {
		return map[string]string{"": err.Error()}
	}
	out := make(map[string]string, len(derrs))
	for field := range derrs {
		out[field] = "has an invalid value"
	}
	return out
}

// validationFields flattens validator errors into field -> message.
func validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldName(fe)] = describe(fe)
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
