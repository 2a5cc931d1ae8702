// Package bind decodes and validates JSON request bodies
// Messages use json field names and short english translations
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "ruleexplain/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
)

// MaxBody caps request bodies; a clause is far smaller
const MaxBody = 1 << 20

var (
	setupOnce sync.Once
	validate  *validator.Validate
	trans     ut.Translator
)

func setup() {
	setupOnce.Do(func() {
		loc := en.New()
		trans, _ = ut.New(loc, loc).GetTranslator("en")

		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = entrans.RegisterDefaultTranslations(validate, trans)

		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		for tag, msg := range map[string]string{
			"min":      "{0} must be at least {1}",
			"max":      "{0} must be at most {1}",
			"notblank": "{0} must not be blank",
		} {
			translate(tag, msg)
		}
	})
}

// translate registers msg for tag; {0} is the field and {1} the tag param
func translate(tag, msg string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, msg, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}

// ParseJSON decodes exactly one JSON object into T and validates it
// Unknown fields, trailing data, empty and oversized bodies are rejected
func ParseJSON[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil {
		return v, perr.JSONErrf("empty body")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, perr.JSONErrf("empty body")
		}
		return v, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return v, perr.JSONErrf("unexpected trailing data")
	}
	return v, Struct(v)
}

// Struct validates v and reports the first failing field
func Struct(v any) error {
	setup()
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) || len(fes) == 0 {
		return perr.Wrap(err, perr.ErrorCodeValidation, "validation error")
	}
	fe := fes[0]
	return perr.WithField(perr.New(perr.ErrorCodeValidation, fe.Translate(trans)), fe.Field())
}
