package config

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	perr "github.com/zinonweke/linear-notion-sync/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Issue is one configuration problem keyed by the env var that caused it
type Issue struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Error reports every missing or malformed setting at once
type Error struct {
	Issues []Issue
}

// Error implements error
func (e *Error) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid configuration"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Message)
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Code maps configuration failures onto the project error code
func (e *Error) Code() perr.ErrorCode { return perr.ErrorCodeConfig }

// Keys returns the offending env var names in order
func (e *Error) Keys() []string {
	out := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		out = append(out, is.Key)
	}
	return out
}

type validatorSvc struct {
	v  *validator.Validate
	tr ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

// validatorInstance builds the validator once with english messages keyed by env tag
func validatorInstance() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// messages name the env var rather than the Go field
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("env")
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		vSvc = &validatorSvc{v: v, tr: trans}
	})
	return vSvc
}

// Validate checks s against its validate tags and returns *Error listing every failure
func Validate(s any) error {
	svc := validatorInstance()
	err := svc.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return perr.Wrap(err, perr.ErrorCodeConfig, "config validation failed")
	}
	out := &Error{Issues: make([]Issue, 0, len(verrs))}
	for _, fe := range verrs {
		out.Issues = append(out.Issues, Issue{Key: fe.Field(), Message: fe.Translate(svc.tr)})
	}
	return out
}
