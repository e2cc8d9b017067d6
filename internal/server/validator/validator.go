package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator translates binding failures into per-field messages keyed by JSON path.
type Validator struct {
	trans ut.Translator
}

var (
	instance *Validator
	initOnce sync.Once
)

// New configures gin's validator engine once and returns the shared translator.
func New() *Validator {
	initOnce.Do(func() {
		instance = &Validator{}
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		english := en.New()
		uni := ut.New(english, english)
		instance.trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, instance.trans)
	})
	return instance
}

// ParseError converts raw binding errors into a clean map.
func (v *Validator) ParseError(err error) map[string]string {
	errMap := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			ns := e.Namespace()
			// drop the root struct name
			if i := strings.Index(ns, "."); i != -1 {
				ns = ns[i+1:]
			}

			msg := e.Error()
			if v.trans != nil {
				msg = e.Translate(v.trans)
			}
			if e.Tag() == "oneof" {
				msg = fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(e.Param(), " ", ", "))
			}
			errMap[ns] = msg
		}
		return errMap
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		errMap[typeErr.Field] = fmt.Sprintf("must be of type %s", typeErr.Type)
		return errMap
	}

	errMap["body"] = "Invalid request body format. Please fix your payload."
	return errMap
}
