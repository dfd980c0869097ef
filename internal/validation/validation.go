// Package validation checks request DTOs and renders failures as readable
// English messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ]+$`)

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New registers the default English messages and the custom tags:
// "phone" (digits and spaces, optional leading +) and "locale".
func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}

	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "es", "en", "es-es", "en-us", "en-gb":
			return true
		}
		return false
	}); err != nil {
		return nil, err
	}
	for tag, text := range map[string]string{
		"phone":  "{0} must contain only digits",
		"locale": "{0} must be es or en",
	} {
		if err := registerMessage(v, trans, tag, text); err != nil {
			return nil, err
		}
	}
	return &Validator{validate: v, trans: trans}, nil
}

// MustNew is New for static wiring.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Struct validates s and joins every field failure into one error.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Translate(v.trans))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func registerMessage(v *validator.Validate, trans ut.Translator, tag, text string) error {
	return v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}
