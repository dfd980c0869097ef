// Package i18n holds the user-facing copy shown for each verification phase and
// step. Copy is data: the sequencer only ever refers to message keys.
package i18n

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
)

// Message keys.
const (
	KeySecurityCheck      = "phase.initial"
	KeyVerifying          = "phase.verifying"
	KeyComplete           = "phase.complete"
	KeyCompleteDetail     = "phase.complete.detail"
	KeyInvalidNumber      = "fail.invalid_number"
	KeyDeviceMismatch     = "fail.device_mismatch"
	KeyServiceUnavailable = "fail.service_unavailable"
	KeySIMRiskTitle       = "alert.sim_risk.title"
	KeySIMRiskDetail      = "alert.sim_risk.detail"
	KeyCancelled          = "phase.cancelled"
)

// StepNameKey returns the key of a step's display name.
func StepNameKey(stepID string) string { return "step." + stepID + ".name" }

// StepDescriptionKey returns the key of a step's description.
func StepDescriptionKey(stepID string) string { return "step." + stepID + ".description" }

var catalog = map[string]map[string]string{
	"es": {
		KeySecurityCheck:                  "Verificación de Seguridad",
		KeyVerifying:                      "Verificando número...",
		KeyComplete:                       "Verificación Completa",
		KeyCompleteDetail:                 "Tu identidad ha sido verificada correctamente",
		KeyInvalidNumber:                  "Número de teléfono inválido.",
		KeyDeviceMismatch:                 "¡Error de Verificación! El número no coincide con el dispositivo. Por favor, elige otra opción de verificación.",
		KeyServiceUnavailable:             "El servicio de verificación no está disponible. Inténtalo de nuevo más tarde.",
		KeySIMRiskTitle:                   "Se requiere verificación adicional",
		KeySIMRiskDetail:                  "Se detectó actividad inusual en tu tarjeta SIM",
		KeyCancelled:                      "Verificación cancelada",
		StepNameKey("phone_check"):        "Verificación de Número",
		StepDescriptionKey("phone_check"): "Confirmando que el número te pertenece",
		StepNameKey("sim_check"):          "Detección de SIM Swap",
		StepDescriptionKey("sim_check"):   "Verificando la integridad de tu tarjeta SIM",
		StepNameKey("biometric"):          "Verificación Biométrica",
		StepDescriptionKey("biometric"):   "Se requiere una confirmación adicional",
	},
	"en": {
		KeySecurityCheck:                  "Security Verification",
		KeyVerifying:                      "Verifying number...",
		KeyComplete:                       "Verification Completed",
		KeyCompleteDetail:                 "Your identity has been successfully verified",
		KeyInvalidNumber:                  "Invalid phone number.",
		KeyDeviceMismatch:                 "Verification error! The number does not match this device. Please choose another verification option.",
		KeyServiceUnavailable:             "The verification service is unavailable. Please try again later.",
		KeySIMRiskTitle:                   "Additional Verification Required",
		KeySIMRiskDetail:                  "Unusual activity detected on your SIM card",
		KeyCancelled:                      "Verification cancelled",
		StepNameKey("phone_check"):        "Number Verification",
		StepDescriptionKey("phone_check"): "Confirming this number belongs to you",
		StepNameKey("sim_check"):          "SIM Swap Detection",
		StepDescriptionKey("sim_check"):   "Verifying the integrity of your SIM card",
		StepNameKey("biometric"):          "Biometric Verification",
		StepDescriptionKey("biometric"):   "Additional confirmation required",
	},
}

// Translator resolves message keys for the supported locales.
type Translator struct {
	uni      *ut.UniversalTranslator
	fallback string
}

// New registers the built-in catalog. fallback is used for unknown locales and
// must be one of the supported locales.
func New(fallback string) (*Translator, error) {
	uni := ut.New(es.New(), es.New(), en.New())
	for locale, messages := range catalog {
		trans, found := uni.GetTranslator(locale)
		if !found {
			return nil, fmt.Errorf("locale %s not registered", locale)
		}
		for key, text := range messages {
			if err := trans.Add(key, text, false); err != nil {
				return nil, fmt.Errorf("add %s/%s: %w", locale, key, err)
			}
		}
	}
	fallback = normalize(fallback)
	if _, ok := catalog[fallback]; !ok {
		return nil, fmt.Errorf("unsupported fallback locale %q", fallback)
	}
	return &Translator{uni: uni, fallback: fallback}, nil
}

// MustNew is New for static wiring and tests.
func MustNew(fallback string) *Translator {
	t, err := New(fallback)
	if err != nil {
		panic(err)
	}
	return t
}

// Supported reports whether locale has its own catalog.
func (t *Translator) Supported(locale string) bool {
	_, ok := catalog[normalize(locale)]
	return ok
}

// Fallback returns the default locale.
func (t *Translator) Fallback() string { return t.fallback }

// T resolves key in locale, falling back to the default locale and finally to
// the key itself.
func (t *Translator) T(locale, key string) string {
	for _, candidate := range []string{normalize(locale), t.fallback} {
		trans, found := t.uni.GetTranslator(candidate)
		if !found {
			continue
		}
		if text, err := trans.T(key); err == nil {
			return text
		}
	}
	return key
}

func normalize(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return locale
}
