package geocoding

import (
	"fmt"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// Errors shared by all providers. They carry their models.ErrorKind so callers can classify failures
// with models.KindOf.
var (
	ErrTransport         = models.NewKindError(models.KindTransport, "geocoding request failed")
	ErrParse             = models.NewKindError(models.KindParse, "malformed geocoding response")
	ErrAddressNotFound   = models.NewKindError(models.KindProvider, "address not found")
	ErrNoRectangle       = models.NewKindError(models.KindParse, "ip location response has no rectangle")
	ErrMissingCredential = models.NewKindError(models.KindConfiguration, "geocoding API key is not configured")
)

// StatusError is returned when the provider answers with a non-success HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("geocoding API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("geocoding API returned status %d: %s", e.StatusCode, e.Body)
}

// Kind implements models.Kinded.
func (e *StatusError) Kind() models.ErrorKind { return models.KindTransport }

// Is lets errors.Is(err, ErrTransport) match status failures.
func (e *StatusError) Is(target error) bool { return target == ErrTransport }

// ProviderError is returned when the provider reports a non-success status in the response body.
type ProviderError struct {
	Provider string // Provider is the provider name.
	Info     string // Info is the provider message.
	Code     string // Code is the provider status code, if any.
	Err      error  // Err is the underlying client error, if any.
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Info)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Kind implements models.Kinded.
func (e *ProviderError) Kind() models.ErrorKind { return models.KindProvider }

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrIPLocationUnsupported is returned when the configured provider has no IP-location endpoint.
var ErrIPLocationUnsupported = models.NewKindError(models.KindConfiguration, "provider does not support IP location")
