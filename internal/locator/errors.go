package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// ErrSkipped is returned by a strategy that does not apply to the current run, e.g. no manual address.
var ErrSkipped = errors.New("strategy not applicable")

// GeolocationCode classifies device geolocation failures.
type GeolocationCode string

const (
	CodePermissionDenied    GeolocationCode = "permission_denied"
	CodePositionUnavailable GeolocationCode = "position_unavailable"
	CodeTimeout             GeolocationCode = "timeout"
	CodeUnsupported         GeolocationCode = "unsupported"
	CodeOutOfRange          GeolocationCode = "out_of_range"
)

var geolocationMessages = map[GeolocationCode]string{
	CodePermissionDenied:    "用户拒绝了定位请求，请手动设置位置",
	CodePositionUnavailable: "位置信息不可用，请手动设置位置",
	CodeTimeout:             "定位请求超时，请手动设置位置",
	CodeUnsupported:         "浏览器不支持定位",
	CodeOutOfRange:          "定位结果可能不准确，建议手动设置位置",
}

// ParseGeolocationCode maps a reported code to a known one. Unknown codes become position_unavailable.
func ParseGeolocationCode(raw string) GeolocationCode {
	code := GeolocationCode(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := geolocationMessages[code]; ok {
		return code
	}
	return CodePositionUnavailable
}

// GeolocationError is a device geolocation failure.
type GeolocationError struct {
	Code GeolocationCode
	Err  error // Err is the underlying cause, if any.
}

// NewGeolocationError builds a GeolocationError with an optional cause.
func NewGeolocationError(code GeolocationCode, cause error) *GeolocationError {
	return &GeolocationError{Code: code, Err: cause}
}

func (e *GeolocationError) Error() string {
	msg, ok := geolocationMessages[e.Code]
	if !ok {
		msg = "浏览器定位失败"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", msg, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", msg, e.Code)
}

// Kind implements models.Kinded.
func (e *GeolocationError) Kind() models.ErrorKind { return models.KindGeolocation }

func (e *GeolocationError) Unwrap() error { return e.Err }

// Attempt records the outcome of one strategy during a failed resolution.
type Attempt struct {
	Strategy string
	Err      error
}

// ResolveError is returned when every strategy failed. It lists all attempts in order.
type ResolveError struct {
	Attempts []Attempt
}

func (e *ResolveError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Strategy+": "+a.Err.Error())
	}
	return "无法获取起始位置: " + strings.Join(parts, "; ")
}

// Kind implements models.Kinded.
func (e *ResolveError) Kind() models.ErrorKind { return models.KindGeolocation }

// Unwrap exposes every attempt error to errors.Is and errors.As.
func (e *ResolveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// ErrStaleFix is the cause attached when a reported fix is older than PositionOptions.MaximumAge.
var ErrStaleFix = errors.New("reported fix is older than the maximum age")
