package locator

import (
	"context"
	"time"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// PositionOptions mirror the knobs of a device geolocation request.
type PositionOptions struct {
	Timeout      time.Duration
	HighAccuracy bool
	MaximumAge   time.Duration
}

// DefaultPositionOptions: 10s timeout, high accuracy, fixes up to 5 minutes old.
var DefaultPositionOptions = PositionOptions{
	Timeout:      10 * time.Second,
	HighAccuracy: true,
	MaximumAge:   5 * time.Minute,
}

// Position is a device fix.
type Position struct {
	models.Coordinates

	Accuracy  float64   // meters, 0 when unknown
	Timestamp time.Time // zero when unknown
}

// DeviceLocator reads the device position.
type DeviceLocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (*Position, error)
}

// Report is a fix or a failure code reported by the browser together with a batch request.
type Report struct {
	Longitude *float64 `json:"longitude,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Accuracy  float64  `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"` // unix milliseconds
	Error     string   `json:"error,omitempty"`
}

// ReportedLocator serves a fix the client already obtained.
type ReportedLocator struct {
	report *Report
	now    func() time.Time
}

// NewReportedLocator wraps report. A nil report behaves like a client without geolocation support.
func NewReportedLocator(report *Report) *ReportedLocator {
	return &ReportedLocator{report: report, now: time.Now}
}

// WithClock overrides the clock used for the staleness check.
func (l *ReportedLocator) WithClock(now func() time.Time) *ReportedLocator {
	l.now = now
	return l
}

func (l *ReportedLocator) CurrentPosition(ctx context.Context, opts PositionOptions) (*Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case l.report == nil:
		return nil, NewGeolocationError(CodeUnsupported, nil)
	case l.report.Error != "":
		return nil, NewGeolocationError(ParseGeolocationCode(l.report.Error), nil)
	case l.report.Longitude == nil || l.report.Latitude == nil:
		return nil, NewGeolocationError(CodePositionUnavailable, nil)
	}

	pos := &Position{
		Coordinates: models.Coordinates{Longitude: *l.report.Longitude, Latitude: *l.report.Latitude},
		Accuracy:    l.report.Accuracy,
	}
	if l.report.Timestamp > 0 {
		pos.Timestamp = time.UnixMilli(l.report.Timestamp)
		if opts.MaximumAge > 0 && l.now().Sub(pos.Timestamp) > opts.MaximumAge {
			return nil, NewGeolocationError(CodePositionUnavailable, ErrStaleFix)
		}
	}

	return pos, nil
}

// StaticLocator always answers with the same position. Used for headless runs.
type StaticLocator struct {
	position models.Coordinates
}

// NewStaticLocator creates a StaticLocator.
func NewStaticLocator(position models.Coordinates) *StaticLocator {
	return &StaticLocator{position: position}
}

func (l *StaticLocator) CurrentPosition(ctx context.Context, _ PositionOptions) (*Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Position{Coordinates: l.position}, nil
}
