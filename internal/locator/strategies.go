package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/nearby/internal/geo"
	"github.com/UnknownOlympus/nearby/internal/geocoding"
	"github.com/UnknownOlympus/nearby/internal/models"
)

// Strategy names, also reported as models.BatchResult.ReferenceSource.
const (
	SourceManual = "manual"
	SourceIP     = "ip"
	SourceDevice = "device"
)

// ManualStrategy geocodes a configured address.
type ManualStrategy struct {
	address  string
	provider geocoding.Provider
}

// NewManualStrategy returns a strategy that is skipped when address is blank.
func NewManualStrategy(address string, provider geocoding.Provider) *ManualStrategy {
	return &ManualStrategy{address: strings.TrimSpace(address), provider: provider}
}

func (s *ManualStrategy) Name() string { return SourceManual }

func (s *ManualStrategy) Locate(ctx context.Context) (*models.Coordinates, error) {
	if s.address == "" {
		return nil, ErrSkipped
	}

	pos, err := s.provider.Geocode(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("地址解析失败: %w", err)
	}
	return pos, nil
}

// IPStrategy asks the provider's IP-location endpoint. A nil locator means the tier is unavailable.
type IPStrategy struct {
	locator geocoding.IPLocator
}

// NewIPStrategy returns a strategy that is skipped when locator is nil.
func NewIPStrategy(locator geocoding.IPLocator) *IPStrategy {
	return &IPStrategy{locator: locator}
}

func (s *IPStrategy) Name() string { return SourceIP }

func (s *IPStrategy) Locate(ctx context.Context) (*models.Coordinates, error) {
	if s.locator == nil {
		return nil, ErrSkipped
	}

	loc, err := s.locator.LocateIP(ctx)
	if err != nil {
		return nil, err
	}
	return &loc.Position, nil
}

// BoxMode controls what DeviceStrategy does with a fix outside the validity box.
type BoxMode string

const (
	BoxModeReject BoxMode = "reject"
	BoxModeWarn   BoxMode = "warn"
)

// ErrInvalidBoxMode is returned by ParseBoxMode for unknown values.
var ErrInvalidBoxMode = errors.New("box mode must be reject or warn")

// ParseBoxMode parses a BoxMode. Empty means reject.
func ParseBoxMode(raw string) (BoxMode, error) {
	switch BoxMode(strings.ToLower(strings.TrimSpace(raw))) {
	case BoxModeReject, "":
		return BoxModeReject, nil
	case BoxModeWarn:
		return BoxModeWarn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBoxMode, raw)
	}
}

// DeviceStrategy reads the device position and checks it against a validity box.
type DeviceStrategy struct {
	locator DeviceLocator
	options PositionOptions
	box     geo.Box
	mode    BoxMode
	log     *slog.Logger
}

// NewDeviceStrategy creates the last-resort strategy. A nil locator reports CodeUnsupported.
func NewDeviceStrategy(
	locator DeviceLocator,
	options PositionOptions,
	box geo.Box,
	mode BoxMode,
	log *slog.Logger,
) *DeviceStrategy {
	return &DeviceStrategy{locator: locator, options: options, box: box, mode: mode, log: log}
}

func (s *DeviceStrategy) Name() string { return SourceDevice }

func (s *DeviceStrategy) Locate(ctx context.Context) (*models.Coordinates, error) {
	if s.locator == nil {
		return nil, NewGeolocationError(CodeUnsupported, nil)
	}

	if s.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
		defer cancel()
	}

	pos, err := s.locator.CurrentPosition(ctx, s.options)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewGeolocationError(CodeTimeout, err)
		}
		var geoErr *GeolocationError
		if errors.As(err, &geoErr) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, NewGeolocationError(CodePositionUnavailable, err)
	}

	if !s.box.Contains(pos.Coordinates) {
		if s.mode == BoxModeWarn {
			s.log.WarnContext(ctx, "Device position outside validity box",
				"lng", pos.Longitude,
				"lat", pos.Latitude,
				"box", s.box.String())
			return &pos.Coordinates, nil
		}
		return nil, NewGeolocationError(CodeOutOfRange,
			fmt.Errorf("%s outside %s", pos.Coordinates.String(), s.box.String()))
	}

	return &pos.Coordinates, nil
}
