package geocoding

import (
	"context"
	"fmt"
)

// ProbeAddress is the landmark geocoded to check that a credential works.
const ProbeAddress = "北京市天安门"

// Probe geocodes ProbeAddress with p and returns the underlying error when the lookup fails.
func Probe(ctx context.Context, p Provider) error {
	if _, err := p.Geocode(ctx, ProbeAddress); err != nil {
		return fmt.Errorf("probe geocode failed: %w", err)
	}
	return nil
}
