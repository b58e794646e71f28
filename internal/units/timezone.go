package units

import (
	"fmt"
	"time"
)

// LoadLocation resolves a timezone name for display. Empty and "UTC" mean UTC;
// "Local" is the host zone. Recorded samples are stored in UTC and converted
// with the result only when shown.
func LoadLocation(tz string) (*time.Location, error) {
	switch tz {
	case "", "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}
