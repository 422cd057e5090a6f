package enums

import "fmt"

// TrackingType controls whether stock is counted in bulk or per tagged asset.
type TrackingType string

const (
	TrackingTypeBulk  TrackingType = "bulk"
	TrackingTypeAsset TrackingType = "asset"
)

var validTrackingTypes = []TrackingType{
	TrackingTypeBulk,
	TrackingTypeAsset,
}

// String implements fmt.Stringer.
func (t TrackingType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TrackingType.
func (t TrackingType) IsValid() bool {
	for _, candidate := range validTrackingTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTrackingType converts raw input into a TrackingType.
func ParseTrackingType(value string) (TrackingType, error) {
	for _, candidate := range validTrackingTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tracking type %q", value)
}
