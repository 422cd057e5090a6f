package enums

import "fmt"

// AssetStatus tracks where an individually tagged unit currently is.
type AssetStatus string

const (
	AssetStatusAvailable AssetStatus = "available"
	AssetStatusIssued    AssetStatus = "issued"
	AssetStatusDamaged   AssetStatus = "damaged"
	AssetStatusRetired   AssetStatus = "retired"
)

var validAssetStatuses = []AssetStatus{
	AssetStatusAvailable,
	AssetStatusIssued,
	AssetStatusDamaged,
	AssetStatusRetired,
}

// String implements fmt.Stringer.
func (s AssetStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AssetStatus.
func (s AssetStatus) IsValid() bool {
	for _, candidate := range validAssetStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAssetStatus converts raw input into an AssetStatus.
func ParseAssetStatus(value string) (AssetStatus, error) {
	for _, candidate := range validAssetStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid asset status %q", value)
}

// AssetCondition records the physical state of a unit.
type AssetCondition string

const (
	AssetConditionGood   AssetCondition = "good"
	AssetConditionFaulty AssetCondition = "faulty"
	AssetConditionBroken AssetCondition = "broken"
)

var validAssetConditions = []AssetCondition{
	AssetConditionGood,
	AssetConditionFaulty,
	AssetConditionBroken,
}

// IsValid reports whether the value is a known AssetCondition.
func (c AssetCondition) IsValid() bool {
	for _, candidate := range validAssetConditions {
		if candidate == c {
			return true
		}
	}
	return false
}
