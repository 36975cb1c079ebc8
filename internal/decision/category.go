package decision

import (
	"encoding/json"
	"slices"
)

// Category represents a transformation tier. Tiers form a fixed ordered
// progression from fully manual work to self-directing systems.
type Category string

// Transformation tiers, ordered from lowest to highest.
const (
	CategoryManual         Category = "manual"
	CategoryAssisted       Category = "assisted"
	CategoryAugmented      Category = "augmented"
	CategoryAutomated      Category = "automated"
	CategoryAutonomous     Category = "autonomous"
	CategoryTransformative Category = "transformative"
)

var categories = []Category{
	CategoryManual,
	CategoryAssisted,
	CategoryAugmented,
	CategoryAutomated,
	CategoryAutonomous,
	CategoryTransformative,
}

// Categories returns the ordered list of transformation tiers.
func Categories() []Category {
	return categories
}

// Index returns the position of the category in the tier progression,
// or -1 if the category is not recognized.
func (c Category) Index() int {
	return slices.Index(categories, c)
}

// Valid reports whether the category is a recognized transformation tier.
func (c Category) Valid() bool {
	return c.Index() >= 0
}

// UnmarshalJSON validates that the decoded string is a known category
// value. The empty string passes through as the zero value so types
// embedding a Category still round-trip before classification has run.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Category(raw)
	if raw != "" && !v.Valid() {
		return ErrUnknownCategory
	}
	*c = v
	return nil
}

// ParseCategory validates a string as a known transformation tier.
// Returns ErrUnknownCategory if the value is not recognized.
func ParseCategory(s string) (Category, error) {
	v := Category(s)
	if !v.Valid() {
		return "", ErrUnknownCategory
	}
	return v, nil
}
