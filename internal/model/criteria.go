package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BedroomFilter is the bedroom criterion. Plain digits require an exact
// count; the single "4+" bucket means four or more.
type BedroomFilter string

const (
	BedroomsAny      BedroomFilter = "any"
	BedroomsFourPlus BedroomFilter = "4+"
)

// IsAny reports whether the filter places no constraint.
func (f BedroomFilter) IsAny() bool {
	return f == "" || f == BedroomsAny
}

// Matches reports whether a property with n bedrooms satisfies the filter.
func (f BedroomFilter) Matches(n int) bool {
	if f.IsAny() {
		return true
	}
	if f == BedroomsFourPlus {
		return n >= 4
	}
	v, err := strconv.Atoi(string(f))
	if err != nil {
		// Values outside the stepper's range are not producible by the
		// UI; an unknown value places no constraint.
		return true
	}
	return n == v
}

// BathroomFilter is the bathroom criterion. Plain digits require an exact
// count; the advanced surface additionally offers "1+", "2+" and "3+"
// at-least buckets. The asymmetry with BedroomFilter (where only the top
// bucket is at-least) is deliberate.
type BathroomFilter string

const BathroomsAny BathroomFilter = "any"

// IsAny reports whether the filter places no constraint.
func (f BathroomFilter) IsAny() bool {
	return f == "" || f == BathroomsAny
}

// Matches reports whether a property with n bathrooms satisfies the filter.
func (f BathroomFilter) Matches(n float64) bool {
	if f.IsAny() {
		return true
	}
	s := string(f)
	if strings.HasSuffix(s, "+") {
		v, err := strconv.Atoi(strings.TrimSuffix(s, "+"))
		if err != nil {
			return true
		}
		return n >= float64(v)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return true
	}
	return n == v
}

// PropertyTypeFilter is the dwelling-type criterion.
type PropertyTypeFilter string

const (
	PropertyTypeAny       PropertyTypeFilter = "any"
	PropertyTypeApartment PropertyTypeFilter = "apartment"
	PropertyTypeHouse     PropertyTypeFilter = "house"
	PropertyTypeCondo     PropertyTypeFilter = "condo"
	PropertyTypeTownhouse PropertyTypeFilter = "townhouse"
	PropertyTypeStudio    PropertyTypeFilter = "studio"
	PropertyTypeLoft      PropertyTypeFilter = "loft"
)

// IsAny reports whether the filter places no constraint.
func (f PropertyTypeFilter) IsAny() bool {
	return f == "" || f == PropertyTypeAny
}

// Matches reports whether a property type satisfies the filter
// (case-insensitive exact match).
func (f PropertyTypeFilter) Matches(propertyType string) bool {
	if f.IsAny() {
		return true
	}
	return strings.EqualFold(string(f), propertyType)
}

// Default price windows for the two search surfaces. The basic and advanced
// views ship independently configured ranges; both are preserved.
const (
	DefaultBasicMinPrice    = 500
	DefaultAdvancedMinPrice = 1000
	DefaultMaxPrice         = 5000
)

// FilterCriteria is the current set of user-chosen search constraints.
// It is a value type: every mutation returns a new value with exactly one
// logical field replaced, so partially-updated states are never observable.
type FilterCriteria struct {
	Location      string             `json:"location"`
	MinPrice      float64            `json:"min_price"`
	MaxPrice      float64            `json:"max_price"`
	Bedrooms      BedroomFilter      `json:"bedrooms"`
	Bathrooms     BathroomFilter     `json:"bathrooms"`
	PropertyType  PropertyTypeFilter `json:"property_type"`
	Amenities     []string           `json:"amenities,omitempty"`
	IsFurnished   bool               `json:"is_furnished"`
	IsPetFriendly bool               `json:"is_pet_friendly"`
	Keywords      string             `json:"keywords"`
}

// DefaultCriteria returns the basic search view's defaults.
func DefaultCriteria() FilterCriteria {
	return FilterCriteria{
		MinPrice:     DefaultBasicMinPrice,
		MaxPrice:     DefaultMaxPrice,
		Bedrooms:     BedroomsAny,
		Bathrooms:    BathroomsAny,
		PropertyType: PropertyTypeAny,
	}
}

// DefaultAdvancedCriteria returns the advanced filter panel's defaults,
// which carry a narrower starting price window than the basic view.
func DefaultAdvancedCriteria() FilterCriteria {
	c := DefaultCriteria()
	c.MinPrice = DefaultAdvancedMinPrice
	return c
}

// WithLocation returns a copy with the location text replaced.
func (c FilterCriteria) WithLocation(location string) FilterCriteria {
	c.Location = location
	return c
}

// WithPriceRange returns a copy with both price bounds replaced atomically.
// A reversed pair is swapped so min > max is never observable.
func (c FilterCriteria) WithPriceRange(min, max float64) FilterCriteria {
	if min > max {
		min, max = max, min
	}
	c.MinPrice = min
	c.MaxPrice = max
	return c
}

// WithBedrooms returns a copy with the bedroom filter replaced.
func (c FilterCriteria) WithBedrooms(f BedroomFilter) FilterCriteria {
	c.Bedrooms = f
	return c
}

// WithBathrooms returns a copy with the bathroom filter replaced.
func (c FilterCriteria) WithBathrooms(f BathroomFilter) FilterCriteria {
	c.Bathrooms = f
	return c
}

// WithPropertyType returns a copy with the type filter replaced.
func (c FilterCriteria) WithPropertyType(f PropertyTypeFilter) FilterCriteria {
	c.PropertyType = f
	return c
}

// WithFurnished returns a copy with the furnished flag replaced.
func (c FilterCriteria) WithFurnished(v bool) FilterCriteria {
	c.IsFurnished = v
	return c
}

// WithPetFriendly returns a copy with the pet-friendly flag replaced.
func (c FilterCriteria) WithPetFriendly(v bool) FilterCriteria {
	c.IsPetFriendly = v
	return c
}

// WithKeywords returns a copy with the free-text keywords replaced.
func (c FilterCriteria) WithKeywords(keywords string) FilterCriteria {
	c.Keywords = keywords
	return c
}

// ToggleAmenity returns a copy with the named amenity added if absent or
// removed if present. Toggling twice round-trips to the original set.
func (c FilterCriteria) ToggleAmenity(name string) FilterCriteria {
	out := make([]string, 0, len(c.Amenities)+1)
	found := false
	for _, a := range c.Amenities {
		if strings.EqualFold(a, name) {
			found = true
			continue
		}
		out = append(out, a)
	}
	if !found {
		out = append(out, name)
	}
	if len(out) == 0 {
		out = nil
	}
	c.Amenities = out
	return c
}

// HasAmenity reports whether the criteria set contains the named amenity.
func (c FilterCriteria) HasAmenity(name string) bool {
	for _, a := range c.Amenities {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// ClampPrices returns a copy with the price window clamped to the
// configured [floor, ceiling] bounds.
func (c FilterCriteria) ClampPrices(floor, ceiling float64) FilterCriteria {
	if ceiling <= floor {
		return c
	}
	if c.MinPrice < floor {
		c.MinPrice = floor
	}
	if c.MaxPrice > ceiling {
		c.MaxPrice = ceiling
	}
	if c.MinPrice > c.MaxPrice {
		c.MinPrice = c.MaxPrice
	}
	return c
}

// Value implements driver.Valuer so criteria persist as a JSONB column.
func (c FilterCriteria) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for the JSONB criteria column.
func (c *FilterCriteria) Scan(value interface{}) error {
	if value == nil {
		*c = FilterCriteria{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into FilterCriteria", value)
	}
}
