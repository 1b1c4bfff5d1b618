package service

import (
	"strings"

	"rentscope/internal/model"
)

// Evaluate computes the subset of properties matching the criteria.
// It is pure and order-preserving: the output keeps the input collection
// order and the same inputs always produce the same output. Input is
// assumed to be pre-filtered to available units by the property store.
// Missing or malformed property fields never error; they simply fail to
// match whichever rule needed them.
func Evaluate(criteria model.FilterCriteria, properties []model.Property) []model.Property {
	matched := make([]model.Property, 0, len(properties))
	for _, p := range properties {
		if matchesCriteria(criteria, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

// matchesCriteria applies every filter dimension; all must pass.
func matchesCriteria(c model.FilterCriteria, p model.Property) bool {
	if !matchesLocation(c.Location, p) {
		return false
	}
	if !matchesPrice(c.MinPrice, c.MaxPrice, p.Price) {
		return false
	}
	if !c.PropertyType.IsAny() {
		if p.PropertyType == nil || !c.PropertyType.Matches(*p.PropertyType) {
			return false
		}
	}
	if !c.Bedrooms.IsAny() {
		if p.Bedrooms == nil || !c.Bedrooms.Matches(*p.Bedrooms) {
			return false
		}
	}
	if !c.Bathrooms.IsAny() {
		if p.Bathrooms == nil || !c.Bathrooms.Matches(*p.Bathrooms) {
			return false
		}
	}
	if !matchesAmenities(c.Amenities, p.Amenities) {
		return false
	}
	// Two-state flags: true means must-match, false means don't-care.
	if c.IsFurnished && !p.IsFurnished {
		return false
	}
	if c.IsPetFriendly && !p.IsPetFriendly {
		return false
	}
	if !matchesKeywords(c.Keywords, p.Description) {
		return false
	}
	return true
}

// matchesLocation performs a case-insensitive substring match against the
// union of the property's location-ish fields plus title and description.
// An empty location matches everything.
func matchesLocation(location string, p model.Property) bool {
	needle := strings.ToLower(strings.TrimSpace(location))
	if needle == "" {
		return true
	}
	for _, field := range []*string{p.Location, p.City, p.State, p.StreetAddress, p.Title, p.Description} {
		if field != nil && strings.Contains(strings.ToLower(*field), needle) {
			return true
		}
	}
	return false
}

// matchesPrice checks the inclusive price window. A zero-valued window
// (both bounds unset) places no constraint; otherwise a property without a
// price fails to match.
func matchesPrice(min, max float64, price *float64) bool {
	if min == 0 && max == 0 {
		return true
	}
	if price == nil {
		return false
	}
	if *price < min {
		return false
	}
	if max > 0 && *price > max {
		return false
	}
	return true
}

// matchesAmenities requires every wanted amenity to be present in the
// property's set (case-insensitive). An empty wanted set matches everything.
func matchesAmenities(wanted []string, have model.JSONArray) bool {
	for _, w := range wanted {
		found := false
		for _, h := range have {
			if strings.EqualFold(w, h) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchesKeywords matches against the description only; the title is
// deliberately excluded from keyword search.
func matchesKeywords(keywords string, description *string) bool {
	needle := strings.ToLower(strings.TrimSpace(keywords))
	if needle == "" {
		return true
	}
	if description == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*description), needle)
}
