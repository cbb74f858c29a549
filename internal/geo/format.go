package geo

import "strings"

// Location is the subset of an upstream answer kept for a capture.
type Location struct {
	City    string
	Region  string
	Country string
}

// String joins the non-blank components as "City, Region, Country".
func (l Location) String() string {
	return Format(l.City, l.Region, l.Country)
}

// Format joins city, region and country with ", ", skipping blank parts.
func Format(city, region, country string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{city, region, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
