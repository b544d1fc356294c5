package utils

import (
	"regexp"
	"strings"
)

var (
	stateZipRegex  = regexp.MustCompile(`(?i)^([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)
	zipRegex       = regexp.MustCompile(`\d{5}(?:-\d{4})?`)
	cityTrailRegex = regexp.MustCompile(`\s+\w{2}\s+\d{5}.*$`)
	countryParts   = map[string]bool{"usa": true, "us": true, "united states": true}
)

// ParsedAddress is a single-line address split into form fields.
type ParsedAddress struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// ParseAddress splits an autocomplete-style address such as
// "123 Main St, Springfield, IL 62701, USA". It returns false when the input
// has fewer than two comma-separated parts.
func ParseAddress(formatted string) (ParsedAddress, bool) {
	var parts []string
	for _, p := range strings.Split(formatted, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 2 && countryParts[strings.ToLower(parts[len(parts)-1])] {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 2 {
		return ParsedAddress{}, false
	}

	addr := ParsedAddress{Street: parts[0]}
	last := parts[len(parts)-1]

	if m := stateZipRegex.FindStringSubmatch(last); m != nil {
		addr.State = strings.ToUpper(m[1])
		addr.Zip = m[2]
	} else if words := strings.Fields(last); len(words) >= 3 && len(parts) == 2 {
		// "Street, City ST 12345"
		addr.Zip = words[len(words)-1]
		addr.State = strings.ToUpper(words[len(words)-2])
	} else if words := strings.Fields(last); len(words) >= 2 {
		addr.Zip = words[len(words)-1]
		addr.State = strings.ToUpper(strings.Join(words[:len(words)-1], " "))
	} else if zip := zipRegex.FindString(last); zip != "" {
		addr.Zip = zip
		addr.State = strings.ToUpper(strings.TrimSpace(strings.Replace(last, zip, "", 1)))
	}

	if len(parts) == 2 {
		addr.City = parts[1]
	} else {
		addr.City = parts[len(parts)-2]
	}
	addr.City = strings.TrimSpace(cityTrailRegex.ReplaceAllString(addr.City, ""))

	return addr, true
}
