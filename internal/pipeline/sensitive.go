package pipeline

import (
	"fmt"
	"regexp"

	"wikigov/internal/domain"
)

// Detector scans edit comments for phone-number-shaped and postal-address-
// shaped substrings. The pattern sets are configuration data; the pipeline
// only forwards the findings, it never acts on them.
type Detector struct {
	phones    []*regexp.Regexp
	addresses []*regexp.Regexp
}

func NewDetector(phonePatterns, addressPatterns []string) (*Detector, error) {
	d := &Detector{}
	for _, p := range phonePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile phone pattern %q: %w", p, err)
		}
		d.phones = append(d.phones, re)
	}
	for _, p := range addressPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile address pattern %q: %w", p, err)
		}
		d.addresses = append(d.addresses, re)
	}
	return d, nil
}

// Detect scans text for sensitive substrings. Matches that exactly equal a
// known numeric identifier of the event itself (its revision or parent
// revision id) are excluded, since routine wiki markup quotes those.
func (d *Detector) Detect(text string, knownIDs map[string]struct{}) (bool, []domain.SensitiveMatch) {
	var found []domain.SensitiveMatch

	scan := func(patterns []*regexp.Regexp, kind string) {
		for _, re := range patterns {
			for _, match := range re.FindAllString(text, -1) {
				if _, known := knownIDs[match]; known {
					continue
				}
				found = append(found, domain.SensitiveMatch{Kind: kind, Text: match})
			}
		}
	}

	scan(d.phones, "phone_number")
	scan(d.addresses, "address")

	return len(found) > 0, found
}

// KnownIDs builds the exclusion set for one event.
func KnownIDs(ev domain.ChangeEvent) map[string]struct{} {
	return map[string]struct{}{
		fmt.Sprint(ev.RevisionID): {},
		fmt.Sprint(ev.ParentID):   {},
	}
}
