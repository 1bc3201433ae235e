package domain

import "fmt"

// FilterLevel narrows which classified ranges qualify as government for a run.
type FilterLevel string

const (
	FilterAll      FilterLevel = "all"
	FilterFederal  FilterLevel = "federal"
	FilterCongress FilterLevel = "congress"
)

func ParseFilterLevel(raw string) (FilterLevel, error) {
	switch FilterLevel(raw) {
	case FilterAll, FilterFederal, FilterCongress:
		return FilterLevel(raw), nil
	}
	return "", fmt.Errorf("unknown filter level %q (want all, federal or congress)", raw)
}

func (l FilterLevel) Description() string {
	switch l {
	case FilterAll:
		return "All Government Agencies"
	case FilterFederal:
		return "Federal Agencies Only"
	case FilterCongress:
		return "Congressional IPs Only (House + Senate)"
	}
	return "Unknown filter"
}
