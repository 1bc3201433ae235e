package networks

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"wikigov/internal/domain"
)

// Range is a closed address interval within one family, tagged with the
// owning organization and its tier flags. Ranges may overlap; lookups return
// the first loaded match.
type Range struct {
	Start netip.Addr
	End   netip.Addr

	Organization string
	IsFederal    bool
	IsCongress   bool
}

func (r Range) contains(addr netip.Addr) bool {
	return addr.Compare(r.Start) >= 0 && addr.Compare(r.End) <= 0
}

// Keywords drives the organization-to-tier classification. It is
// configuration data, not code: the lists are maintained and versioned
// independently of the classifier.
type Keywords struct {
	// CongressSubstrings mark an organization as congressional when any of
	// them appears (case-insensitive) in the organization name.
	CongressSubstrings []string
	// CongressExactNames match the whole organization name, catching bare
	// "Senate" without a state prefix.
	CongressExactNames []string
}

// Classifier answers whether an address belongs to a loaded government
// range. Built once at startup; immutable afterwards.
type Classifier struct {
	v4 []Range
	v6 []Range
}

// LoadFile builds a Classifier from a CSV range table on disk.
func LoadFile(path string, kw Keywords) (*Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open range table: %w", err)
	}
	defer f.Close()

	return Load(f, kw)
}

// Load builds a Classifier from row-oriented CSV data with a header of
// start_ip, end_ip, organization, is_federal. Rows with missing fields or
// unparsable addresses are skipped with a warning; the load never fails on
// bad rows.
func Load(r io.Reader, kw Keywords) (*Classifier, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read range table header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"start_ip", "end_ip", "organization"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("range table missing %q column", required)
		}
	}

	c := &Classifier{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("Skipping malformed range table row", "err", err)
			continue
		}

		startRaw := field(record, col["start_ip"])
		endRaw := field(record, col["end_ip"])
		org := field(record, col["organization"])

		if startRaw == "" || endRaw == "" || org == "" {
			log.Warn("Skipping range row with missing data", "start", startRaw, "end", endRaw, "org", org)
			continue
		}

		start, ok := parseAddr(startRaw)
		if !ok {
			log.Warn("Skipping range with bad start address", "org", org, "start", startRaw)
			continue
		}
		end, ok := parseAddr(endRaw)
		if !ok {
			log.Warn("Skipping range with bad end address", "org", org, "end", endRaw)
			continue
		}
		if start.Is4() != end.Is4() {
			log.Warn("Skipping range spanning address families", "org", org, "start", startRaw, "end", endRaw)
			continue
		}
		if start.Compare(end) > 0 {
			log.Warn("Skipping inverted range", "org", org, "start", startRaw, "end", endRaw)
			continue
		}

		isCongress := kw.isCongress(org)
		isFederal := isFederalRow(record, col)
		if isCongress {
			// Congress sits inside the federal tier.
			isFederal = true
		}

		rng := Range{
			Start:        start,
			End:          end,
			Organization: org,
			IsFederal:    isFederal,
			IsCongress:   isCongress,
		}

		if start.Is4() {
			c.v4 = append(c.v4, rng)
		} else {
			c.v6 = append(c.v6, rng)
		}
	}

	log.Info("Loaded government ranges", "ipv4", len(c.v4), "ipv6", len(c.v6))
	return c, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isFederalRow(record []string, col map[string]int) bool {
	idx, ok := col["is_federal"]
	if !ok {
		return false
	}
	return strings.EqualFold(field(record, idx), "yes")
}

func (kw Keywords) isCongress(org string) bool {
	lower := strings.ToLower(strings.TrimSpace(org))
	for _, exact := range kw.CongressExactNames {
		if lower == strings.ToLower(exact) {
			return true
		}
	}
	for _, sub := range kw.CongressSubstrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Classify reports whether the address falls inside any loaded range and,
// if so, which organization owns it. Malformed input is a miss, never an
// error. Overlapping ranges resolve to the first loaded one.
func (c *Classifier) Classify(address string) (bool, string) {
	rng, ok := c.lookup(address)
	if !ok {
		return false, ""
	}
	return true, rng.Organization
}

// Matches reports whether the address belongs to a range that qualifies at
// the given filter level. The same loaded table serves all levels.
func (c *Classifier) Matches(address string, level domain.FilterLevel) bool {
	rng, ok := c.lookup(address)
	if !ok {
		return false
	}

	switch level {
	case domain.FilterCongress:
		return rng.IsCongress
	case domain.FilterFederal:
		return rng.IsFederal
	default:
		return true
	}
}

func (c *Classifier) lookup(address string) (Range, bool) {
	addr, ok := parseAddr(address)
	if !ok {
		return Range{}, false
	}

	// Linear scan: the table holds a couple thousand rows at most, and a
	// first-match walk keeps the overlap tie-break trivially correct.
	list := c.v6
	if addr.Is4() {
		list = c.v4
	}
	for _, rng := range list {
		if rng.contains(addr) {
			return rng, true
		}
	}
	return Range{}, false
}

// Counts returns the number of loaded ranges per family, for startup logs.
func (c *Classifier) Counts() (v4, v6 int) {
	return len(c.v4), len(c.v6)
}
