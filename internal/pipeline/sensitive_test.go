package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wikigov/internal/domain"
)

var (
	testPhonePatterns = []string{
		`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`,
		`\b\(\d{3}\)\s*\d{3}[-.]?\d{4}\b`,
	}
	testAddressPatterns = []string{
		`\b\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr)\b`,
		`\b(?:PO|P\.O\.) Box\s+\d+\b`,
	}
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(testPhonePatterns, testAddressPatterns)
	require.NoError(t, err)
	return d
}

func TestDetectPhoneNumber(t *testing.T) {
	d := newTestDetector(t)

	found, matches := d.Detect("call 555-123-4567", nil)
	require.True(t, found)
	require.Equal(t, []domain.SensitiveMatch{{Kind: "phone_number", Text: "555-123-4567"}}, matches)
}

func TestDetectExcludesOwnRevisionID(t *testing.T) {
	d := newTestDetector(t)

	ev := domain.ChangeEvent{RevisionID: 5551234567, ParentID: 42}
	found, matches := d.Detect("call 555-123-4567", KnownIDs(ev))
	require.True(t, found, "dashed form differs from the raw id")

	// When the matched text exactly equals the event's own id, it's wiki
	// markup, not leaked data.
	found, matches = d.Detect("reverted to 5551234567", KnownIDs(ev))
	require.False(t, found)
	require.Empty(t, matches)

	// Same rule when the identifier itself carries the dashed shape.
	found, matches = d.Detect("call 555-123-4567", map[string]struct{}{"555-123-4567": {}})
	require.False(t, found)
	require.Empty(t, matches)
}

func TestDetectAddress(t *testing.T) {
	d := newTestDetector(t)

	found, matches := d.Detect("moved office to 1600 Pennsylvania Avenue", nil)
	require.True(t, found)
	require.Len(t, matches, 1)
	require.Equal(t, "address", matches[0].Kind)

	found, matches = d.Detect("send mail to P.O. Box 123", nil)
	require.True(t, found)
	require.Equal(t, "P.O. Box 123", matches[0].Text)
}

func TestDetectCleanComment(t *testing.T) {
	d := newTestDetector(t)

	found, matches := d.Detect("fixed a typo in the infobox", nil)
	require.False(t, found)
	require.Empty(t, matches)
}

func TestNewDetectorRejectsBadPattern(t *testing.T) {
	_, err := NewDetector([]string{"("}, nil)
	require.Error(t, err)
}
