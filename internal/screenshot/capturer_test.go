package screenshot

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wikigov/internal/domain"
)

func TestTargetPathLayout(t *testing.T) {
	c := New("shots", 10*time.Second)

	ev := domain.ChangeEvent{
		Title:      "Anacortes, Washington",
		RevisionID: 9002,
	}

	path := c.targetPath(ev)
	day := time.Now().UTC().Format("2006-01-02")
	require.Equal(t, filepath.Join("shots", day, "Anacortes_Washington_rev9002.png"), path)
}

func TestTargetPathHostileTitle(t *testing.T) {
	c := New("shots", 10*time.Second)

	ev := domain.ChangeEvent{
		Title:      "../../etc/passwd <script>",
		RevisionID: 7,
	}

	path := c.targetPath(ev)
	base := filepath.Base(path)
	require.NotContains(t, base, "/")
	require.NotContains(t, base, "<")
	require.True(t, strings.HasSuffix(base, "_rev7.png"))
	require.Equal(t, filepath.Join("shots", time.Now().UTC().Format("2006-01-02")), filepath.Dir(path))
}
