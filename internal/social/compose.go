package social

import (
	"fmt"
	"strings"
	"time"

	"wikigov/internal/domain"
)

// ComposeText renders the post body. Timestamps display in US Eastern time
// since the monitored networks are American government bodies.
func ComposeText(post domain.SocialPost) string {
	org := post.Organization
	if org == "" {
		org = "Unknown Organization"
	}

	when := ""
	if ts, err := time.Parse(time.RFC3339, post.Timestamp); err == nil {
		if eastern, tzErr := time.LoadLocation("America/New_York"); tzErr == nil {
			local := ts.In(eastern)
			when = fmt.Sprintf(" on %s at %s %s",
				local.Format("Jan 2, 2006"),
				local.Format("3:04 PM"),
				local.Format("MST"))
		}
	}

	return fmt.Sprintf("%s Wikipedia article edited anonymously from %s%s.\n\n%s",
		post.Title, org, when, post.DiffURL)
}

// Facet marks a byte range of the post text as a rich-text feature.
type Facet struct {
	Index    FacetIndex     `json:"index"`
	Features []FacetFeature `json:"features"`
}

type FacetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type FacetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

// LinkFacets returns the facet making the diff URL clickable. Offsets are
// byte positions in the UTF-8 text, which is what the protocol indexes by.
func LinkFacets(text, url string) []Facet {
	if url == "" {
		return nil
	}
	start := strings.Index(text, url)
	if start < 0 {
		return nil
	}
	return []Facet{{
		Index: FacetIndex{ByteStart: start, ByteEnd: start + len(url)},
		Features: []FacetFeature{{
			Type: "app.bsky.richtext.facet#link",
			URI:  url,
		}},
	}}
}
