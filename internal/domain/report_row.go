package domain

// SensitiveMatch is one pattern hit found in an edit comment.
type SensitiveMatch struct {
	Kind string // "phone_number" or "address"
	Text string
}

// ReportRow is the unit handed to the report sink for each accepted edit.
type ReportRow struct {
	Event          ChangeEvent
	Organization   string
	DiffURL        string
	ScreenshotPath string
	Sensitive      bool
	Matches        []SensitiveMatch
}

// SocialPost is the unit handed to the social sink.
type SocialPost struct {
	Title        string
	Organization string
	DiffURL      string
	Timestamp    string
	ImagePath    string
}
