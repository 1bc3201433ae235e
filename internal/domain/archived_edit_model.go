package domain

import "time"

// ArchivedEdit is the optional database record kept for each accepted edit.
// EventID carries the feed's change identifier so repeated inserts after a
// restart collapse onto the existing row.
type ArchivedEdit struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	EventID      string `gorm:"size:64;uniqueIndex;not null"`
	Title        string `gorm:"size:512;not null"`
	IP           string `gorm:"size:45;not null"`
	Organization string `gorm:"size:512;not null"`

	EditedAt   time.Time `gorm:"index"`
	Comment    string    `gorm:"type:text"`
	RevisionID int64
	ParentID   int64
	OldSize    int
	NewSize    int

	ScreenshotPath string `gorm:"size:1024"`
	Sensitive      bool

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
