// Package database persists accepted edits to Postgres for long-term
// analysis. The archive is optional: without a DSN the rest of the
// pipeline runs exactly the same, minus this sink.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"wikigov/internal/domain"
)

// Archive wraps the gorm handle for the edit archive.
type Archive struct {
	db *gorm.DB
}

// Open connects to Postgres and runs migrations. The gorm logger is kept
// silent; query noise drowns the monitor's own log lines.
func Open(dsn string) (*Archive, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: silentLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open connection: %w", err)
	}
	return newArchive(db)
}

// OpenWith builds an Archive over an existing connection. Tests use this
// with sqlite.
func OpenWith(db *gorm.DB) (*Archive, error) {
	return newArchive(db)
}

func newArchive(db *gorm.DB) (*Archive, error) {
	if err := db.AutoMigrate(&domain.ArchivedEdit{}); err != nil {
		return nil, fmt.Errorf("database: auto migrate: %w", err)
	}
	log.Info("Edit archive ready")
	return &Archive{db: db}, nil
}

// Record inserts accepted edits. Conflicts on the event id are ignored so
// replays after a partial failure stay idempotent.
func (a *Archive) Record(ctx context.Context, rows []domain.ReportRow) error {
	if len(rows) == 0 {
		return nil
	}
	edits := make([]domain.ArchivedEdit, 0, len(rows))
	for _, row := range rows {
		editedAt, err := time.Parse(time.RFC3339, row.Event.Timestamp)
		if err != nil {
			editedAt = time.Now().UTC()
		}
		edits = append(edits, domain.ArchivedEdit{
			EventID:        row.Event.ID,
			Title:          row.Event.Title,
			IP:             row.Event.User,
			Organization:   row.Organization,
			EditedAt:       editedAt,
			Comment:        row.Event.Comment,
			RevisionID:     row.Event.RevisionID,
			ParentID:       row.Event.ParentID,
			OldSize:        row.Event.OldSize,
			NewSize:        row.Event.NewSize,
			ScreenshotPath: row.ScreenshotPath,
			Sensitive:      row.Sensitive,
		})
	}
	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&edits).Error
	if err != nil {
		return fmt.Errorf("database: archive %d edits: %w", len(edits), err)
	}
	return nil
}

// CountByOrganization reports how many archived edits each organization
// has, most active first.
func (a *Archive) CountByOrganization() (map[string]int64, error) {
	type bucket struct {
		Organization string
		Total        int64
	}
	var buckets []bucket
	err := a.db.Model(&domain.ArchivedEdit{}).
		Select("organization, count(*) as total").
		Group("organization").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("database: count by organization: %w", err)
	}
	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Organization] = b.Total
	}
	return counts, nil
}

func silentLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Silent},
	)
}
