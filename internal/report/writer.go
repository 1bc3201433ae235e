// Package report appends accepted edits to CSV files. Two files are
// maintained: the full log of every government edit and a second file
// holding only edits whose comments matched a sensitive-content pattern.
package report

import (
	"encoding/csv"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"wikigov/internal/domain"
)

var mainHeader = []string{
	"timestamp", "title", "ip", "organization", "country",
	"diff_url", "screenshot", "comment", "revision_id", "parent_id",
	"size_change", "sensitive",
}

var sensitiveHeader = []string{
	"timestamp", "title", "ip", "organization",
	"diff_url", "match_kind", "match_text", "comment",
}

// Writer appends rows to the report files, writing each header exactly
// once per file lifetime. An optional GeoLite2 country database enriches
// rows with the editing network's country.
type Writer struct {
	mainPath      string
	sensitivePath string

	mu      sync.Mutex
	country *geoip2.Reader
}

func New(mainPath, sensitivePath string) *Writer {
	return &Writer{mainPath: mainPath, sensitivePath: sensitivePath}
}

// WithCountryDB attaches a GeoLite2 country database. A missing or broken
// file logs a warning and leaves the country column empty; reporting never
// fails over enrichment.
func (w *Writer) WithCountryDB(path string) *Writer {
	if path == "" {
		return w
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		log.Warn("Country enrichment disabled", "path", path, "err", err)
		return w
	}
	w.country = reader
	log.Info("Country enrichment enabled", "path", path)
	return w
}

// Append writes the given rows to the main report, and any sensitive rows
// to the sensitive report as well. Rows for one batch land in one flush.
func (w *Writer) Append(rows []domain.ReportRow) error {
	if len(rows) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.appendMain(rows); err != nil {
		return err
	}
	return w.appendSensitive(rows)
}

func (w *Writer) appendMain(rows []domain.ReportRow) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		ev := row.Event
		records = append(records, []string{
			ev.Timestamp,
			ev.Title,
			ev.User,
			row.Organization,
			w.lookupCountry(ev.User),
			row.DiffURL,
			row.ScreenshotPath,
			ev.Comment,
			strconv.FormatInt(ev.RevisionID, 10),
			strconv.FormatInt(ev.ParentID, 10),
			strconv.Itoa(ev.NewSize - ev.OldSize),
			strconv.FormatBool(row.Sensitive),
		})
	}
	return appendCSV(w.mainPath, mainHeader, records)
}

func (w *Writer) appendSensitive(rows []domain.ReportRow) error {
	var records [][]string
	for _, row := range rows {
		if !row.Sensitive {
			continue
		}
		ev := row.Event
		for _, m := range row.Matches {
			records = append(records, []string{
				ev.Timestamp,
				ev.Title,
				ev.User,
				row.Organization,
				row.DiffURL,
				m.Kind,
				m.Text,
				ev.Comment,
			})
		}
	}
	if len(records) == 0 {
		return nil
	}
	return appendCSV(w.sensitivePath, sensitiveHeader, records)
}

func (w *Writer) lookupCountry(ip string) string {
	if w.country == nil {
		return ""
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}
	record, err := w.country.Country(parsed)
	if err != nil || record == nil {
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the country database, if one was attached.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.country != nil {
		_ = w.country.Close()
		w.country = nil
	}
}

// appendCSV opens path in append mode, writing the header first when the
// file is new or empty.
func appendCSV(path string, header []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat report %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
	}
	for _, record := range records {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
