// Package export writes the enriched member list as the JSON file the map
// front end loads, and the raw member list as a debug dump.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
)

// Record is one entry of the exported member list.
type Record struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Lat    string        `json:"lat"`
	Lon    string        `json:"lon"`
	Radius domain.Radius `json:"radius"`
	VM     string        `json:"vm,omitempty"`
	TR     string        `json:"tr,omitempty"`
	LR     string        `json:"lr,omitempty"`
	Other  string        `json:"other,omitempty"`
}

// NewRecord projects an enriched member onto the exported fields.
func NewRecord(m domain.EnrichedMember) Record {
	return Record{
		ID:     m.UID,
		Name:   m.Name,
		Lat:    m.Lat,
		Lon:    m.Lon,
		Radius: m.Radius,
		VM:     m.VM,
		TR:     m.TR,
		LR:     m.LR,
		Other:  m.Other,
	}
}

// FileSink writes the member list to a JSON file, replacing it atomically.
type FileSink struct {
	path   string
	logger *slog.Logger
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	return &FileSink{path: path, logger: logger}
}

func (s *FileSink) Name() string { return "json_file" }

func (s *FileSink) Write(_ context.Context, members []domain.EnrichedMember) error {
	records := make([]Record, len(members))
	for i := range members {
		records[i] = NewRecord(members[i])
	}
	if err := WriteJSON(s.path, records, "  "); err != nil {
		return err
	}
	s.logger.Info("member list exported", "path", s.path, "members", len(records))
	return nil
}

// MemberDump writes the raw member list, for debugging and for reruns with
// a members file. It implements pipeline.MemberDumper.
type MemberDump struct {
	Path string
}

func (d MemberDump) Dump(_ context.Context, members []domain.Member) error {
	return WriteJSON(d.Path, members, "    ")
}

// WriteJSON encodes v as indented UTF-8 JSON without HTML escaping and
// atomically replaces path with it. Missing parent directories are created.
func WriteJSON(path string, v any, indent string) error {
	data, err := json.MarshalIndentWithOption(v, "", indent, json.DisableHTMLEscape())
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
