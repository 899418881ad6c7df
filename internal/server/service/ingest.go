package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"medley/internal/server/classify"
	"medley/internal/server/database"
	"medley/internal/server/notify"
	"medley/internal/server/preview"
	"medley/internal/server/scan"
	"medley/internal/server/storage"
)

// Sentinel errors for the service layer.
var (
	ErrInvalidPath       = errors.New("invalid file path")
	ErrInvalidUser       = errors.New("invalid username")
	ErrNamespaceNotFound = errors.New("user namespace not found")
)

// UploadFile is one member of an upload batch. Name is the declared
// filename and may carry a relative subfolder path.
type UploadFile struct {
	Name         string
	DeclaredType string
	Data         io.Reader
}

// Outcome is the per-file result of ingestion: either a created record or
// a tagged failure with a human-readable reason.
type Outcome struct {
	Filename string               `json:"filename"`
	RelPath  string               `json:"relpath,omitempty"`
	OK       bool                 `json:"ok"`
	Reason   string               `json:"reason,omitempty"`
	Record   *database.FileRecord `json:"record,omitempty"`
}

// Catalog is the slice of the repository the pipeline depends on.
type Catalog interface {
	Insert(ctx context.Context, record *database.FileRecord) error
	ListByUser(ctx context.Context, username, nameContains, typePrefix string) ([]database.FileRecord, error)
}

// Publisher delivers new-record events to a user's live viewers.
type Publisher interface {
	Publish(user string, event notify.Event)
}

// IngestService runs each uploaded file through content classification,
// threat scanning, preview derivation, catalog persistence and fan-out.
type IngestService struct {
	repo     Catalog
	store    storage.Store
	scanner  scan.Scanner
	previews preview.Generator
	hub      Publisher
}

// NewIngestService creates the ingestion pipeline.
func NewIngestService(repo Catalog, store storage.Store, scanner scan.Scanner, previews preview.Generator, hub Publisher) *IngestService {
	return &IngestService{
		repo:     repo,
		store:    store,
		scanner:  scanner,
		previews: previews,
		hub:      hub,
	}
}

// Ingest processes every file of a batch independently: one file's failure
// never prevents the rest from being attempted, recorded and broadcast.
//
// Each started file runs to a terminal state even if the client disconnects
// mid-batch; files not yet started when the request context dies are
// reported as not attempted.
func (s *IngestService) Ingest(ctx context.Context, user string, batch []UploadFile) []Outcome {
	outcomes := make([]Outcome, 0, len(batch))

	if err := ValidateUsername(user); err != nil {
		for _, file := range batch {
			outcomes = append(outcomes, Outcome{Filename: file.Name, Reason: err.Error()})
		}
		return outcomes
	}

	for _, file := range batch {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{
				Filename: file.Name,
				Reason:   "not attempted: client disconnected",
			})
			continue
		}
		// Detached from request cancellation so a started file always
		// reaches a terminal state (no orphaned partial writes).
		outcomes = append(outcomes, s.ingestOne(context.WithoutCancel(ctx), user, file))
	}

	return outcomes
}

// ingestOne drives a single file through the state machine:
// received -> classified -> scanned -> previewed -> persisted -> notified.
// Both rejection paths delete the written bytes before returning.
func (s *IngestService) ingestOne(ctx context.Context, user string, file UploadFile) Outcome {
	fail := func(rel string, err error) Outcome {
		slog.Warn("file rejected",
			"user", user,
			"filename", file.Name,
			"reason", err,
		)
		return Outcome{Filename: file.Name, RelPath: rel, Reason: err.Error()}
	}

	rel, err := SanitizeRelPath(file.Name)
	if err != nil {
		return fail("", err)
	}

	written, err := s.store.Save(user, rel, file.Data)
	if err != nil {
		return fail(rel, err)
	}
	storedPath := s.store.Path(user, rel)

	detected, err := classify.Detect(storedPath)
	if err != nil {
		s.discard(user, rel)
		return fail(rel, err)
	}
	if err := classify.Check(detected, file.DeclaredType); err != nil {
		s.discard(user, rel)
		return fail(rel, err)
	}

	if err := s.scanner.Scan(ctx, storedPath); err != nil {
		s.discard(user, rel)
		return fail(rel, err)
	}

	// Preview failures do not void ingestion: the record is still created,
	// with no preview reference.
	previewRef, err := s.previews.Generate(ctx, user, rel, storedPath, detected)
	if err != nil {
		slog.Warn("preview generation failed",
			"user", user,
			"relpath", rel,
			"error", err,
		)
		previewRef = ""
	}

	record := &database.FileRecord{
		Username:     user,
		RelPath:      rel,
		Filename:     file.Name,
		DetectedType: detected,
		DeclaredType: file.DeclaredType,
		SizeBytes:    written,
		PreviewRef:   previewRef,
		CreatedAt:    time.Now().UnixMilli(),
	}

	if err := s.repo.Insert(ctx, record); err != nil {
		s.discard(user, rel)
		if previewRef != "" {
			if rerr := s.previews.Remove(previewRef); rerr != nil {
				slog.Error("failed to remove preview of rejected file",
					"user", user,
					"preview", previewRef,
					"error", rerr,
				)
			}
		}
		return fail(rel, err)
	}

	// Publish strictly after the record is durably inserted.
	s.hub.Publish(user, notify.Event{Type: "fileAdded", File: record})

	slog.Info("file ingested",
		"user", user,
		"relpath", rel,
		"type", detected,
		"size", written,
		"preview", previewRef != "",
	)

	return Outcome{
		Filename: file.Name,
		RelPath:  rel,
		OK:       true,
		Record:   record,
	}
}

// discard removes stored bytes after a rejection. A failed removal is
// logged rather than reported: the orphan sweeper reconciles any bytes
// left behind.
func (s *IngestService) discard(user, rel string) {
	if err := s.store.Delete(user, rel); err != nil {
		slog.Error("failed to remove rejected file",
			"user", user,
			"relpath", rel,
			"error", err,
		)
	}
}

// List returns a user's records in insertion order, optionally narrowed by
// filename substring and detected-type prefix. Unknown users yield an
// empty list, not an error.
func (s *IngestService) List(ctx context.Context, user, nameContains, typePrefix string) ([]database.FileRecord, error) {
	if err := ValidateUsername(user); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, user, nameContains, typePrefix)
}

// Archive streams a zip of the namespace's entire storage tree to w.
// Returns ErrNamespaceNotFound when the user has no storage directory.
func (s *IngestService) Archive(user string, w io.Writer) error {
	if err := ValidateUsername(user); err != nil {
		return err
	}
	dir, err := s.store.UserDir(user)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNamespaceNotFound
		}
		return err
	}
	return storage.ZipDirectory(w, dir)
}

// ValidateUsername checks that a client-supplied namespace key is a single
// clean path segment, so it can only ever address its own directory under
// the storage roots.
func ValidateUsername(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty username", ErrInvalidUser)
	case name == "." || name == "..":
		return fmt.Errorf("%w: reserved name %q", ErrInvalidUser, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidUser, name)
	}
	return nil
}

// SanitizeRelPath validates and normalizes a client-supplied relative path.
// Backslashes are normalized, the path is cleaned, and absolute prefixes or
// traversal outside the namespace root are rejected.
func SanitizeRelPath(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, "\\", "/"))

	switch {
	case cleaned == "" || cleaned == "." || cleaned == "/":
		return "", fmt.Errorf("%w: empty filename", ErrInvalidPath)
	case strings.HasPrefix(cleaned, "/"):
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidPath, name)
	case cleaned == ".." || strings.HasPrefix(cleaned, "../"):
		return "", fmt.Errorf("%w: path %q escapes the namespace root", ErrInvalidPath, name)
	}

	return cleaned, nil
}
