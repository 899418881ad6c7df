package database

// FileRecord is one row per successfully ingested file. Records are
// append-only: nothing in the server mutates a row after Insert.
type FileRecord struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	RelPath      string `json:"relpath"`
	Filename     string `json:"filename"`
	DetectedType string `json:"detected_type"`
	DeclaredType string `json:"declared_type"`
	SizeBytes    int64  `json:"size_bytes"`
	PreviewRef   string `json:"preview_ref,omitempty"` // relative to the preview root, empty when none
	CreatedAt    int64  `json:"created_at"`            // epoch millis
}
