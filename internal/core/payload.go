package core

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// BuildPayload assembles one multipart upload batch. Part filenames keep
// their relative subfolder paths; mime/multipart's form-file helper strips
// directories, so parts are created with an explicit Content-Disposition.
func BuildPayload(username string, files []LocalFile) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("username", username); err != nil {
		return nil, "", fmt.Errorf("failed to write username field: %w", err)
	}

	for _, f := range files {
		part, err := createFilePart(w, f.RelPath())
		if err != nil {
			return nil, "", err
		}

		src, err := os.Open(f.AbsPath())
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", f.AbsPath(), err)
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.AbsPath(), err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize payload: %w", err)
	}

	return &body, w.FormDataContentType(), nil
}

func createFilePart(w *multipart.Writer, relPath string) (io.Writer, error) {
	contentType := mime.TypeByExtension(filepath.Ext(relPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(relPath)))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create part for %s: %w", relPath, err)
	}
	return part, nil
}

func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, `"`, `\"`)
}
