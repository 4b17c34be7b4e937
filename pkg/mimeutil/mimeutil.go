// Package mimeutil detects the media type of stored files.
package mimeutil

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// octetStream is what mimetype reports when it recognises nothing.
const octetStream = "application/octet-stream"

// Detect returns the bare media type of the content read from r, without
// parameters such as charset. When the content is not recognised the file
// name extension is consulted; an empty string means unknown.
func Detect(r io.Reader, name string) (string, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to detect mime type: %w", err)
	}
	if media := bare(mt.String()); media != octetStream {
		return media, nil
	}
	return FromName(name), nil
}

// FromName guesses the media type from the file extension only.
func FromName(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return bare(mime.TypeByExtension(ext))
}

func bare(contentType string) string {
	if contentType == "" {
		return ""
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return media
}
