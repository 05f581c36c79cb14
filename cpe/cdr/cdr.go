// Package cdr handles the ZIP packaging the remote service speaks:
// outgoing documents travel zipped, and the returned receipt archive
// (CDR) is stored opaque. Per the compliance rules the CDR is never
// parsed beyond existence checking.
package cdr

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// Pack builds the single-entry ZIP the submission endpoints expect.
func Pack(fileName string, content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("content for %s is empty", fileName)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	entry, err := w.Create(fileName)
	if err != nil {
		return nil, fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := entry.Write(content); err != nil {
		return nil, fmt.Errorf("write zip entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// Valid reports whether archive is a readable ZIP with at least one
// entry. This is the full extent of CDR inspection.
func Valid(archive []byte) bool {
	if len(archive) == 0 {
		return false
	}
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	return err == nil && len(r.File) > 0
}

// Entries lists entry names, used by tests and diagnostics.
func Entries(archive []byte) ([]string, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// Extract returns the content of the named entry, used by tests.
func Extract(archive []byte, name string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %s not found", name)
}
