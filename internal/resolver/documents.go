// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DocumentReader supplies document content for IMPORT requests.
type DocumentReader interface {
	ReadDocument(url string) (string, error)
}

// DirReader resolves document URLs as paths relative to Root.
type DirReader struct {
	Root string
}

// ReadDocument reads url below Root. A file:// prefix is accepted; paths may not
// leave Root.
func (d DirReader) ReadDocument(url string) (string, error) {
	rel := strings.TrimPrefix(url, "file://")
	root := d.Root
	if root == "" {
		root = "."
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	if filepath.IsAbs(rel) {
		full = filepath.Clean(rel)
	}
	if r, err := filepath.Rel(root, full); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("document %q is outside %s", url, root)
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read document %q: %w", url, err)
	}
	return string(b), nil
}
