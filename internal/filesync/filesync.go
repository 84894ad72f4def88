// Package filesync is the folder based secondary store (Dropbox in
// production). Paths are always absolute and normalised with NormPath.
package filesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	TypeFile   = "FileMetadata"
	TypeFolder = "FolderMetadata"
)

var ErrNotConfigured = errors.New("file sync backend is not configured")

type Entry struct {
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	Type           string     `json:"type"`
	Size           *uint64    `json:"size,omitempty"`
	ServerModified *time.Time `json:"server_modified,omitempty"`
}

type Backend interface {
	List(ctx context.Context, folder string) ([]Entry, error)
	Upload(ctx context.Context, dst string, r io.Reader, size int64) error
	// Download returns the file content and its base name.
	Download(ctx context.Context, src string) ([]byte, string, error)
	// Move creates missing destination folders and auto-renames on conflict.
	Move(ctx context.Context, from, to string) error
}

// NormPath makes p absolute, collapses duplicate slashes and drops a
// trailing slash. The empty path is the root.
func NormPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func ParentDir(p string) string {
	return path.Dir(NormPath(p))
}

// Consume downloads src and then moves it to dst. The move is only attempted
// after the download succeeded, so a failed call never loses the file.
func Consume(ctx context.Context, b Backend, src, dst string) ([]byte, string, error) {
	data, name, err := b.Download(ctx, src)
	if err != nil {
		return nil, "", fmt.Errorf("consume: %w", err)
	}
	if err := b.Move(ctx, src, dst); err != nil {
		return nil, "", fmt.Errorf("consume: %w", err)
	}
	return data, name, nil
}
