// Package storage is the object storage gateway used by the ingestion flows.
//
// Keys are always chosen by the caller ({producer_code}/{category}/{filename});
// the gateway never invents them. Persisted references are absolute URLs
// built by URL and turned back into keys by KeyFromURL.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrInvalidSignature = errors.New("signed url is invalid")
	ErrSignatureExpired = errors.New("signed url has expired")
)

// ObjectStore is the capability the orchestrator depends on.
type ObjectStore interface {
	// Put uploads body under key. An empty contentType is inferred from
	// the key's extension.
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	// Delete accepts a bare key or an absolute URL produced by URL.
	Delete(ctx context.Context, keyOrURL string) error
	// Sign returns a time limited download URL. Signing never checks that
	// the object exists; an expired or missing object fails on fetch.
	Sign(ctx context.Context, key string, ttl time.Duration) (string, error)
	URL(key string) string
	KeyFromURL(rawURL string) string
}

// Lister enumerates keys under a prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Store is implemented by both backends.
type Store interface {
	ObjectStore
	Lister
}
