package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const memoryBackend = "memory"

// Grants stay this long past expiry so late fetches still report
// ErrSignatureExpired, then Sign drops them.
const grantRetention = time.Hour

type ObjectInfo struct {
	Key                string
	Size               int64
	ContentType        string
	ContentDisposition string
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

type grant struct {
	key     string
	expires time.Time
}

// MemoryStore keeps objects in process memory. Signed URLs carry a random
// token that Fetch and ServeHTTP check against the grant table.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	grants  map[string]grant
	baseURL string
	now     func() time.Time
}

// NewMemoryStore returns an empty store whose URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		grants:  make(map[string]grant),
		baseURL: baseURL,
		now:     time.Now,
	}
}

func (m *MemoryStore) URL(key string) string {
	return m.baseURL + key
}

func (m *MemoryStore) KeyFromURL(rawURL string) string {
	return strings.TrimPrefix(rawURL, m.baseURL)
}

func (m *MemoryStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	observe(memoryBackend, "put", err)
	if err != nil {
		return fmt.Errorf("memory put %s: %w", key, err)
	}
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		data: data,
		info: ObjectInfo{
			Key:                key,
			Size:               int64(len(data)),
			ContentType:        contentType,
			ContentDisposition: ContentDisposition(key),
		},
	}
	return nil
}

// Delete is idempotent like S3: removing a missing key succeeds.
func (m *MemoryStore) Delete(ctx context.Context, keyOrURL string) error {
	key := m.KeyFromURL(keyOrURL)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	observe(memoryBackend, "delete", nil)
	return nil
}

func (m *MemoryStore) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	expires := m.now().Add(ttl)

	m.mu.Lock()
	m.pruneGrants()
	m.grants[token] = grant{key: key, expires: expires}
	m.mu.Unlock()

	observe(memoryBackend, "sign", nil)
	q := url.Values{}
	q.Set("token", token)
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	return m.URL(key) + "?" + q.Encode(), nil
}

// pruneGrants must be called with mu held for writing.
func (m *MemoryStore) pruneGrants() {
	cutoff := m.now().Add(-grantRetention)
	for token, g := range m.grants {
		if g.expires.Before(cutoff) {
			delete(m.grants, token)
		}
	}
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	observe(memoryBackend, "list", nil)
	return keys, nil
}

// Stat reports the stored metadata for key.
func (m *MemoryStore) Stat(key string) (ObjectInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.info, ok
}

// Fetch resolves a URL returned by Sign the way an HTTP client would.
func (m *MemoryStore) Fetch(signedURL string) ([]byte, ObjectInfo, error) {
	u, err := url.Parse(signedURL)
	if err != nil {
		return nil, ObjectInfo{}, ErrInvalidSignature
	}
	base, _, _ := strings.Cut(signedURL, "?")
	return m.fetch(m.KeyFromURL(base), u.Query().Get("token"))
}

func (m *MemoryStore) fetch(key, token string) ([]byte, ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.grants[token]
	if !ok || g.key != key {
		return nil, ObjectInfo{}, ErrInvalidSignature
	}
	if m.now().After(g.expires) {
		return nil, ObjectInfo{}, ErrSignatureExpired
	}
	obj, ok := m.objects[key]
	if !ok {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return obj.data, obj.info, nil
}

// ServeHTTP serves signed downloads when the store is mounted under the
// path of its base URL.
func (m *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	base, err := url.Parse(m.baseURL)
	if err != nil {
		http.Error(w, "bad store url", http.StatusInternalServerError)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, base.Path)

	data, info, err := m.fetch(key, r.URL.Query().Get("token"))
	switch err {
	case nil:
	case ErrObjectNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	default:
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", info.ContentDisposition)
	http.ServeContent(w, r, info.Key, time.Time{}, bytes.NewReader(data))
}
