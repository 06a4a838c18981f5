// Package testutil provides an in-process fake of the cloud archive API for
// engine and reconciler tests. It stores uploads as raw JSON objects so every
// field a client sends comes back unchanged on list.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"
)

// FakeArchive is a minimal archive server: bearer auth, per-image storage,
// a tag set, and a configurable image quota.
type FakeArchive struct {
	Server *httptest.Server

	mu         sync.Mutex
	token      string
	quotaLimit int
	images     map[string]map[string]interface{}
	tags       map[string]map[string]interface{}

	// UploadOrder records image uuids in the order they were first uploaded.
	UploadOrder []string
	// TagDeletes records every DELETE /sync/tags call, including repeats.
	TagDeletes []string
}

// NewFakeArchive starts the server. It shuts down with the test.
func NewFakeArchive(t *testing.T, token string) *FakeArchive {
	t.Helper()

	f := &FakeArchive{
		token:  token,
		images: make(map[string]map[string]interface{}),
		tags:   make(map[string]map[string]interface{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sync/status", f.handleStatus)
	mux.HandleFunc("POST /sync/image", f.handleUpload)
	mux.HandleFunc("PATCH /sync/image/{uuid}", f.handlePatch)
	mux.HandleFunc("DELETE /sync/image/{uuid}", f.handleDeleteImage)
	mux.HandleFunc("GET /sync/images", f.handleListImages)
	mux.HandleFunc("GET /sync/tags", f.handleListTags)
	mux.HandleFunc("POST /sync/tags", f.handlePushTag)
	mux.HandleFunc("DELETE /sync/tags/{id}", f.handleDeleteTag)

	f.Server = httptest.NewServer(f.auth(mux))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the server base URL.
func (f *FakeArchive) URL() string {
	return f.Server.URL
}

// SetQuotaLimit caps the image count. Zero means unlimited.
func (f *FakeArchive) SetQuotaLimit(limit int) {
	f.mu.Lock()
	f.quotaLimit = limit
	f.mu.Unlock()
}

// SeedImage plants a remote record directly, bypassing quota.
func (f *FakeArchive) SeedImage(uuid string, fields map[string]interface{}) {
	img := map[string]interface{}{"uuid": uuid, "timestamp": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range fields {
		img[k] = v
	}
	f.mu.Lock()
	f.images[uuid] = img
	f.mu.Unlock()
}

// SeedTag plants a remote tag directly.
func (f *FakeArchive) SeedTag(id, name, color string, createdAt time.Time) {
	f.mu.Lock()
	f.tags[id] = map[string]interface{}{
		"id":        id,
		"name":      name,
		"color":     color,
		"createdAt": createdAt.UTC().Format(time.RFC3339),
	}
	f.mu.Unlock()
}

// ImageCount returns how many images the archive holds.
func (f *FakeArchive) ImageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

// HasImage reports whether the uuid is stored.
func (f *FakeArchive) HasImage(uuid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.images[uuid]
	return ok
}

// ImageField returns one stored field of an image.
func (f *FakeArchive) ImageField(uuid, field string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[uuid]
	if !ok {
		return nil
	}
	return img[field]
}

// HasTag reports whether the tag id is stored.
func (f *FakeArchive) HasTag(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tags[id]
	return ok
}

// TagNames returns the stored tag names, sorted.
func (f *FakeArchive) TagNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.tags))
	for _, tag := range f.tags {
		names = append(names, tag["name"].(string))
	}
	sort.Strings(names)
	return names
}

func (f *FakeArchive) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeArchive) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	ids := make([]string, 0, len(f.images))
	for uuid := range f.images {
		ids = append(ids, uuid)
	}
	sort.Strings(ids)
	resp := map[string]interface{}{
		"syncEnabled":   true,
		"imagesInCloud": len(f.images),
		"imageLimit":    f.quotaLimit,
		"lastSyncTime":  time.Now().UTC().Format(time.RFC3339),
		"syncedIds":     ids,
	}
	f.mu.Unlock()
	writeJSON(w, resp)
}

func (f *FakeArchive) handleUpload(w http.ResponseWriter, r *http.Request) {
	var img map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&img); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	uuid, _ := img["uuid"].(string)
	if uuid == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.images[uuid]
	if !exists && f.quotaLimit > 0 && len(f.images) >= f.quotaLimit {
		w.WriteHeader(http.StatusInsufficientStorage)
		return
	}
	if !exists {
		f.UploadOrder = append(f.UploadOrder, uuid)
	}
	f.images[uuid] = img
	w.WriteHeader(http.StatusOK)
}

func (f *FakeArchive) handlePatch(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[uuid]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	for k, v := range patch {
		img[k] = v
	}
	w.WriteHeader(http.StatusOK)
}

func (f *FakeArchive) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.images[uuid]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(f.images, uuid)
	w.WriteHeader(http.StatusOK)
}

func (f *FakeArchive) handleListImages(w http.ResponseWriter, r *http.Request) {
	includeBlobs := r.URL.Query().Get("includeBlobs") == "true"

	f.mu.Lock()
	uuids := make([]string, 0, len(f.images))
	for uuid := range f.images {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)

	out := make([]map[string]interface{}, 0, len(uuids))
	for _, uuid := range uuids {
		img := make(map[string]interface{}, len(f.images[uuid]))
		for k, v := range f.images[uuid] {
			img[k] = v
		}
		if !includeBlobs {
			delete(img, "payloadBase64")
			delete(img, "contentType")
		}
		out = append(out, img)
	}
	f.mu.Unlock()

	writeJSON(w, out)
}

func (f *FakeArchive) handleListTags(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	ids := make([]string, 0, len(f.tags))
	for id := range f.tags {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.tags[id])
	}
	f.mu.Unlock()
	writeJSON(w, out)
}

func (f *FakeArchive) handlePushTag(w http.ResponseWriter, r *http.Request) {
	var tag map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&tag); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	id, _ := tag["id"].(string)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.tags[id] = tag
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *FakeArchive) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TagDeletes = append(f.TagDeletes, id)
	if _, ok := f.tags[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(f.tags, id)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
