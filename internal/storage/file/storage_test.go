package file

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aliskhannn/status-board/internal/config"
)

// fakeS3 answers just enough of the S3 API for bucket checks and single PUTs.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case key != "" && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = body
		f.types[bucket+"/"+key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestStorageSaveOverwritesStableKey(t *testing.T) {
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := config.Storage{
		Endpoint:   strings.TrimPrefix(srv.URL, "http://"),
		AccessKey:  "minio",
		SecretKey:  "minio123",
		BucketName: "status-board",
		Region:     "us-east-1",
		Prefix:     "boards",
	}

	ctx := context.Background()
	s, err := NewStorage(ctx, cfg)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	if !fake.buckets["status-board"] {
		t.Fatal("bucket was not created")
	}

	for _, content := range []string{"first", "second"} {
		key, err := s.Save(ctx, "/tmp/out/departures.jpg", bytes.NewReader([]byte(content)), int64(len(content)))
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if key != "boards/departures.jpg" {
			t.Fatalf("key = %q", key)
		}
	}

	if len(fake.objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(fake.objects))
	}
	// Unsigned streaming uploads wrap the payload in aws-chunked framing.
	if got := string(fake.objects["status-board/boards/departures.jpg"]); !strings.Contains(got, "second") || strings.Contains(got, "first") {
		t.Fatalf("object content = %q", got)
	}
	if ct := fake.types["status-board/boards/departures.jpg"]; ct != "image/jpeg" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestNewStorageRequiresEndpoint(t *testing.T) {
	if _, err := NewStorage(context.Background(), config.Storage{}); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
