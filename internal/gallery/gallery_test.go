package gallery

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, opts ...HandlerOption) (*httptest.Server, *Store) {
	t.Helper()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	srv := httptest.NewServer(NewRouter(NewHandler(s, opts...)))
	t.Cleanup(srv.Close)
	return srv, s
}

func postFile(t *testing.T, url, name string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(content)
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	return resp
}

func TestUploadTwiceKeepsOneFile(t *testing.T) {
	srv, store := newTestServer(t)

	for _, content := range []string{"first", "second"} {
		resp := postFile(t, srv.URL+"/doUpload?dir=/image/", "departures.jpg", []byte(content))
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(body) != uploadReply {
			t.Fatalf("upload: status %d body %q", resp.StatusCode, body)
		}
	}

	files, err := store.List("/image/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 || files[0].Name != "departures.jpg" {
		t.Fatalf("files = %+v, want one departures.jpg", files)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), "image", "departures.jpg"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("stored content = %q, want the latest upload", data)
	}
}

func TestFileListAndImage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postFile(t, srv.URL+"/doUpload?dir=/image/", "todoist_today.jpg", []byte("jpeg"))
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/filelist?dir=/image/")
	if err != nil {
		t.Fatalf("GET filelist: %v", err)
	}
	var files []File
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		t.Fatalf("decode filelist: %v", err)
	}
	resp.Body.Close()
	if len(files) != 1 || files[0].Path != "/image/todoist_today.jpg" || files[0].Size != 4 {
		t.Fatalf("files = %+v", files)
	}

	resp, err = http.Get(srv.URL + "/image/todoist_today.jpg")
	if err != nil {
		t.Fatalf("GET image: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "jpeg" {
		t.Fatalf("image: status %d body %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("Content-Type = %q", ct)
	}

	resp, err = http.Get(srv.URL + "/image/missing.jpg")
	if err != nil {
		t.Fatalf("GET missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing image status = %d", resp.StatusCode)
	}
}

func TestDelete(t *testing.T) {
	srv, store := newTestServer(t)

	resp := postFile(t, srv.URL+"/doUpload?dir=/image/", "a.jpg", []byte("x"))
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/delete?file=/image/a.jpg", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	files, _ := store.List("/image/")
	if len(files) != 0 {
		t.Fatalf("files after delete = %+v", files)
	}

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE again: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d", resp.StatusCode)
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	srv, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("note", "no file here")
	mw.Close()

	resp, err := http.Post(srv.URL+"/doUpload?dir=/image/", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMalformedContentLengthQuirk(t *testing.T) {
	srv, store := newTestServer(t, WithMalformedContentLength(true))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "departures.jpg")
	part.Write([]byte("jpeg"))
	mw.Close()

	_, err := http.Post(srv.URL+"/doUpload?dir=/image/", mw.FormDataContentType(), &body)
	if err == nil || !strings.Contains(err.Error(), "Content-Length") {
		t.Fatalf("expected a Content-Length parse error from net/http, got %v", err)
	}

	// The file is stored even though the reply is broken.
	files, _ := store.List("/image/")
	if len(files) != 1 {
		t.Fatalf("files = %+v, want one", files)
	}
}

func TestStoreConfinesPaths(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	f, err := s.Save("/../../etc/", "../passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if f.Path != "/etc/passwd" {
		t.Fatalf("path = %q", f.Path)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "etc", "passwd")); err != nil {
		t.Fatalf("file not stored under root: %v", err)
	}

	if _, err := s.Save("/image/", "..", strings.NewReader("x")); err != ErrInvalidName {
		t.Fatalf("Save(..) err = %v, want ErrInvalidName", err)
	}
}
