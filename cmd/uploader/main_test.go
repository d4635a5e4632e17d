package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"file-uploader/internal/auth"
	"file-uploader/internal/handlers"
	"file-uploader/internal/jobs"
	"file-uploader/internal/transcoder"
	"file-uploader/internal/uploads"
)

const testSecret = "letmein"

// copyTranscoder stands in for ffmpeg: text files are "not a video",
// everything else is copied to the output.
type copyTranscoder struct{}

func (copyTranscoder) Transcode(_ context.Context, opts transcoder.Options) error {
	data, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return err
	}
	if filepath.Ext(opts.InputPath) == ".txt" {
		return transcoder.ErrNotAVideo
	}
	return os.WriteFile(opts.OutputPath, data, 0o644)
}

type testServer struct {
	*httptest.Server
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	uploadDir := filepath.Join(root, "uploads")

	store := jobs.NewStore(jobs.StoreConfig{TTL: time.Hour})
	t.Cleanup(store.Close)
	manager := jobs.NewManager(store, jobs.ManagerConfig{Workers: 1, QueueSize: 4})
	manager.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	fs := afero.NewOsFs()
	svc := uploads.NewService(fs, uploads.Config{
		UploadDir: uploadDir,
		WorkDir:   filepath.Join(root, "work"),
	}, copyTranscoder{}, manager, nil)
	t.Cleanup(svc.Close)

	h := handlers.New(handlers.Config{
		Uploader:  svc,
		Jobs:      store,
		Auth:      auth.NewGate(testSecret),
		Files:     fs,
		UploadDir: uploadDir,
	})

	srv := httptest.NewServer(setupRouter(h))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, uploadDir: uploadDir}
}

func (s *testServer) upload(t *testing.T, query string, fields map[string]string, name string, content []byte) (int, map[string]string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()

	resp, err := http.Post(s.URL+"/upload"+query, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	defer resp.Body.Close()

	out := map[string]string{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *testServer) pollJob(t *testing.T, id string) map[string]string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(s.URL + "/job/" + id)
		if err != nil {
			t.Fatal(err)
		}
		job := map[string]string{}
		_ = json.NewDecoder(resp.Body).Decode(&job)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /job/%s = %d", id, resp.StatusCode)
		}
		if job["status"] != "transcoding" {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s still transcoding", id)
	return nil
}

func TestChunkedUploadOverHTTP(t *testing.T) {
	s := newTestServer(t)

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<16) // 1 MiB
	fields := map[string]string{"password": testSecret, "folder": "big"}

	fields["action"] = "nuke"
	if code, _ := s.upload(t, "", fields, "data.bin", nil); code != http.StatusOK {
		t.Fatalf("nuke = %d", code)
	}

	const chunk = 256 << 10
	for off := 0; off < len(payload); off += chunk {
		fields["action"] = "append"
		if code, res := s.upload(t, "", fields, "data.bin", payload[off:off+chunk]); code != http.StatusOK {
			t.Fatalf("append at %d = %d %v", off, code, res)
		}
	}

	fields["action"] = "done"
	code, res := s.upload(t, "", fields, "data.bin", nil)
	if code != http.StatusOK || res["filename"] != "data.bin" || res["url"] != "/files/big/data.bin" {
		t.Fatalf("done = %d %v", code, res)
	}

	resp, err := http.Get(s.URL + res["url"])
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got bytes.Buffer
	_, _ = got.ReadFrom(resp.Body)
	if !bytes.Equal(got.Bytes(), payload) {
		t.Errorf("downloaded %d bytes, want the %d uploaded", got.Len(), len(payload))
	}
}

func TestTranscodeJobsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	fields := map[string]string{"password": testSecret}

	code, res := s.upload(t, "?transcode=true", fields, "clip.mov", []byte("video bytes"))
	if code != http.StatusOK || res["status"] != uploads.StatusTranscodingStarted || res["jobId"] == "" {
		t.Fatalf("upload = %d %v", code, res)
	}
	job := s.pollJob(t, res["jobId"])
	if job["status"] != "completed" || job["filename"] != "clip_nice.mp4" {
		t.Errorf("job = %v", job)
	}

	code, res = s.upload(t, "?transcode=true", fields, "notes.txt", []byte("plain text"))
	if code != http.StatusOK {
		t.Fatalf("upload = %d %v", code, res)
	}
	job = s.pollJob(t, res["jobId"])
	if job["status"] != "completed" || job["filename"] != "notes.txt" {
		t.Errorf("non-video job = %v", job)
	}
	if data, err := os.ReadFile(filepath.Join(s.uploadDir, "notes.txt")); err != nil || string(data) != "plain text" {
		t.Errorf("original not preserved: %q, %v", data, err)
	}

	resp, err := http.Get(s.URL + "/job/does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown job = %d, want 404", resp.StatusCode)
	}
}

func TestTraversalRejectedOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.upload(t, "", map[string]string{"password": testSecret, "folder": "../../etc"}, "passwd", []byte("x"))
	if code != http.StatusBadRequest {
		t.Errorf("traversal upload = %d, want 400", code)
	}
	if _, err := os.Stat(filepath.Join(s.uploadDir, "..", "..", "etc", "passwd")); err == nil {
		t.Error("file written outside the upload root")
	}
}

func TestSingleUploadOverwritesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	fields := map[string]string{"password": testSecret, "action": "single"}

	for _, body := range []string{"first and longer", "second"} {
		if code, res := s.upload(t, "", fields, "x.bin", []byte(body)); code != http.StatusOK {
			t.Fatalf("upload = %d %v", code, res)
		}
	}
	data, err := os.ReadFile(filepath.Join(s.uploadDir, "x.bin"))
	if err != nil || string(data) != "second" {
		t.Errorf("content = %q, %v", data, err)
	}
}

func TestUnauthorizedOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.upload(t, "", map[string]string{"password": "nope"}, "a.txt", []byte("x"))
	if code != http.StatusUnauthorized {
		t.Errorf("upload = %d, want 401", code)
	}
	if _, err := os.Stat(filepath.Join(s.uploadDir, "a.txt")); err == nil {
		t.Error("unauthorized upload was stored")
	}
}

func TestRouterMethods(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/upload", http.StatusMethodNotAllowed},
		{http.MethodGet, "/livez", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/files/missing.bin", http.StatusNotFound},
		{http.MethodGet, "/api/uploads?password=" + testSecret, http.StatusOK},
		{http.MethodGet, "/api/uploads", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, s.URL+tt.path, http.NoBody)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}
}
