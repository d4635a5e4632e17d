package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected OS/Arch to be set, got %q/%q", info.OS, info.Arch)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_SET_VAR", "custom")
	t.Setenv("TEST_EMPTY_VAR", "")

	tests := []struct {
		key  string
		want string
	}{
		{"TEST_SET_VAR", "custom"},
		{"TEST_EMPTY_VAR", "default"},
		{"TEST_NEVER_SET_VAR", "default"},
	}
	for _, tt := range tests {
		if got := getEnv(tt.key, "default"); got != tt.want {
			t.Errorf("getEnv(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"FALSE", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := getEnvBool("TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Hour},
		{"90s", 90 * time.Second},
		{"2h", 2 * time.Hour},
		{"soon", time.Hour},
		{"-5m", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := getEnvDuration("TEST_DURATION", time.Hour); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvBytes(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"", 1024},
		{"4096", 4096},
		{"64MiB", 64 << 20},
		{"10 MB", 10_000_000},
		{"0", 1024},
		{"huge", 1024},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BYTES", tt.value)
			if got := getEnvBytes("TEST_BYTES", 1024); got != tt.want {
				t.Errorf("getEnvBytes(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TEST_DOTENV_A=from-file\nTEST_DOTENV_B=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Real environment wins over the file.
	t.Setenv("TEST_DOTENV_A", "from-env")
	t.Setenv("TEST_DOTENV_B", "")
	os.Unsetenv("TEST_DOTENV_B")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile() error = %v", err)
	}
	if got := os.Getenv("TEST_DOTENV_A"); got != "from-env" {
		t.Errorf("TEST_DOTENV_A = %q, want from-env", got)
	}
	if got := os.Getenv("TEST_DOTENV_B"); got != "from-file" {
		t.Errorf("TEST_DOTENV_B = %q, want from-file", got)
	}

	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); !os.IsNotExist(err) {
		t.Errorf("loadEnvFile(missing) error = %v, want not-exist", err)
	}
}

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ALLOWED_PASSWORDS", "a,b")
	t.Setenv("UPLOAD_DIR", filepath.Join(root, "uploads"))
	t.Setenv("WORK_DIR", filepath.Join(root, "work"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "data"))
	t.Setenv("PORT", "8081")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("MAX_CHUNK_BYTES", "8MiB")
	t.Setenv("TRANSCODE_WORKERS", "2")
	t.Setenv("NVIDIA_HARDWARE_ACCELERATION", "true")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.AllowedPasswords != "a,b" || config.Port != "8081" {
		t.Errorf("config = %+v", config)
	}
	if config.JobTTL != 30*time.Minute || config.SessionTTL != time.Hour {
		t.Errorf("TTLs = %v / %v", config.JobTTL, config.SessionTTL)
	}
	if config.MaxChunkBytes != 8<<20 {
		t.Errorf("MaxChunkBytes = %d", config.MaxChunkBytes)
	}
	if config.TranscodeWorkers != 2 || !config.HardwareAcceleration {
		t.Errorf("transcode settings = %d workers, hw %v", config.TranscodeWorkers, config.HardwareAcceleration)
	}
	if config.CORSOrigin != "*" {
		t.Errorf("CORSOrigin = %q, want *", config.CORSOrigin)
	}
	if !config.HistoryEnabled || config.DatabasePath != filepath.Join(root, "data", "uploads.db") {
		t.Errorf("history = %v at %q", config.HistoryEnabled, config.DatabasePath)
	}
	for _, dir := range []string{config.UploadDir, config.WorkDir, config.DatabaseDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}

func TestLoadConfigRejectsFileAsUploadDir(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UPLOAD_DIR", file)
	t.Setenv("WORK_DIR", filepath.Join(root, "work"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "data"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() succeeded with a file as UPLOAD_DIR")
	}
}

func TestGetRoutes(t *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}
	router := mux.NewRouter()
	router.HandleFunc("/upload", noop).Methods(http.MethodPost).Name("upload")
	router.HandleFunc("/job/{id}", noop).Methods(http.MethodGet, http.MethodHead)
	router.PathPrefix("/files/").HandlerFunc(noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 4 {
		t.Fatalf("got %d routes, want 4: %+v", len(routes), routes)
	}
	if routes[0] != (RouteInfo{Method: http.MethodPost, Path: "/upload", Name: "upload"}) {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[3].Method != "*" {
		t.Errorf("prefix route method = %q, want *", routes[3].Method)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/upload":           "upload",
		"/job/{id}":         "job",
		"/api/uploads":      "api/uploads",
		"/api/uploads/{id}": "api/uploads",
		"/":                 "",
		"/files/{path:.*}":  "files",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}
