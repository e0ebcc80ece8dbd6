package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camwatch/internal/config"
	"camwatch/internal/index"
	"camwatch/internal/logger"
	"camwatch/internal/model"
)

func setupTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDirectory:   t.TempDir(),
		UploadURLPrefix: "https://bucket/",
		Cameras: map[string]model.Camera{
			"10": {Channel: "10", Name: "Yard", Streams: map[string]string{"Preview": "https://hls/10/pre", "HD": "https://hls/10/hd"}},
			"2":  {Channel: "2", Name: "Garden", Streams: map[string]string{"Preview": "https://hls/2/pre"}},
			"3":  {Channel: "3", Name: "Attic"},
		},
	}
}

func TestRootHandler(t *testing.T) {
	h := RootHandler()

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/motion/" {
		t.Errorf("GET / = %d %s, expected 307 /motion/", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /elsewhere = %d, expected 404", rec.Code)
	}
}

func TestLiveStreamHandler(t *testing.T) {
	cfg := setupTestConfig(t)

	rec := httptest.NewRecorder()
	LiveStreamHandler(cfg, logger.Nop())(rec, httptest.NewRequest(http.MethodGet, "/motion/", nil))

	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	garden := strings.Index(body, "D2: Garden")
	yard := strings.Index(body, "D10: Yard")
	if garden < 0 || yard < 0 || garden > yard {
		t.Errorf("expected D2 before D10 in output:\n%s", body)
	}
	if strings.Contains(body, "Attic") {
		t.Error("camera without preview must not be listed")
	}
	if !strings.Contains(body, `<a href="https://hls/10/hd">HD</a>`) {
		t.Errorf("missing variant link:\n%s", body)
	}
}

func TestStillsHandler(t *testing.T) {
	cfg := setupTestConfig(t)
	idx := index.New()
	idx.Register("20240101-100000-D2-00000001-aaaaaaaaaaaaaaaa.jpg")
	idx.MarkAnnotated("20240101-100000-D2-00000001-aaaaaaaaaaaaaaaa.jpg", []string{"Person", "Car"})
	idx.Register("20240102-100000-D2-00000002-bbbbbbbbbbbbbbbb.jpg")
	idx.MarkUnannotated("20240102-100000-D2-00000002-bbbbbbbbbbbbbbbb.jpg")

	tests := []struct {
		name        string
		url         string
		contains    []string
		notContains []string
	}{
		{
			name: "default tag lists everything newest first",
			url:  "/motion/still.html",
			contains: []string{
				"all (2)", "Person (1)", "w_annotation (1)", "wo_annotation (1)",
				"20240101-100000-D2-00000001-aaaaaaaaaaaaaaaa.jpg: Person, Car",
				`href="https://bucket/20240101-100000-D2-00000001-aaaaaaaaaaaaaaaa.mp4"`,
			},
			notContains: []string{"https://bucket/20240102-100000-D2-00000002-bbbbbbbbbbbbbbbb.mp4"},
		},
		{
			name:        "selected tag",
			url:         "/motion/still.html?tag=Person",
			contains:    []string{"20240101-100000-D2-00000001-aaaaaaaaaaaaaaaa.jpg"},
			notContains: []string{`src="/motion/20240102-100000-D2-00000002-bbbbbbbbbbbbbbbb.jpg"`},
		},
		{
			name:        "unknown tag",
			url:         "/motion/still.html?tag=Unicorn",
			notContains: []string{`class="still"`},
		},
	}

	h := StillsHandler(cfg, idx, logger.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			body := rec.Body.String()
			for _, s := range tt.contains {
				if !strings.Contains(body, s) {
					t.Errorf("expected %q in body:\n%s", s, body)
				}
			}
			for _, s := range tt.notContains {
				if strings.Contains(body, s) {
					t.Errorf("unexpected %q in body", s)
				}
			}
		})
	}

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/motion/still.html", nil))
	body := rec.Body.String()
	if strings.Index(body, "bbbbbbbbbbbbbbbb.jpg") > strings.Index(body, "aaaaaaaaaaaaaaaa.jpg") {
		t.Error("stills should be listed newest first")
	}
}

func TestStillImageHandler(t *testing.T) {
	cfg := setupTestConfig(t)
	content := []byte("fake jpeg data")
	if err := os.WriteFile(filepath.Join(cfg.DataDirectory, "a.jpg"), content, 0644); err != nil {
		t.Fatal(err)
	}

	h := MotionHandler(cfg, index.New(), logger.Nop())
	tests := []struct {
		url    string
		status int
	}{
		{"/motion/a.jpg", http.StatusOK},
		{"/motion/a.jpg?x=1", http.StatusNotFound},
		{"/motion/missing.jpg", http.StatusNotFound},
		{"/motion/a.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
		if rec.Code != tt.status {
			t.Errorf("GET %s = %d, expected %d", tt.url, rec.Code, tt.status)
		}
	}

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/motion/a.jpg", nil))
	if rec.Body.String() != string(content) || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("unexpected response %q (%s)", rec.Body.String(), rec.Header().Get("Content-Type"))
	}
}

func TestStillImageHandler_RejectsTraversal(t *testing.T) {
	cfg := setupTestConfig(t)
	req := httptest.NewRequest(http.MethodGet, "/motion/x.jpg", nil)
	req.URL.Path = "/motion/../secret.jpg"

	rec := httptest.NewRecorder()
	StillImageHandler(cfg)(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("traversal request = %d, expected 404", rec.Code)
	}
}
