package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mediaforge/internal/config"
)

func TestCheckDirectoryAccessOK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccessMissingPasses(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if !result.Passed {
		t.Fatalf("missing output root is bootstrapped later, expected pass: %s", result.Detail)
	}
}

func TestCheckDirectoryAccessNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeDiskSpace(t *testing.T) {
	ok := CheckFreeDiskSpace(t.TempDir(), 1)
	if !ok.Passed {
		t.Fatalf("expected at least 1 MiB free: %s", ok.Detail)
	}
	huge := CheckFreeDiskSpace(t.TempDir(), 1<<40)
	if huge.Passed {
		t.Fatal("expected failure against an absurd minimum")
	}
}

func TestCheckDescriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "good-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"name":"models/m"}`))
	}))
	defer srv.Close()

	good := CheckDescriber(context.Background(), config.Describer{
		APIKey: "good-key", BaseURL: srv.URL, Model: "m",
	})
	if !good.Passed {
		t.Fatalf("expected pass, got: %s", good.Detail)
	}

	bad := CheckDescriber(context.Background(), config.Describer{
		APIKey: "bad-key", BaseURL: srv.URL, Model: "m",
	})
	if bad.Passed {
		t.Fatal("expected failure for rejected key")
	}

	missing := CheckDescriber(context.Background(), config.Describer{BaseURL: srv.URL, Model: "m"})
	if missing.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunAllIncludesBinaryChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Describer.APIKey = ""

	results := RunAll(context.Background(), &cfg)
	names := map[string]bool{}
	for _, result := range results {
		names[result.Name] = true
	}
	for _, want := range []string{"Output directory", "Free disk space", "ImageMagick", "FFmpeg", "ExifTool", "Describer API"} {
		if !names[want] {
			t.Errorf("check %q missing from results %v", want, names)
		}
	}
	if Passed(results) {
		t.Fatal("run with missing API key must not pass overall")
	}
}
