package ort

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testRuntimeVersion = "1.23.1"

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestResolveRuntimeArtifact(t *testing.T) {
	tests := []struct {
		goos, goarch string
		platform     string
		format       string
		wantErr      bool
	}{
		{goos: "darwin", goarch: "arm64", platform: "osx-arm64", format: "tgz"},
		{goos: "darwin", goarch: "amd64", platform: "osx-x86_64", format: "tgz"},
		{goos: "linux", goarch: "amd64", platform: "linux-x64", format: "tgz"},
		{goos: "linux", goarch: "arm64", platform: "linux-aarch64", format: "tgz"},
		{goos: "windows", goarch: "amd64", platform: "win-x64", format: "zip"},
		{goos: "windows", goarch: "arm64", platform: "win-arm64", format: "zip"},
		{goos: "linux", goarch: "riscv64", wantErr: true},
		{goos: "plan9", goarch: "amd64", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := resolveRuntimeArtifact(tt.goos, tt.goarch)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "unsupported platform") {
					t.Fatalf("expected unsupported platform error, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.platform != tt.platform || got.archiveFormat != tt.format {
				t.Fatalf("got %+v, want platform %s format %s", got, tt.platform, tt.format)
			}
		})
	}
}

func TestRuntimeArtifactDownloadURL(t *testing.T) {
	artifact := runtimeArtifacts["linux/amd64"]
	got := artifact.downloadURL("https://example.test/releases", "1.23.1")
	want := "https://example.test/releases/v1.23.1/onnxruntime-linux-x64-1.23.1.tgz"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEnsureSharedLibraryWithExplicitPath(t *testing.T) {
	clearBootstrapEnv(t)

	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("lib"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := EnsureSharedLibrary(context.Background(), WithBootstrapLibraryPath(lib))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != lib {
		t.Fatalf("got %q, want %q", got, lib)
	}
}

func TestEnsureSharedLibraryDownloadAndCache(t *testing.T) {
	for _, platform := range []string{"linux/amd64", "windows/amd64"} {
		t.Run(platform, func(t *testing.T) {
			clearBootstrapEnv(t)
			artifact := runtimeArtifacts[platform]
			goos, goarch, _ := strings.Cut(platform, "/")

			server, hits := newArchiveServer(t, artifact, buildORTArchive(t, artifact, true))
			cacheDir := t.TempDir()
			opts := []BootstrapOption{
				WithBootstrapCacheDir(cacheDir),
				WithBootstrapVersion(testRuntimeVersion),
				WithBootstrapLogger(quietLogger),
				withBootstrapBaseURL(server.URL),
				withBootstrapPlatform(goos, goarch),
			}

			first, err := EnsureSharedLibrary(context.Background(), opts...)
			if err != nil {
				t.Fatalf("first bootstrap failed: %v", err)
			}
			if filepath.Base(first) != artifact.primaryLibrary {
				t.Fatalf("unexpected library %q", first)
			}

			second, err := EnsureSharedLibrary(context.Background(), append(opts, WithBootstrapDisableDownload(true))...)
			if err != nil {
				t.Fatalf("cached bootstrap failed: %v", err)
			}
			if first != second {
				t.Fatalf("cache returned %q, want %q", second, first)
			}
			if got := hits.Load(); got != 1 {
				t.Fatalf("expected one download, got %d", got)
			}
		})
	}
}

func TestEnsureSharedLibraryConcurrentSingleDownload(t *testing.T) {
	clearBootstrapEnv(t)
	artifact := runtimeArtifacts["linux/amd64"]
	server, hits := newArchiveServer(t, artifact, buildORTArchive(t, artifact, true))
	cacheDir := t.TempDir()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := EnsureSharedLibrary(context.Background(),
				WithBootstrapCacheDir(cacheDir),
				WithBootstrapLogger(quietLogger),
				withBootstrapBaseURL(server.URL),
				withBootstrapPlatform("linux", "amd64"),
			)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent bootstrap failed: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected one download across workers, got %d", got)
	}
}

func TestEnsureSharedLibraryChecksum(t *testing.T) {
	clearBootstrapEnv(t)
	artifact := runtimeArtifacts["linux/amd64"]
	archive := buildORTArchive(t, artifact, true)
	server, _ := newArchiveServer(t, artifact, archive)
	sum := sha256.Sum256(archive)

	base := func() []BootstrapOption {
		return []BootstrapOption{
			WithBootstrapCacheDir(t.TempDir()),
			WithBootstrapLogger(quietLogger),
			withBootstrapBaseURL(server.URL),
			withBootstrapPlatform("linux", "amd64"),
		}
	}

	_, err := EnsureSharedLibrary(context.Background(), append(base(), WithBootstrapExpectedSHA256(strings.Repeat("0", 64)))...)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got: %v", err)
	}

	if _, err := EnsureSharedLibrary(context.Background(), append(base(), WithBootstrapExpectedSHA256(hex.EncodeToString(sum[:])))...); err != nil {
		t.Fatalf("expected matching checksum to succeed, got: %v", err)
	}
}

func TestEnsureSharedLibraryFailures(t *testing.T) {
	artifact := runtimeArtifacts["linux/amd64"]

	tests := []struct {
		name    string
		archive []byte
		status  int
		opts    []BootstrapOption
		wantErr string
	}{
		{
			name:    "download disabled",
			opts:    []BootstrapOption{WithBootstrapDisableDownload(true)},
			wantErr: "download is disabled",
		},
		{
			name:    "archive without library",
			archive: buildORTArchive(t, artifact, false),
			wantErr: "did not contain expected shared library",
		},
		{
			name:    "not an archive",
			archive: []byte("definitely not gzip"),
			wantErr: "failed to read gzip archive",
		},
		{
			name:    "http error",
			status:  http.StatusNotFound,
			wantErr: "HTTP 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearBootstrapEnv(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					http.Error(w, "missing", tt.status)
					return
				}
				_, _ = w.Write(tt.archive)
			}))
			t.Cleanup(server.Close)

			cacheDir := t.TempDir()
			opts := append([]BootstrapOption{
				WithBootstrapCacheDir(cacheDir),
				WithBootstrapLogger(quietLogger),
				withBootstrapBaseURL(server.URL),
				withBootstrapPlatform("linux", "amd64"),
			}, tt.opts...)

			_, err := EnsureSharedLibrary(context.Background(), opts...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got: %v", tt.wantErr, err)
			}

			leftovers, _ := filepath.Glob(filepath.Join(cacheDir, "onnxruntime-*.archive"))
			if len(leftovers) != 0 {
				t.Fatalf("temporary archives left behind: %v", leftovers)
			}
		})
	}
}

func TestEnsureSharedLibraryCanceledContext(t *testing.T) {
	clearBootstrapEnv(t)
	artifact := runtimeArtifacts["linux/amd64"]
	server, _ := newArchiveServer(t, artifact, buildORTArchive(t, artifact, true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EnsureSharedLibrary(ctx,
		WithBootstrapCacheDir(t.TempDir()),
		WithBootstrapLogger(quietLogger),
		withBootstrapBaseURL(server.URL),
		withBootstrapPlatform("linux", "amd64"),
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestBootstrapOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  BootstrapOption
	}{
		{name: "empty library path", opt: WithBootstrapLibraryPath("  ")},
		{name: "empty cache dir", opt: WithBootstrapCacheDir("")},
		{name: "empty version", opt: WithBootstrapVersion(" ")},
		{name: "short checksum", opt: WithBootstrapExpectedSHA256("abc")},
		{name: "non-hex checksum", opt: WithBootstrapExpectedSHA256(strings.Repeat("z", 64))},
		{name: "nil logger", opt: WithBootstrapLogger(nil)},
		{name: "zero lock timeout", opt: WithBootstrapLockTimeout(0)},
		{name: "empty base URL", opt: withBootstrapBaseURL(" / ")},
		{name: "nil HTTP client", opt: withBootstrapHTTPClient(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opt(&bootstrapConfig{}); err == nil {
				t.Fatal("expected option to reject input")
			}
		})
	}

	var cfg bootstrapConfig
	if err := WithBootstrapExpectedSHA256(strings.Repeat("AB", 32))(&cfg); err != nil {
		t.Fatalf("uppercase checksum should be accepted: %v", err)
	}
	if cfg.expectedSHA256 != strings.Repeat("ab", 32) {
		t.Fatalf("checksum should be normalized to lowercase, got %q", cfg.expectedSHA256)
	}
}

func TestResolveBootstrapConfigEnv(t *testing.T) {
	clearBootstrapEnv(t)
	cacheDir := t.TempDir()
	t.Setenv(EnvCacheDir, cacheDir)
	t.Setenv(EnvVersion, "v1.22.0")
	t.Setenv(EnvDisableDownload, "true")

	cfg, err := resolveBootstrapConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.cacheDir != filepath.Clean(cacheDir) || cfg.version != "1.22.0" || !cfg.disableDownload {
		t.Fatalf("env not applied: %+v", cfg)
	}

	// Options win over the environment.
	cfg, err = resolveBootstrapConfig(WithBootstrapVersion("1.23.1"), WithBootstrapDisableDownload(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.version != "1.23.1" || cfg.disableDownload {
		t.Fatalf("options not applied: %+v", cfg)
	}

	t.Setenv(EnvDisableDownload, "maybe")
	if _, err := resolveBootstrapConfig(); err == nil || !strings.Contains(err.Error(), EnvDisableDownload) {
		t.Fatalf("expected invalid boolean error, got: %v", err)
	}
}

func TestNormalizeRuntimeVersion(t *testing.T) {
	for input, want := range map[string]string{
		"1.23.1":   "1.23.1",
		"v1.23.1":  "1.23.1",
		" 1.2.3 ":  "1.2.3",
		"1.23":     "",
		"1.x.0":    "",
		"1..0":     "",
		"":         "",
		"1.2.3.4":  "",
		"-1.2.3":   "",
		"1.2.3-rc": "",
	} {
		got, err := normalizeRuntimeVersion(input)
		if want == "" {
			if err == nil {
				t.Errorf("%q: expected error, got %q", input, got)
			}
			continue
		}
		if err != nil || got != want {
			t.Errorf("%q: got %q, %v; want %q", input, got, err, want)
		}
	}
}

func TestValidateLibraryFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.so")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	for path, wantErr := range map[string]string{
		"":                               "library path is empty",
		dir:                              "points to a directory",
		empty:                            "library file is empty",
		filepath.Join(dir, "missing.so"): "failed to stat library file",
	} {
		if _, err := validateLibraryFile(path); err == nil || !strings.Contains(err.Error(), wantErr) {
			t.Errorf("%q: expected error containing %q, got: %v", path, wantErr, err)
		}
	}
}

func TestResolveExtractedLibraryPath(t *testing.T) {
	artifact := runtimeArtifacts["linux/amd64"]

	installDir := t.TempDir()
	if _, err := resolveExtractedLibraryPath(installDir, artifact); !errors.Is(err, errSharedLibraryNotFound) {
		t.Fatalf("expected not found, got: %v", err)
	}

	libDir := filepath.Join(installDir, "lib")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(libDir, "libonnxruntime.so.1.23.1"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := resolveExtractedLibraryPath(installDir, artifact)
	if err == nil || errors.Is(err, errSharedLibraryNotFound) || !strings.Contains(err.Error(), "none are valid") {
		t.Fatalf("expected invalid candidate error, got: %v", err)
	}

	if err := os.WriteFile(filepath.Join(libDir, "libonnxruntime.so.1.23.1"), []byte("elf"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err := resolveExtractedLibraryPath(installDir, artifact)
	if err != nil || filepath.Base(path) != "libonnxruntime.so.1.23.1" {
		t.Fatalf("expected versioned library via glob, got %q, %v", path, err)
	}
}

func TestSecureArchiveJoin(t *testing.T) {
	base := t.TempDir()

	for _, bad := range []string{"", "/etc/passwd", "../escape", "a/../../escape", `C:\windows`, "."} {
		if _, err := secureArchiveJoin(base, bad); err == nil {
			t.Errorf("%q: expected rejection", bad)
		}
	}

	got, err := secureArchiveJoin(base, `pkg\lib/libonnxruntime.so`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(base, "pkg", "lib", "libonnxruntime.so"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCopyExtractedFileLimit(t *testing.T) {
	var buf bytes.Buffer
	if err := copyExtractedFile(&buf, strings.NewReader("12345"), 5); err != nil {
		t.Fatalf("copy at limit failed: %v", err)
	}
	if err := copyExtractedFile(&buf, strings.NewReader("123456"), 5); err == nil || !strings.Contains(err.Error(), "extraction limit") {
		t.Fatalf("expected limit error, got: %v", err)
	}
}

func TestExtractArchiveSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()

	var tgz bytes.Buffer
	gz := gzip.NewWriter(&tgz)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: "lib/libonnxruntime.so", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}); err != nil {
		t.Fatal(err)
	}
	writeTarFile(t, tw, "README", "readme")
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(dir, "a.tgz")
	if err := os.WriteFile(archive, tgz.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	if err := extractArchive(archive, out, "tgz"); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(out, "lib", "libonnxruntime.so")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("symlink entry should not be extracted, got: %v", err)
	}

	if err := extractArchive(archive, out, "rar"); err == nil || !strings.Contains(err.Error(), "unsupported archive format") {
		t.Fatalf("expected unsupported format error, got: %v", err)
	}
}

func TestWithProcessFileLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "locks", "runtime.lock")

	if err := withProcessFileLock(context.Background(), lockPath, time.Second, nil); err == nil {
		t.Fatal("expected nil callback to be rejected")
	}

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- withProcessFileLock(context.Background(), lockPath, time.Second, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := withProcessFileLock(context.Background(), lockPath, 150*time.Millisecond, func() error { return nil })
	if err == nil || !strings.Contains(err.Error(), "timed out waiting for lock") {
		t.Fatalf("expected lock timeout, got: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("holder failed: %v", err)
	}
	if err := withProcessFileLock(context.Background(), lockPath, time.Second, func() error { return nil }); err != nil {
		t.Fatalf("lock should be free after release: %v", err)
	}
}

func TestInitializeEnvironmentWithBootstrapRejectsDifferentPath(t *testing.T) {
	clearBootstrapEnv(t)
	resetEnvironmentState()
	defer resetEnvironmentState()

	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("lib"), 0o644); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	refCount = 1
	libPath = "/some/other/libonnxruntime.so"
	mu.Unlock()

	err := InitializeEnvironmentWithBootstrap(context.Background(), WithBootstrapLibraryPath(lib))
	if err == nil || !strings.Contains(err.Error(), "cannot change library path") {
		t.Fatalf("expected library path conflict, got: %v", err)
	}
}

func clearBootstrapEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvLibraryPath, EnvCacheDir, EnvVersion, EnvDisableDownload} {
		t.Setenv(name, "")
	}
}

func newArchiveServer(t *testing.T, artifact runtimeArtifact, archive []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	hits := &atomic.Int32{}
	wantPath := "/v" + testRuntimeVersion + "/" + artifact.archiveName(testRuntimeVersion) + "." + artifact.archiveFormat
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)
	return server, hits
}

func buildORTArchive(t *testing.T, artifact runtimeArtifact, includeLibrary bool) []byte {
	t.Helper()
	root := artifact.archiveName(testRuntimeVersion)
	files := map[string]string{root + "/VERSION_NUMBER": testRuntimeVersion}
	if includeLibrary {
		files[root+"/lib/"+artifact.primaryLibrary] = "fake runtime library"
	}

	var buf bytes.Buffer
	switch artifact.archiveFormat {
	case "tgz":
		gz := gzip.NewWriter(&buf)
		tw := tar.NewWriter(gz)
		for name, content := range files {
			writeTarFile(t, tw, name, content)
		}
		if err := tw.Close(); err != nil {
			t.Fatal(err)
		}
		if err := gz.Close(); err != nil {
			t.Fatal(err)
		}
	case "zip":
		zw := zip.NewWriter(&buf)
		for name, content := range files {
			w, err := zw.Create(name)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := io.WriteString(w, content); err != nil {
				t.Fatal(err)
			}
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func writeTarFile(t *testing.T, tw *tar.Writer, name, content string) {
	t.Helper()
	if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(tw, content); err != nil {
		t.Fatal(err)
	}
}
