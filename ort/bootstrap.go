package ort

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultOnnxRuntimeVersion is the ONNX Runtime release fetched when no
	// version is configured.
	DefaultOnnxRuntimeVersion = "1.23.1"

	defaultBootstrapBaseURL = "https://github.com/microsoft/onnxruntime/releases/download"

	// Upper bounds for a release archive and for any single extracted file.
	maxArchiveBytes       = 512 << 20
	maxExtractedFileBytes = 256 << 20

	lockPollInterval = 100 * time.Millisecond
)

// Environment variables read by the bootstrap before options are applied.
const (
	EnvLibraryPath     = "ONNXRUNTIME_LIB_PATH"
	EnvCacheDir        = "ONNXRUNTIME_CACHE_DIR"
	EnvVersion         = "ONNXRUNTIME_VERSION"
	EnvDisableDownload = "ONNXRUNTIME_DISABLE_DOWNLOAD"
)

var errSharedLibraryNotFound = errors.New("ONNX Runtime shared library not found")

// BootstrapOption configures EnsureSharedLibrary.
type BootstrapOption func(*bootstrapConfig) error

type bootstrapConfig struct {
	libraryPath     string
	cacheDir        string
	version         string
	disableDownload bool
	expectedSHA256  string
	baseURL         string
	httpClient      *http.Client
	logger          *slog.Logger
	lockTimeout     time.Duration
	goos            string
	goarch          string
}

type runtimeArtifact struct {
	platform       string
	archiveFormat  string
	primaryLibrary string
	libraryGlob    string
}

var runtimeArtifacts = map[string]runtimeArtifact{
	"darwin/arm64":  {platform: "osx-arm64", archiveFormat: "tgz", primaryLibrary: "libonnxruntime.dylib", libraryGlob: "libonnxruntime*.dylib"},
	"darwin/amd64":  {platform: "osx-x86_64", archiveFormat: "tgz", primaryLibrary: "libonnxruntime.dylib", libraryGlob: "libonnxruntime*.dylib"},
	"linux/amd64":   {platform: "linux-x64", archiveFormat: "tgz", primaryLibrary: "libonnxruntime.so", libraryGlob: "libonnxruntime.so*"},
	"linux/arm64":   {platform: "linux-aarch64", archiveFormat: "tgz", primaryLibrary: "libonnxruntime.so", libraryGlob: "libonnxruntime.so*"},
	"windows/amd64": {platform: "win-x64", archiveFormat: "zip", primaryLibrary: "onnxruntime.dll", libraryGlob: "onnxruntime*.dll"},
	"windows/arm64": {platform: "win-arm64", archiveFormat: "zip", primaryLibrary: "onnxruntime.dll", libraryGlob: "onnxruntime*.dll"},
}

// WithBootstrapLibraryPath skips the download and validates an existing library.
func WithBootstrapLibraryPath(path string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("bootstrap library path cannot be empty")
		}
		cfg.libraryPath = path
		return nil
	}
}

// WithBootstrapCacheDir sets the directory holding downloaded runtimes.
func WithBootstrapCacheDir(dir string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return fmt.Errorf("bootstrap cache directory cannot be empty")
		}
		cfg.cacheDir = dir
		return nil
	}
}

// WithBootstrapVersion sets the ONNX Runtime release, for example "1.23.1".
func WithBootstrapVersion(version string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		if strings.TrimSpace(version) == "" {
			return fmt.Errorf("bootstrap version cannot be empty")
		}
		cfg.version = version
		return nil
	}
}

// WithBootstrapDisableDownload makes a cache miss an error instead of a download.
func WithBootstrapDisableDownload(disable bool) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		cfg.disableDownload = disable
		return nil
	}
}

// WithBootstrapExpectedSHA256 pins the checksum of the downloaded archive.
func WithBootstrapExpectedSHA256(checksum string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		checksum = strings.ToLower(strings.TrimSpace(checksum))
		decoded, err := hex.DecodeString(checksum)
		if err != nil || len(decoded) != sha256.Size {
			return fmt.Errorf("expected SHA256 checksum must be 64 hex characters")
		}
		cfg.expectedSHA256 = checksum
		return nil
	}
}

// WithBootstrapLogger receives progress and cache fallback messages.
func WithBootstrapLogger(logger *slog.Logger) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		if logger == nil {
			return fmt.Errorf("bootstrap logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithBootstrapLockTimeout bounds how long to wait for another process that
// is installing the same runtime.
func WithBootstrapLockTimeout(timeout time.Duration) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("bootstrap lock timeout must be > 0, got %s", timeout)
		}
		cfg.lockTimeout = timeout
		return nil
	}
}

func withBootstrapBaseURL(baseURL string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if baseURL == "" {
			return fmt.Errorf("bootstrap base URL cannot be empty")
		}
		cfg.baseURL = baseURL
		return nil
	}
}

func withBootstrapHTTPClient(client *http.Client) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		if client == nil {
			return fmt.Errorf("bootstrap HTTP client cannot be nil")
		}
		cfg.httpClient = client
		return nil
	}
}

func withBootstrapPlatform(goos, goarch string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		cfg.goos, cfg.goarch = goos, goarch
		return nil
	}
}

// EnsureSharedLibrary returns the absolute path of an ONNX Runtime shared
// library, downloading and caching the release archive for the current
// platform when it is not cached yet. Concurrent callers, including other
// processes, share one download through a lock file in the cache directory.
func EnsureSharedLibrary(ctx context.Context, opts ...BootstrapOption) (string, error) {
	cfg, err := resolveBootstrapConfig(opts...)
	if err != nil {
		return "", err
	}
	if cfg.libraryPath != "" {
		return validateLibraryFile(cfg.libraryPath)
	}

	artifact, err := resolveRuntimeArtifact(cfg.goos, cfg.goarch)
	if err != nil {
		return "", err
	}

	installDir := filepath.Join(cfg.cacheDir, artifact.archiveName(cfg.version))
	path, err := resolveExtractedLibraryPath(installDir, artifact)
	if err == nil || !errors.Is(err, errSharedLibraryNotFound) {
		return path, err
	}
	if cfg.disableDownload {
		return "", fmt.Errorf("ONNX Runtime library not found in cache and download is disabled: %s", installDir)
	}

	lockPath := filepath.Join(cfg.cacheDir, ".locks", artifact.archiveName(cfg.version)+".lock")
	err = withProcessFileLock(ctx, lockPath, cfg.lockTimeout, func() error {
		// Another process may have finished while we waited.
		path, err = resolveExtractedLibraryPath(installDir, artifact)
		if err == nil || !errors.Is(err, errSharedLibraryNotFound) {
			return err
		}
		if err := installRuntime(ctx, cfg, artifact, installDir); err != nil {
			return err
		}
		path, err = resolveExtractedLibraryPath(installDir, artifact)
		if err != nil {
			return fmt.Errorf("bootstrap completed but shared library could not be resolved: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// InitializeEnvironmentWithBootstrap resolves a library with EnsureSharedLibrary
// and initializes the environment from it.
func InitializeEnvironmentWithBootstrap(ctx context.Context, opts ...BootstrapOption) error {
	path, err := EnsureSharedLibrary(ctx, opts...)
	if err != nil {
		return err
	}

	mu.Lock()
	initialized := refCount > 0
	current := libPath
	mu.Unlock()

	if initialized {
		if current != path {
			return fmt.Errorf("cannot change library path after environment is initialized")
		}
		return InitializeEnvironment()
	}
	if err := SetSharedLibraryPath(path); err != nil && !IsInitialized() {
		return err
	}
	return InitializeEnvironment()
}

func resolveBootstrapConfig(opts ...BootstrapOption) (bootstrapConfig, error) {
	cfg := bootstrapConfig{
		libraryPath: strings.TrimSpace(os.Getenv(EnvLibraryPath)),
		cacheDir:    strings.TrimSpace(os.Getenv(EnvCacheDir)),
		version:     strings.TrimSpace(os.Getenv(EnvVersion)),
		baseURL:     defaultBootstrapBaseURL,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		logger:      slog.Default(),
		lockTimeout: 10 * time.Minute,
		goos:        runtime.GOOS,
		goarch:      runtime.GOARCH,
	}
	if raw := strings.TrimSpace(os.Getenv(EnvDisableDownload)); raw != "" {
		disable, err := strconv.ParseBool(raw)
		if err != nil {
			return bootstrapConfig{}, fmt.Errorf("invalid boolean value for %s: %q", EnvDisableDownload, raw)
		}
		cfg.disableDownload = disable
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return bootstrapConfig{}, err
		}
	}

	if cfg.version == "" {
		cfg.version = DefaultOnnxRuntimeVersion
	}
	version, err := normalizeRuntimeVersion(cfg.version)
	if err != nil {
		return bootstrapConfig{}, err
	}
	cfg.version = version

	if cfg.cacheDir == "" {
		cfg.cacheDir = defaultBootstrapCacheDir(cfg.logger)
	}
	cfg.cacheDir = filepath.Clean(cfg.cacheDir)
	return cfg, nil
}

func resolveRuntimeArtifact(goos, goarch string) (runtimeArtifact, error) {
	artifact, ok := runtimeArtifacts[goos+"/"+goarch]
	if !ok {
		return runtimeArtifact{}, fmt.Errorf("unsupported platform for ONNX Runtime bootstrap: GOOS=%s GOARCH=%s", goos, goarch)
	}
	return artifact, nil
}

func (a runtimeArtifact) archiveName(version string) string {
	return "onnxruntime-" + a.platform + "-" + version
}

func (a runtimeArtifact) downloadURL(baseURL, version string) string {
	return fmt.Sprintf("%s/v%s/%s.%s", baseURL, version, a.archiveName(version), a.archiveFormat)
}

// installRuntime downloads the release archive, extracts it into a staging
// directory next to installDir and renames it into place.
func installRuntime(ctx context.Context, cfg bootstrapConfig, artifact runtimeArtifact, installDir string) error {
	url := artifact.downloadURL(cfg.baseURL, cfg.version)
	cfg.logger.Info("downloading ONNX Runtime", "url", url, "cache_dir", cfg.cacheDir)

	archivePath, checksum, err := downloadRuntimeArchive(ctx, cfg, url)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archivePath) }()

	if cfg.expectedSHA256 != "" && checksum != cfg.expectedSHA256 {
		return fmt.Errorf("download checksum mismatch: expected %s, got %s", cfg.expectedSHA256, checksum)
	}

	staging, err := os.MkdirTemp(cfg.cacheDir, artifact.archiveName(cfg.version)+".staging-*")
	if err != nil {
		return fmt.Errorf("failed to create bootstrap staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := extractArchive(archivePath, staging, artifact.archiveFormat); err != nil {
		return err
	}

	// Release archives wrap everything in a top-level directory named after the archive.
	extracted := filepath.Join(staging, artifact.archiveName(cfg.version))
	if info, err := os.Stat(extracted); err != nil || !info.IsDir() {
		extracted = staging
	}
	if _, err := resolveExtractedLibraryPath(extracted, artifact); err != nil {
		if errors.Is(err, errSharedLibraryNotFound) {
			return fmt.Errorf("downloaded archive did not contain expected shared library in %q (symlinks are not extracted)", filepath.Join(extracted, "lib"))
		}
		return err
	}

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("failed to remove previous ONNX Runtime install at %q: %w", installDir, err)
	}
	if err := os.Rename(extracted, installDir); err != nil {
		return fmt.Errorf("failed to install ONNX Runtime to %q: %w", installDir, err)
	}
	cfg.logger.Info("installed ONNX Runtime", "dir", installDir, "sha256", checksum)
	return nil
}

func downloadRuntimeArchive(ctx context.Context, cfg bootstrapConfig, url string) (path string, checksum string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create download request for %q: %w", url, err)
	}
	resp, err := cfg.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to download ONNX Runtime archive from %q: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if s := strings.TrimSpace(string(snippet)); s != "" {
			return "", "", fmt.Errorf("failed to download ONNX Runtime archive from %q: HTTP %d: %s", url, resp.StatusCode, s)
		}
		return "", "", fmt.Errorf("failed to download ONNX Runtime archive from %q: HTTP %d", url, resp.StatusCode)
	}
	if resp.ContentLength > maxArchiveBytes {
		return "", "", fmt.Errorf("ONNX Runtime archive is too large: %d bytes (limit %d)", resp.ContentLength, maxArchiveBytes)
	}

	if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create cache directory %q: %w", cfg.cacheDir, err)
	}
	file, err := os.CreateTemp(cfg.cacheDir, "onnxruntime-*.archive")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temporary archive file: %w", err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
		if err != nil {
			_ = os.Remove(file.Name())
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(file, hasher), io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("failed to write ONNX Runtime archive to %q: %w", file.Name(), err)
	}
	switch {
	case written == 0:
		return "", "", fmt.Errorf("downloaded ONNX Runtime archive is empty")
	case written > maxArchiveBytes:
		return "", "", fmt.Errorf("ONNX Runtime archive is too large: exceeds %d bytes", maxArchiveBytes)
	}
	return file.Name(), hex.EncodeToString(hasher.Sum(nil)), nil
}

func extractArchive(archivePath, destination, format string) error {
	var (
		count int
		err   error
	)
	switch format {
	case "tgz":
		count, err = extractTGZ(archivePath, destination)
	case "zip":
		count, err = extractZIP(archivePath, destination)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("archive %q did not contain regular files", archivePath)
	}
	return nil
}

func extractTGZ(archivePath, destination string) (int, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive %q: %w", archivePath, err)
	}
	defer func() { _ = file.Close() }()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("failed to read gzip archive %q: %w", archivePath, err)
	}
	defer func() { _ = gz.Close() }()

	count := 0
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read tar entry from %q: %w", archivePath, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := makeArchiveDir(destination, header.Name); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if err := writeArchiveFile(destination, header.Name, header.FileInfo().Mode(), tr); err != nil {
				return count, err
			}
			count++
		default:
			// Links and special files are skipped; runtime libraries ship as regular files.
		}
	}
}

func extractZIP(archivePath, destination string) (int, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open ZIP archive %q: %w", archivePath, err)
	}
	defer func() { _ = reader.Close() }()

	count := 0
	for _, entry := range reader.File {
		mode := entry.Mode()
		switch {
		case mode.IsDir():
			if err := makeArchiveDir(destination, entry.Name); err != nil {
				return count, err
			}
		case mode.IsRegular():
			rc, err := entry.Open()
			if err != nil {
				return count, fmt.Errorf("failed to open ZIP entry %q: %w", entry.Name, err)
			}
			err = writeArchiveFile(destination, entry.Name, mode, rc)
			_ = rc.Close()
			if err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func makeArchiveDir(destination, name string) error {
	target, err := secureArchiveJoin(destination, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", target, err)
	}
	return nil
}

func writeArchiveFile(destination, name string, mode fs.FileMode, src io.Reader) error {
	target, err := secureArchiveJoin(destination, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %q: %w", target, err)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create extracted file %q: %w", target, err)
	}
	if err := copyExtractedFile(out, src, maxExtractedFileBytes); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to extract %q: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close extracted file %q: %w", target, err)
	}
	return nil
}

func copyExtractedFile(dst io.Writer, src io.Reader, limit int64) error {
	written, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		return err
	}
	if written > limit {
		return fmt.Errorf("file exceeds extraction limit of %d bytes", limit)
	}
	return nil
}

// resolveExtractedLibraryPath finds the runtime library under installDir/lib.
// It returns errSharedLibraryNotFound only when no candidate exists at all.
func resolveExtractedLibraryPath(installDir string, artifact runtimeArtifact) (string, error) {
	libDir := filepath.Join(installDir, "lib")

	candidates := []string{filepath.Join(libDir, artifact.primaryLibrary)}
	matches, err := filepath.Glob(filepath.Join(libDir, artifact.libraryGlob))
	if err != nil {
		return "", fmt.Errorf("failed to resolve ONNX Runtime library path: %w", err)
	}
	sort.Strings(matches)
	candidates = append(candidates, matches...)

	var invalid []error
	for _, candidate := range candidates {
		path, err := validateLibraryFile(candidate)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			invalid = append(invalid, err)
		}
	}
	if len(invalid) > 0 {
		return "", fmt.Errorf("found ONNX Runtime shared library candidates in %q but none are valid: %w", libDir, errors.Join(invalid...))
	}
	return "", errSharedLibraryNotFound
}

func validateLibraryFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("library path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	switch {
	case err != nil:
		return "", fmt.Errorf("failed to stat library file %q: %w", absPath, err)
	case info.IsDir():
		return "", fmt.Errorf("library path points to a directory: %q", absPath)
	case info.Size() == 0:
		return "", fmt.Errorf("library file is empty: %q", absPath)
	}
	return absPath, nil
}

// withProcessFileLock runs fn while holding an exclusive lock on lockPath,
// polling until the lock is free, ctx is done or timeout elapses.
func withProcessFileLock(ctx context.Context, lockPath string, timeout time.Duration, fn func() error) (err error) {
	if fn == nil {
		return fmt.Errorf("lock callback cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory for %q: %w", lockPath, err)
	}
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file %q: %w", lockPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		locked, lockErr := tryLock(file)
		if lockErr != nil {
			_ = file.Close()
			return fmt.Errorf("failed to acquire lock %q: %w", lockPath, lockErr)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			_ = file.Close()
			return fmt.Errorf("timed out waiting for lock %q: %w", lockPath, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}

	defer func() {
		err = errors.Join(err, unlock(file), file.Close())
	}()
	return fn()
}

func secureArchiveJoin(baseDir, entry string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(entry), "\\", "/")
	switch {
	case normalized == "":
		return "", fmt.Errorf("invalid empty archive entry path")
	case strings.HasPrefix(normalized, "/"):
		return "", fmt.Errorf("invalid absolute archive entry path %q", entry)
	case len(normalized) >= 2 && normalized[1] == ':':
		return "", fmt.Errorf("invalid archive entry path with drive letter %q", entry)
	}

	cleaned := filepath.Clean(filepath.FromSlash(normalized))
	if cleaned == "." {
		return "", fmt.Errorf("invalid archive entry path %q", entry)
	}
	target := filepath.Join(baseDir, cleaned)
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve archive path %q: %w", entry, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", entry)
	}
	return target, nil
}

func defaultBootstrapCacheDir(logger *slog.Logger) string {
	cacheDir, err := os.UserCacheDir()
	if err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "onnx-fuzz", "onnxruntime")
	}
	fallback := filepath.Join(os.TempDir(), "onnx-fuzz", "onnxruntime")
	logger.Warn("user cache directory unavailable, using temporary ONNX Runtime cache",
		"dir", fallback, "error", err, "hint", "set "+EnvCacheDir+" for a persistent cache")
	return fallback
}

func normalizeRuntimeVersion(version string) (string, error) {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("ONNX Runtime version must have format x.y.z, got %q", version)
	}
	for _, part := range parts {
		if _, err := strconv.ParseUint(part, 10, 32); err != nil {
			return "", fmt.Errorf("ONNX Runtime version must have numeric segments, got %q", version)
		}
	}
	return version, nil
}
