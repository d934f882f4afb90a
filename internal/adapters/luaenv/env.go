// Package luaenv locates the target Lua runtime's headers, libraries and
// interpreter on the build host.
package luaenv

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// incDirEnv overrides header discovery entirely when set.
const incDirEnv = "LOAM_LUA_INCDIR"

// mirrorEnv overrides where header sets are downloaded from.
const mirrorEnv = "LOAM_LUA_MIRROR"

const defaultMirror = "https://www.lua.org/ftp"

const downloadTimeout = time.Minute

// maxHeaderSize bounds a single extracted header file.
const maxHeaderSize = 1 << 20

// headerReleases maps a runtime version to the release whose headers are
// fetched into the cache when the host has none.
var headerReleases = map[string]string{
	"5.1": "5.1.5",
	"5.2": "5.2.4",
	"5.3": "5.3.6",
	"5.4": "5.4.8",
}

// Env implements ports.RuntimeEnv by probing well-known install locations.
// Located paths are memoized per version; one install run asks once, but
// repeated runs in a long-lived process shouldn't re-probe the filesystem.
type Env struct {
	logger     ports.Logger
	httpClient *http.Client

	// searchRoots are prefixes probed for include/ and lib/ directories.
	searchRoots []string

	// cacheDir holds downloaded header sets under headers/<version>/include.
	cacheDir string

	mu      sync.Mutex
	located map[string]ports.RuntimePaths
}

// defaultSearchRoots covers the usual system and package-manager prefixes.
func defaultSearchRoots() []string {
	return []string{"/usr", "/usr/local", "/opt/homebrew", "/opt/local"}
}

// New creates an Env probing the default host locations, with cacheDir as
// the fallback for downloaded header sets.
func New(logger ports.Logger, cacheDir string) *Env {
	return NewWithRoots(logger, cacheDir, defaultSearchRoots())
}

// NewWithRoots creates an Env probing only the given prefixes.
func NewWithRoots(logger ports.Logger, cacheDir string, roots []string) *Env {
	return &Env{
		logger:      logger,
		httpClient:  &http.Client{Timeout: downloadTimeout},
		searchRoots: roots,
		cacheDir:    cacheDir,
		located:     make(map[string]ports.RuntimePaths),
	}
}

// Locate finds headers, library directory and interpreter for the requested
// version. Fails with domain.ErrHeaderNotFound when no usable lua.h exists.
func (e *Env) Locate(ctx context.Context, version string) (ports.RuntimePaths, error) {
	if err := ctx.Err(); err != nil {
		return ports.RuntimePaths{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if paths, ok := e.located[version]; ok {
		return paths, nil
	}

	incDir, err := e.findIncDir(ctx, version)
	if err != nil {
		return ports.RuntimePaths{}, err
	}

	paths := ports.RuntimePaths{
		IncDir:      incDir,
		LibDir:      e.findLibDir(version),
		Interpreter: findInterpreter(version),
	}
	e.located[version] = paths

	e.logger.Debug("located lua runtime",
		"version", version,
		"incdir", paths.IncDir,
		"libdir", paths.LibDir,
		"interpreter", paths.Interpreter,
	)
	return paths, nil
}

func (e *Env) findIncDir(ctx context.Context, version string) (string, error) {
	if override := os.Getenv(incDirEnv); override != "" {
		if headerMatches(filepath.Join(override, "lua.h"), version) {
			return override, nil
		}
		return "", zerr.With(zerr.With(zerr.With(domain.ErrHeaderNotFound, "version", version), "incdir", override), "reason", "override does not contain a matching lua.h")
	}

	cached := filepath.Join(e.cacheDir, domain.HeadersDirName, version, "include")

	var candidates []string
	for _, root := range e.searchRoots {
		candidates = append(candidates,
			filepath.Join(root, "include", "lua"+version),
			filepath.Join(root, "include", "lua-"+version),
			filepath.Join(root, "include", "lua", version),
			filepath.Join(root, "include", "luajit-"+version),
			filepath.Join(root, "include"),
		)
	}
	candidates = append(candidates, cached)

	for _, dir := range candidates {
		if headerMatches(filepath.Join(dir, "lua.h"), version) {
			return dir, nil
		}
	}

	// No usable headers on the host: provision the cache for this version.
	if err := e.downloadHeaders(ctx, version, cached); err != nil {
		return "", zerr.With(zerr.With(zerr.Wrap(domain.ErrHeaderNotFound, "no lua.h for version "+version), "version", version), "reason", err.Error())
	}
	if headerMatches(filepath.Join(cached, "lua.h"), version) {
		return cached, nil
	}

	return "", zerr.With(
		zerr.Wrap(domain.ErrHeaderNotFound, "no lua.h for version "+version),
		"version", version,
	)
}

// downloadHeaders fetches the release tarball for a runtime version and
// extracts its C headers into destDir.
func (e *Env) downloadHeaders(ctx context.Context, version, destDir string) error {
	release, ok := headerReleases[version]
	if !ok {
		return zerr.Wrap(domain.ErrHeaderNotFound, "no downloadable header set for lua "+version)
	}

	mirror := defaultMirror
	if override := os.Getenv(mirrorEnv); override != "" {
		mirror = override
	}
	rawURL := strings.TrimSuffix(mirror, "/") + "/lua-" + release + ".tar.gz"

	e.logger.Info("downloading lua headers",
		"version", version,
		"url", rawURL,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return zerr.With(zerr.With(domain.ErrNetwork, "url", rawURL), "reason", err.Error())
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return zerr.With(zerr.With(domain.ErrNetwork, "url", rawURL), "reason", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return zerr.With(zerr.With(domain.ErrNetwork, "url", rawURL), "status", resp.StatusCode)
	}

	return extractHeaders(resp.Body, destDir)
}

// extractHeaders writes every header file of a release tarball into destDir,
// flattening the archive layout. The release source tree keeps all headers
// in one directory, so flattening cannot collide.
func extractHeaders(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return zerr.Wrap(err, "invalid gzip stream")
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create header cache")
	}

	found := false
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return zerr.Wrap(err, "invalid tar stream")
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(header.Name)
		if !strings.HasSuffix(name, ".h") && !strings.HasSuffix(name, ".hpp") {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tr, maxHeaderSize))
		if err != nil {
			return zerr.Wrap(err, "truncated archive entry "+header.Name)
		}
		if err := os.WriteFile(filepath.Join(destDir, name), data, domain.FilePerm); err != nil {
			return zerr.Wrap(err, "failed to write header "+name)
		}
		found = true
	}

	if !found {
		return zerr.Wrap(domain.ErrHeaderNotFound, "release archive carries no headers")
	}
	return nil
}

// headerMatches accepts a lua.h that declares the requested version. An
// unversioned include dir may carry headers for a different Lua.
func headerMatches(path, version string) bool {
	data, err := os.ReadFile(path) //nolint:gosec // probing fixed candidate paths
	if err != nil {
		return false
	}
	return strings.Contains(string(data), `"Lua `+version+`"`) ||
		strings.Contains(string(data), `LUA_VERSION_MAJOR`+"\t"+`"`+majorOf(version)+`"`)
}

func majorOf(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}

func (e *Env) findLibDir(version string) string {
	names := []string{
		"liblua" + version + ".so",
		"liblua-" + version + ".so",
		"liblua" + version + ".a",
		"liblua" + version + ".dylib",
	}
	var dirs []string
	for _, root := range e.searchRoots {
		dirs = append(dirs,
			filepath.Join(root, "lib"),
			filepath.Join(root, "lib", "x86_64-linux-gnu"),
			filepath.Join(root, "lib", "aarch64-linux-gnu"),
		)
	}
	for _, dir := range dirs {
		for _, name := range names {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
	}
	return ""
}

func findInterpreter(version string) string {
	for _, name := range []string{
		"lua" + version,
		"lua" + strings.ReplaceAll(version, ".", ""),
		"lua",
	} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
