// Package config provides the project file loader for loam.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	defaultRegistryURL = "https://luarocks.org"
	defaultLuaVersion  = "5.4"
	defaultHTTPTimeout = 30 * time.Second
	defaultRetryBudget = 3
)

// Project is a loaded project: its root directory, the effective settings
// and the root dependency requests from loam.yaml.
type Project struct {
	Name   string
	Root   string
	Config domain.Config
	Roots  []domain.Dependency
}

// LockPath returns the location of the project's lockfile.
func (p *Project) LockPath() string {
	return filepath.Join(p.Root, domain.LockFileName)
}

// Loader reads loam.yaml project files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load walks upward from cwd until it finds a loam.yaml and returns the
// project it describes. Fails with domain.ErrProjectNotFound when no project
// file exists anywhere above cwd.
func (l *Loader) Load(cwd string) (*Project, error) {
	path, err := l.findProjectFile(cwd)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from upward discovery
	if err != nil {
		return nil, zerr.With(zerr.With(domain.ErrProjectParse, "path", path), "reason", err.Error())
	}

	var file ProjectFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.With(domain.ErrProjectParse, "path", path), "reason", err.Error())
	}

	return l.buildProject(path, &file)
}

func (l *Loader) findProjectFile(cwd string) (string, error) {
	currentDir, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.With(zerr.With(domain.ErrProjectNotFound, "cwd", cwd), "reason", err.Error())
	}

	for {
		candidate := filepath.Join(currentDir, domain.ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(domain.ErrProjectNotFound, "cwd", cwd)
}

func (l *Loader) buildProject(path string, file *ProjectFile) (*Project, error) {
	root := filepath.Dir(path)

	luaVersion := file.Lua
	if luaVersion == "" {
		luaVersion = defaultLuaVersion
	}
	if _, err := domain.ParseVersion(luaVersion); err != nil {
		return nil, zerr.With(zerr.With(zerr.With(domain.ErrProjectParse, "path", path), "lua", file.Lua), "reason", "invalid lua version")
	}

	registry := file.Registry
	if registry == "" {
		registry = defaultRegistryURL
	}

	treeDir := file.Tree
	if treeDir == "" {
		treeDir = domain.TreeDirName
	}
	if !filepath.IsAbs(treeDir) {
		treeDir = filepath.Join(root, treeDir)
	}

	parallelism := file.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	cacheDir := file.Cache
	switch {
	case cacheDir == "":
		if userCache, err := os.UserCacheDir(); err != nil {
			cacheDir = filepath.Join(root, domain.TreeDirName, "cache")
		} else {
			cacheDir = filepath.Join(userCache, "loam")
		}
	case !filepath.IsAbs(cacheDir):
		cacheDir = filepath.Join(root, cacheDir)
	}

	roots := make([]domain.Dependency, 0, len(file.Dependencies))
	seen := make(map[domain.PackageName]bool, len(file.Dependencies))
	for _, declaration := range file.Dependencies {
		dep, err := domain.ParseDependency(declaration)
		if err != nil {
			return nil, zerr.With(zerr.With(zerr.With(domain.ErrProjectParse, "path", path), "dependency", declaration), "reason", err.Error())
		}
		if seen[dep.Name] {
			return nil, zerr.With(zerr.With(zerr.With(domain.ErrProjectParse, "path", path), "dependency", declaration), "reason", "duplicate dependency")
		}
		seen[dep.Name] = true
		roots = append(roots, dep)
	}

	return &Project{
		Name: file.Package,
		Root: root,
		Config: domain.Config{
			RegistryURL: registry,
			LuaVersion:  luaVersion,
			Tree: domain.TreePaths{
				Root:       treeDir,
				LuaVersion: luaVersion,
			},
			CacheDir:    cacheDir,
			Parallelism: parallelism,
			HTTPTimeout: defaultHTTPTimeout,
			RetryBudget: defaultRetryBudget,
			IncludeDev:  file.IncludeDev,
		},
		Roots: roots,
	}, nil
}
