// Package registry implements the manifest client against a LuaRocks-style
// HTTP registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/loam/internal/adapters/rockspec"
	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// Client implements ports.ManifestClient. Within one session the manifest
// index is fetched once and descriptors are memoized, so concurrent
// resolution never issues duplicate requests; the singleflight group
// collapses races on the same key.
type Client struct {
	httpClient *http.Client
	parser     *rockspec.Parser
	store      ports.SourceStore
	logger     ports.Logger
	cfg        domain.Config

	group singleflight.Group

	mu          sync.RWMutex
	index       map[domain.PackageName][]domain.Version
	indexLoaded bool
	descriptors map[string]*domain.PackageDescriptor
}

// NewClient creates a registry client.
func NewClient(parser *rockspec.Parser, store ports.SourceStore, logger ports.Logger, cfg domain.Config) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		parser:      parser,
		store:       store,
		logger:      logger,
		cfg:         cfg,
		descriptors: make(map[string]*domain.PackageDescriptor),
	}
}

// ListVersions returns every known version of a package, ascending. The
// backing manifest is fetched once per session.
func (c *Client) ListVersions(ctx context.Context, name domain.PackageName) ([]domain.Version, error) {
	if err := c.ensureIndex(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	versions, ok := c.index[name]
	c.mu.RUnlock()
	if !ok {
		return nil, zerr.With(domain.ErrNotFound, "package", name.String())
	}
	return versions, nil
}

func (c *Client) ensureIndex(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.indexLoaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := c.group.Do("manifest", func() (any, error) {
		c.mu.RLock()
		loaded := c.indexLoaded
		c.mu.RUnlock()
		if loaded {
			return nil, nil
		}

		data, err := c.fetchManifest(ctx)
		if err != nil {
			return nil, err
		}

		index, err := c.parser.ParseManifest(ctx, string(data))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.index = index
		c.indexLoaded = true
		c.mu.Unlock()

		c.logger.Debug("loaded registry manifest",
			"registry", c.cfg.RegistryURL,
			"packages", len(index),
		)
		return nil, nil
	})
	return err
}

// fetchManifest prefers the runtime-specific manifest and falls back to the
// unversioned one for registries that do not publish per-version indexes.
func (c *Client) fetchManifest(ctx context.Context) ([]byte, error) {
	data, err := c.get(ctx, c.endpoint("manifest-"+c.cfg.LuaVersion))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return c.get(ctx, c.endpoint("manifest"))
}

// FetchDescriptor returns the parsed descriptor for one exact version,
// memoized for the session.
func (c *Client) FetchDescriptor(ctx context.Context, name domain.PackageName, version domain.Version) (*domain.PackageDescriptor, error) {
	key := name.String() + "@" + version.String()

	c.mu.RLock()
	if desc, ok := c.descriptors[key]; ok {
		c.mu.RUnlock()
		return desc, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do("descriptor:"+key, func() (any, error) {
		c.mu.RLock()
		if desc, ok := c.descriptors[key]; ok {
			c.mu.RUnlock()
			return desc, nil
		}
		c.mu.RUnlock()

		data, err := c.get(ctx, c.endpoint(fmt.Sprintf("%s-%s.rockspec", name.Short(), version)))
		if err != nil {
			return nil, zerr.With(zerr.With(err, "package", name.String()), "version", version.String())
		}

		desc, err := c.parser.ParseDescriptor(ctx, string(data))
		if err != nil {
			return nil, zerr.With(zerr.With(err, "package", name.String()), "version", version.String())
		}

		c.mu.Lock()
		c.descriptors[key] = desc
		c.mu.Unlock()
		return desc, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.PackageDescriptor), nil
}

// FetchSource downloads the descriptor's source artifact into the content
// store and returns its location and digest. Absolute source URLs are
// honored; anything else resolves against the registry.
func (c *Client) FetchSource(ctx context.Context, desc *domain.PackageDescriptor) (ports.SourceArtifact, error) {
	srcURL := desc.Source.URL
	switch {
	case srcURL == "":
		srcURL = c.endpoint(fmt.Sprintf("%s-%s.src.rock", desc.Name.Short(), desc.Version))
	case !strings.Contains(srcURL, "://"):
		srcURL = c.endpoint(srcURL)
	}

	hint := desc.Source.File
	if hint == "" {
		hint = path.Base(srcURL)
	}

	op := func() (ports.SourceArtifact, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
		if err != nil {
			return ports.SourceArtifact{}, backoff.Permanent(zerr.With(zerr.With(domain.ErrNetwork, "url", srcURL), "reason", err.Error()))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return ports.SourceArtifact{}, zerr.With(zerr.With(domain.ErrNetwork, "url", srcURL), "reason", err.Error())
		}
		defer resp.Body.Close()

		if err := statusError(resp.StatusCode, srcURL); err != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return ports.SourceArtifact{}, err
		}

		storedPath, digest, err := c.store.Put(resp.Body, hint)
		if err != nil {
			return ports.SourceArtifact{}, backoff.Permanent(err)
		}
		return ports.SourceArtifact{Path: storedPath, Integrity: digest}, nil
	}

	artifact, err := backoff.RetryWithData(op, c.newBackOff(ctx))
	if err != nil {
		return ports.SourceArtifact{}, zerr.With(zerr.With(zerr.Wrap(err, "failed to fetch source for "+desc.Name.String()), "package", desc.Name.String()), "version", desc.Version.String())
	}
	return artifact, nil
}

// get performs one GET with retry on transient failures. Missing resources
// fail permanently with domain.ErrNotFound; transport errors and server-side
// failures are retried within the configured budget.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(zerr.With(zerr.With(domain.ErrNetwork, "url", rawURL), "reason", err.Error()))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, zerr.With(zerr.With(domain.ErrNetwork, "url", rawURL), "reason", err.Error())
		}
		defer resp.Body.Close()

		if err := statusError(resp.StatusCode, rawURL); err != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, err
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, zerr.With(zerr.With(domain.ErrNetwork, "url", rawURL), "reason", err.Error())
		}
		return data, nil
	}

	return backoff.RetryWithData(op, c.newBackOff(ctx))
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	budget := c.cfg.RetryBudget
	if budget < 0 {
		budget = 0
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(budget)),
		ctx,
	)
}

func statusError(code int, rawURL string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return backoff.Permanent(zerr.With(domain.ErrNotFound, "url", rawURL))
	case code >= 500:
		return zerr.With(zerr.With(domain.ErrNetwork, "url", rawURL), "status", code)
	default:
		return backoff.Permanent(zerr.With(zerr.With(domain.ErrNetwork, "url", rawURL), "status", code))
	}
}

func (c *Client) endpoint(suffix string) string {
	base := strings.TrimSuffix(c.cfg.RegistryURL, "/")
	return base + "/" + url.PathEscape(suffix)
}
