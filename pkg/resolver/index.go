package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/openshift/recipe-to-image/pkg/manifest"
)

// DefaultTimeout bounds a single index request.
const DefaultTimeout = 30 * time.Second

// ErrPackageNotFound is returned by an Index that has no project with the
// requested name.
var ErrPackageNotFound = errors.New("package not found")

// Release is one published version of a package.
type Release struct {
	Version string
	// Yanked is set when every file of the release was withdrawn.
	Yanked bool
}

// Index looks up the releases of a package.
type Index interface {
	Releases(ctx context.Context, name string) ([]Release, error)
}

// PyPI is an Index backed by the JSON API of a Python package index.
type PyPI struct {
	URL    string
	Client *http.Client
}

// NewPyPI returns an Index for the package index at indexURL. A trailing
// "/simple" path, as used by pip options, is removed.
func NewPyPI(indexURL string) *PyPI {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = DefaultTimeout
	return &PyPI{
		URL:    BaseURL(indexURL),
		Client: client,
	}
}

// BaseURL returns the root of the package index at indexURL.
func BaseURL(indexURL string) string {
	u := strings.TrimRight(indexURL, "/")
	u = strings.TrimSuffix(u, "/simple")
	return strings.TrimRight(u, "/")
}

type projectResponse struct {
	Releases map[string][]struct {
		Yanked bool `json:"yanked"`
	} `json:"releases"`
}

// Releases returns the releases of name that have at least one file.
func (p *PyPI) Releases(ctx context.Context, name string) ([]Release, error) {
	endpoint := fmt.Sprintf("%s/pypi/%s/json", p.URL, url.PathEscape(manifest.NormalizeName(name)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "r2i")

	log.V(5).Infof("GET %s", endpoint)
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPackageNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("package index returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var project projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, fmt.Errorf("unable to decode package index response for %s: %v", name, err)
	}

	releases := make([]Release, 0, len(project.Releases))
	for v, files := range project.Releases {
		if len(files) == 0 {
			continue
		}
		yanked := true
		for _, f := range files {
			if !f.Yanked {
				yanked = false
				break
			}
		}
		releases = append(releases, Release{Version: v, Yanked: yanked})
	}
	return releases, nil
}

// MultiIndex consults every index in order. The first index that knows a
// package answers for it.
type MultiIndex []Index

// Releases implements Index.
func (m MultiIndex) Releases(ctx context.Context, name string) ([]Release, error) {
	for _, idx := range m {
		releases, err := idx.Releases(ctx, name)
		if errors.Is(err, ErrPackageNotFound) {
			continue
		}
		return releases, err
	}
	return nil, ErrPackageNotFound
}
