package test

import (
	"context"
	"sync"

	"github.com/openshift/recipe-to-image/pkg/manifest"
	"github.com/openshift/recipe-to-image/pkg/resolver"
)

// FakeIndex provides a fake package index. Packages maps normalized
// package names to the versions they offer.
type FakeIndex struct {
	Packages map[string][]string
	Yanked   map[string]bool
	Error    error

	Lookups []string

	mutex sync.Mutex
}

// NewFakeIndex returns an index serving packages.
func NewFakeIndex(packages map[string][]string) *FakeIndex {
	return &FakeIndex{Packages: packages, Yanked: map[string]bool{}}
}

// Releases returns the versions registered for name.
func (f *FakeIndex) Releases(ctx context.Context, name string) ([]resolver.Release, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	name = manifest.NormalizeName(name)
	f.Lookups = append(f.Lookups, name)
	if f.Error != nil {
		return nil, f.Error
	}
	versions, ok := f.Packages[name]
	if !ok {
		return nil, resolver.ErrPackageNotFound
	}
	releases := make([]resolver.Release, 0, len(versions))
	for _, v := range versions {
		releases = append(releases, resolver.Release{Version: v, Yanked: f.Yanked[name+"=="+v]})
	}
	return releases, nil
}
