package strategies

import (
	"path/filepath"
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/build"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/dockerfile"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/external"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/layered"
	"github.com/openshift/recipe-to-image/pkg/test"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
)

func TestStrategy(t *testing.T) {
	tests := map[string]struct {
		config   *api.Config
		expected interface{}
		prepares bool
	}{
		"layered": {
			config:   &api.Config{Source: t.TempDir()},
			expected: &layered.Layered{},
			prepares: true,
		},
		"dockerfile": {
			config:   &api.Config{Source: t.TempDir(), AsDockerfile: filepath.Join(t.TempDir(), "Dockerfile")},
			expected: &dockerfile.Dockerfile{},
			prepares: true,
		},
		"external": {
			config:   &api.Config{Source: t.TempDir(), WithBuilder: "podman", AsDockerfile: filepath.Join(t.TempDir(), "Dockerfile")},
			expected: &external.External{},
		},
	}
	for name, tc := range tests {
		builder, err := Strategy(tc.config, fs.NewFileSystem(), &test.FakeDocker{}, nil)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		var ok bool
		switch tc.expected.(type) {
		case *layered.Layered:
			_, ok = builder.(*layered.Layered)
		case *dockerfile.Dockerfile:
			_, ok = builder.(*dockerfile.Dockerfile)
		case *external.External:
			_, ok = builder.(*external.External)
		}
		if !ok {
			t.Errorf("%s: unexpected builder %T", name, builder)
		}
		if _, ok := builder.(build.Preparer); ok != tc.prepares {
			t.Errorf("%s: expected Preparer=%v for %T", name, tc.prepares, builder)
		}
	}
}

func TestStrategyUnknownSource(t *testing.T) {
	_, err := Strategy(&api.Config{Source: "ftp://example.com/app"}, fs.NewFileSystem(), &test.FakeDocker{}, nil)
	if err == nil {
		t.Error("expected an error for an unsupported source URL")
	}
}
