package strategies

import (
	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/build"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/dockerfile"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/external"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/layered"
	"github.com/openshift/recipe-to-image/pkg/docker"
	"github.com/openshift/recipe-to-image/pkg/resolver"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// Strategy creates the appropriate build strategy for the provided config.
// The container engine is only needed by the layered build; index may be
// nil to resolve against the index the config names.
func Strategy(config *api.Config, fs fs.FileSystem, d docker.Docker, index resolver.Index) (build.Builder, error) {
	switch {
	case len(config.WithBuilder) > 0:
		log.V(2).Infof("Building with the external builder %q", config.WithBuilder)
		return external.New(config, fs, index)
	case len(config.AsDockerfile) > 0:
		log.V(2).Infof("Writing the Dockerfile %q instead of building", config.AsDockerfile)
		return dockerfile.New(config, fs, index)
	}
	return layered.New(config, fs, d, index)
}
