package containermanager

import (
	"fmt"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	"github.com/openshift/recipe-to-image/pkg/buildah"
	"github.com/openshift/recipe-to-image/pkg/docker"
)

// GetClient returns the engine API client for the configured container
// manager. Buildah needs none, so a nil client is returned for it.
func GetClient(cfg *api.Config) (docker.Client, error) {
	switch cfg.ContainerManager {
	case constants.BuildahContainerManager:
		return nil, nil
	case "", constants.DockerContainerManager:
		return docker.NewEngineAPIClient(cfg.DockerConfig)
	default:
		return nil, fmt.Errorf("unknown container manager %q", cfg.ContainerManager)
	}
}

// GetDocker returns the container engine instance for the configured
// container manager.
func GetDocker(client docker.Client, config *api.Config) docker.Docker {
	switch config.ContainerManager {
	case constants.BuildahContainerManager:
		return buildah.NewBuildah()
	default:
		return docker.New(client)
	}
}

// Connect returns the container engine for config.
func Connect(config *api.Config) (docker.Docker, error) {
	client, err := GetClient(config)
	if err != nil {
		return nil, err
	}
	return GetDocker(client, config), nil
}
