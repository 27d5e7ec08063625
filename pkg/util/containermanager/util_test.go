package containermanager

import (
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/buildah"
	"github.com/openshift/recipe-to-image/pkg/docker/test"
)

func TestGetDocker(t *testing.T) {
	cfg := &api.Config{ContainerManager: "buildah"}
	if _, ok := GetDocker(nil, cfg).(*buildah.Buildah); !ok {
		t.Error("expected the buildah backend")
	}
	cfg.ContainerManager = "docker"
	if _, ok := GetDocker(test.NewFakeDockerClient(), cfg).(*buildah.Buildah); ok {
		t.Error("expected the docker backend")
	}
}

func TestGetClient(t *testing.T) {
	client, err := GetClient(&api.Config{ContainerManager: "buildah"})
	if err != nil || client != nil {
		t.Errorf("expected no client for buildah, got %v, %v", client, err)
	}
	if _, err := GetClient(&api.Config{ContainerManager: "podman-remote"}); err == nil {
		t.Error("expected an error for an unknown container manager")
	}
	client, err = GetClient(&api.Config{DockerConfig: &api.DockerConfig{Endpoint: "unix:///var/run/docker.sock"}})
	if err != nil || client == nil {
		t.Errorf("expected a docker client, got %v, %v", client, err)
	}
}
