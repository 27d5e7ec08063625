// Package run supports running images produced by r2i. It is used by the
// --run=true command line option and the run command.
package run

import (
	"errors"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/docker"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	"github.com/openshift/recipe-to-image/pkg/util"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// A DockerRunner allows running a Docker image as a new container, streaming
// stdout and stderr to the logger.
type DockerRunner struct {
	ContainerClient docker.Docker
}

// New creates a DockerRunner for executing the methods associated with running
// the produced image in a docker container for verification purposes.
func New(client docker.Docker) *DockerRunner {
	return &DockerRunner{ContainerClient: client}
}

// Run invokes the Docker API to run the image tagged config.Tag as a new
// container, publishing the port the image declares on the same host port.
// The container's stdout and stderr are logged.
func (b *DockerRunner) Run(config *api.Config) error {
	log.V(4).Infof("Attempting to run image %s", config.Tag)

	img, err := b.ContainerClient.InspectImage(config.Tag)
	if err != nil {
		return err
	}
	md := docker.ImageMetadataFromImage(img, util.BuildLabel(config, "port"))
	port := config.Port
	if port == 0 {
		port = md.Port
	}
	var ports []int
	if port > 0 {
		ports = append(ports, port)
	}
	env := config.Environment.AsBinds()
	log.V(2).Infof("Running %s with port %v and environment %v", config.Tag, ports, util.StripProxyCredentials(env))

	opts := docker.RunContainerOptions{
		Image:  config.Tag,
		Ports:  ports,
		Env:    env,
		Remove: true,
		Stdout: utillog.NewWriter(log.Info),
		Stderr: utillog.NewWriter(log.Error),
		OnStart: func(containerID string) error {
			log.V(1).Infof("Started container %s from %s", containerID, config.Tag)
			return nil
		},
	}

	err = b.ContainerClient.RunContainer(opts)
	// If we get a ContainerError, the original message reports the
	// container name. The container is temporary and its name is
	// meaningless, therefore we make the error message more helpful by
	// replacing the container name with the image tag.
	var e r2ierr.ContainerErr
	if errors.As(err, &e) {
		return r2ierr.NewContainerError(config.Tag, e.ExitCode, e.Output)
	}
	return err
}
