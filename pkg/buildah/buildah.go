package buildah

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/distribution/reference"
	dockertypes "github.com/docker/docker/api/types"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/docker"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

const buildahCmd = "buildah"

// Buildah implements docker.Docker interface using buildah as a backend.
type Buildah struct {
	execute Executor
}

// NewBuildah returns a new instance of Buildah.
func NewBuildah() *Buildah {
	return &Buildah{execute: Execute}
}

// NewBuildahWithExecutor returns a Buildah running commands through execute.
func NewBuildahWithExecutor(execute Executor) *Buildah {
	return &Buildah{execute: execute}
}

// Version returns the buildah version in the shape of a docker version.
func (b *Buildah) Version() (dockertypes.Version, error) {
	output, err := b.execute([]string{buildahCmd, "--version"}, nil, false)
	if err != nil {
		return dockertypes.Version{}, err
	}
	// "buildah version 1.33.7 (image-spec 1.1.0, runtime-spec 1.1.0)"
	fields := strings.Fields(chompBytesToString(output))
	v := dockertypes.Version{}
	if len(fields) >= 3 {
		v.Version = fields[2]
	}
	return v, nil
}

// CheckReachable verifies the buildah binary can be executed.
func (b *Buildah) CheckReachable() error {
	_, err := b.Version()
	return err
}

// InspectImage runs local "buildah inspect", but transforms the output into a api.Image instance. A
// missing image is reported as ImageNotFoundError.
func (b *Buildah) InspectImage(name string) (*api.Image, error) {
	imageMetadata, err := b.inspectImage(name)
	if err != nil {
		log.V(4).Infof("error inspecting image %s: %v", name, err)
		if isNotFound(err) {
			return nil, r2ierr.NewImageNotFoundError(name, err)
		}
		return nil, r2ierr.NewInspectImageError(name, err)
	}
	config := imageMetadata.Docker.Config
	img := &api.Image{
		ID: imageMetadata.FromImageID,
		Config: &api.ContainerConfig{
			User:         config.User,
			Env:          config.Env,
			Labels:       config.Labels,
			Cmd:          config.Cmd,
			Entrypoint:   config.Entrypoint,
			WorkingDir:   config.WorkingDir,
			ExposedPorts: config.ports(),
		},
	}
	if len(img.ID) > 0 && !strings.HasPrefix(img.ID, "sha256:") {
		img.ID = "sha256:" + img.ID
	}
	if rd := repoDigest(name, imageMetadata.FromImageDigest); len(rd) > 0 {
		img.RepoDigests = []string{rd}
	}
	return img, nil
}

// repoDigest combines the repository of name with the manifest digest
// buildah recorded for the image.
func repoDigest(name, manifestDigest string) string {
	if len(manifestDigest) == 0 {
		return ""
	}
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return ""
	}
	return reference.FamiliarName(named) + "@" + manifestDigest
}

// IsImageInLocalRegistry tries to inspect the image name, if no error is raised it returns true.
func (b *Buildah) IsImageInLocalRegistry(name string) (bool, error) {
	_, err := b.InspectImage(docker.GetImageName(name))
	if r2ierr.IsImageNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetImageID returns the image ID. It can return error in case of inspect method does.
func (b *Buildah) GetImageID(name string) (string, error) {
	img, err := b.InspectImage(name)
	if err != nil {
		return "", err
	}
	return img.ID, nil
}

// RemoveImage execute buildah rmi in order to remove the informed image. It can return error when
// the command does.
func (b *Buildah) RemoveImage(name string) error {
	log.V(2).Infof("Removing image '%s'...", name)
	_, err := b.execute([]string{buildahCmd, "rmi", "--force", name}, nil, true)
	return err
}

// TagImage adds target as a name of source.
func (b *Buildah) TagImage(source, target string) error {
	log.V(2).Infof("Tagging '%s' as '%s'...", source, target)
	_, err := b.execute([]string{buildahCmd, "tag", source, target}, nil, true)
	return err
}

// CheckImage proxy to image inspection.
func (b *Buildah) CheckImage(name string) (*api.Image, error) {
	return b.InspectImage(docker.GetImageName(name))
}

// PullImage execute "buildah pull" and inspect image in order to crate api.Image object. An unknown
// repository or tag is reported as ImageNotFoundError.
func (b *Buildah) PullImage(name string) (*api.Image, error) {
	name = docker.GetImageName(name)
	log.V(2).Infof("Pulling image '%s'...", name)
	if _, err := b.execute([]string{buildahCmd, "pull", "--quiet", name}, nil, true); err != nil {
		if isNotFound(err) {
			return nil, r2ierr.NewImageNotFoundError(name, err)
		}
		return nil, r2ierr.NewPullImageError(name, err)
	}
	return b.InspectImage(name)
}

// CheckAndPullImage make sure image exists or it can be pulled to local registry. It can return
// error when buildah commands fail, and in case of not being able to find informed image.
func (b *Buildah) CheckAndPullImage(name string) (*api.Image, error) {
	name = docker.GetImageName(name)
	image, err := b.CheckImage(name)
	if err == nil {
		log.V(3).Infof("Using locally available image %q", name)
		return image, nil
	}
	if !r2ierr.IsImageNotFound(err) {
		return nil, err
	}
	log.V(1).Infof("Image %q not available locally, pulling ...", name)
	return b.PullImage(name)
}

// BuildImage with "buildah bud" command, using the Dockerfile named in opts inside the context
// directory. The image ID is read back from an iidfile.
func (b *Buildah) BuildImage(opts docker.BuildImageOptions) (string, error) {
	iidFile, err := os.CreateTemp("", "r2i-iid-")
	if err != nil {
		return "", err
	}
	iidFile.Close()
	defer os.Remove(iidFile.Name())

	cmd := []string{buildahCmd, "bud", "--iidfile", iidFile.Name()}
	if len(opts.Name) > 0 {
		cmd = append(cmd, "--tag", opts.Name)
	}
	if len(opts.Dockerfile) > 0 {
		cmd = append(cmd, "--file", filepath.Join(opts.ContextDir, opts.Dockerfile))
	}
	keys := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd = append(cmd, "--label", fmt.Sprintf("%s=%s", k, opts.Labels[k]))
	}
	cmd = append(cmd, opts.ContextDir)

	log.V(2).Infof("Building Dockerfile on context directory '%s' using tag '%s'", opts.ContextDir, opts.Name)
	output, err := b.execute(cmd, nil, true)
	if opts.Stdout != nil && len(output) > 0 {
		if _, werr := opts.Stdout.Write(output); werr != nil {
			log.V(3).Infof("Unable to write build output: %v", werr)
		}
	}
	if err != nil {
		return "", err
	}

	id, err := os.ReadFile(iidFile.Name())
	if err != nil {
		return "", err
	}
	if len(id) == 0 && len(opts.Name) > 0 {
		return b.GetImageID(opts.Name)
	}
	return strings.TrimSpace(string(id)), nil
}

// RunContainer is not supported by the buildah backend, since buildah does not run application
// containers.
func (b *Buildah) RunContainer(opts docker.RunContainerOptions) error {
	return fmt.Errorf("running image %q is not supported with the buildah container manager", opts.Image)
}

var _ docker.Docker = &Buildah{}
