package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"sort"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/docker/go-connections/tlsconfig"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/openshift/recipe-to-image/pkg/api"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	"github.com/openshift/recipe-to-image/pkg/util"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

const (
	// DefaultDockerTimeout specifies a timeout for Docker API calls. When this
	// timeout is reached, certain Docker API calls might error out.
	DefaultDockerTimeout = 2 * time.Minute

	// DefaultPullTimeout bounds a single image pull.
	DefaultPullTimeout = 30 * time.Minute
)

// Docker is the interface between r2i and the container engine, which
// contains only the image and container operations the build pipeline
// needs.
type Docker interface {
	CheckReachable() error
	Version() (dockertypes.Version, error)
	IsImageInLocalRegistry(name string) (bool, error)
	InspectImage(name string) (*api.Image, error)
	CheckImage(name string) (*api.Image, error)
	GetImageID(name string) (string, error)
	PullImage(name string) (*api.Image, error)
	CheckAndPullImage(name string) (*api.Image, error)
	BuildImage(opts BuildImageOptions) (string, error)
	TagImage(source, target string) error
	RemoveImage(name string) error
	RunContainer(opts RunContainerOptions) error
}

// Client contains all methods used when interacting directly with docker
// engine-api.
type Client interface {
	ImageInspect(ctx context.Context, image string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options dockertypes.ImageBuildOptions) (dockertypes.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImageRemove(ctx context.Context, image string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerLogs(ctx context.Context, container string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ServerVersion(ctx context.Context) (dockertypes.Version, error)
}

type stiDocker struct {
	client Client
}

// BuildImageOptions are options passed in to the BuildImage method.
type BuildImageOptions struct {
	// Name is the tag given to the built image.
	Name string
	// ContextDir is the directory sent to the engine as build context.
	ContextDir string
	// Dockerfile is the Dockerfile path relative to ContextDir.
	Dockerfile string
	// Labels are set on the built image in addition to the Dockerfile ones.
	Labels map[string]string
	// Stdout receives the build output. Nil discards it.
	Stdout io.Writer
}

// RunContainerOptions are options passed in to the RunContainer method.
type RunContainerOptions struct {
	Image string
	// Ports are the container ports published on the same host port.
	Ports []int
	Env   []string
	// Remove removes the container after it exited.
	Remove bool
	// OnStart is called with the container ID once the container runs.
	OnStart func(containerID string) error
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewEngineAPIClient creates a new Docker engine API client
func NewEngineAPIClient(config *api.DockerConfig) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if config == nil {
		return client.NewClientWithOpts(opts...)
	}
	if len(config.Endpoint) > 0 {
		opts = append(opts, client.WithHost(config.Endpoint))
	}
	if config.UseTLS || config.TLSVerify {
		tlsc, err := tlsconfig.Client(tlsconfig.Options{
			CAFile:             config.CAFile,
			CertFile:           config.CertFile,
			KeyFile:            config.KeyFile,
			InsecureSkipVerify: !config.TLSVerify,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithHTTPClient(&http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsc},
		}))
	}
	return client.NewClientWithOpts(opts...)
}

// New creates a new implementation of the Docker interface over client.
func New(client Client) Docker {
	return &stiDocker{client: client}
}

func getDefaultContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultDockerTimeout)
}

// Version returns information of the docker client and server host
func (d *stiDocker) Version() (dockertypes.Version, error) {
	ctx, cancel := getDefaultContext()
	defer cancel()
	return d.client.ServerVersion(ctx)
}

// CheckReachable checks if Docker is reachable
func (d *stiDocker) CheckReachable() error {
	_, err := d.Version()
	return err
}

// IsImageInLocalRegistry determines whether the supplied image is in the
// local registry.
func (d *stiDocker) IsImageInLocalRegistry(name string) (bool, error) {
	_, err := d.InspectImage(name)
	if r2ierr.IsImageNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InspectImage returns the image information for a given image. A missing
// image is reported as ImageNotFoundError.
func (d *stiDocker) InspectImage(name string) (*api.Image, error) {
	ctx, cancel := getDefaultContext()
	defer cancel()
	resp, err := d.client.ImageInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, r2ierr.NewImageNotFoundError(name, err)
		}
		return nil, r2ierr.NewInspectImageError(name, err)
	}
	return imageFromInspect(resp), nil
}

// CheckImage checks image from the local registry.
func (d *stiDocker) CheckImage(name string) (*api.Image, error) {
	return d.InspectImage(GetImageName(name))
}

// GetImageID retrieves the ID of the image identified by name
func (d *stiDocker) GetImageID(name string) (string, error) {
	img, err := d.InspectImage(name)
	if err != nil {
		return "", err
	}
	return img.ID, nil
}

// PullImage pulls an image into the local registry. An unknown repository
// or tag is reported as ImageNotFoundError.
func (d *stiDocker) PullImage(name string) (*api.Image, error) {
	name = GetImageName(name)
	log.V(2).Infof("Pulling image %q", name)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPullTimeout)
	defer cancel()
	resp, err := d.client.ImagePull(ctx, name, image.PullOptions{})
	if err == nil {
		err = jsonmessage.DisplayJSONMessagesStream(resp, utillog.NewWriter(log.V(5).Info), 0, false, nil)
		resp.Close()
	}
	if err != nil {
		if isNotFound(err) {
			return nil, r2ierr.NewImageNotFoundError(name, err)
		}
		return nil, r2ierr.NewPullImageError(name, err)
	}
	return d.InspectImage(name)
}

var notFoundRegex = regexp.MustCompile(`(?i)manifest unknown|not found|does not exist|pull access denied|repository name unknown`)

func isNotFound(err error) bool {
	return errdefs.IsNotFound(err) || notFoundRegex.MatchString(err.Error())
}

// CheckAndPullImage pulls an image into the local registry if not present
// and returns the image metadata
func (d *stiDocker) CheckAndPullImage(name string) (*api.Image, error) {
	name = GetImageName(name)
	img, err := d.InspectImage(name)
	if err == nil {
		log.V(3).Infof("Using locally available image %q", name)
		return img, nil
	}
	if !r2ierr.IsImageNotFound(err) {
		return nil, err
	}
	return d.PullImage(name)
}

// BuildImage builds the image according to specified options and returns
// the ID of the built image.
func (d *stiDocker) BuildImage(opts BuildImageOptions) (string, error) {
	buildContext, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{})
	if err != nil {
		return "", err
	}
	defer buildContext.Close()

	dockerOpts := dockertypes.ImageBuildOptions{
		Dockerfile:  opts.Dockerfile,
		Labels:      opts.Labels,
		Remove:      true,
		ForceRemove: true,
	}
	if len(opts.Name) > 0 {
		dockerOpts.Tags = []string{opts.Name}
	}
	log.V(2).Infof("Building container using config: %+v", dockerOpts)

	resp, err := d.client.ImageBuild(context.Background(), buildContext, dockerOpts)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	out := opts.Stdout
	if out == nil {
		out = io.Discard
	}
	var imageID string
	aux := func(msg jsonmessage.JSONMessage) {
		var result dockertypes.BuildResult
		if msg.Aux != nil && json.Unmarshal(*msg.Aux, &result) == nil && len(result.ID) > 0 {
			imageID = result.ID
		}
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, aux); err != nil {
		return "", err
	}
	if len(imageID) == 0 && len(opts.Name) > 0 {
		return d.GetImageID(opts.Name)
	}
	if len(imageID) == 0 {
		return "", fmt.Errorf("the engine did not report the ID of the built image")
	}
	return imageID, nil
}

// TagImage adds target as a tag of source.
func (d *stiDocker) TagImage(source, target string) error {
	ctx, cancel := getDefaultContext()
	defer cancel()
	log.V(2).Infof("Tagging %s as %s", source, target)
	return d.client.ImageTag(ctx, source, target)
}

// RemoveImage removes the image with specified ID, or untags it when name
// is one of several references.
func (d *stiDocker) RemoveImage(name string) error {
	ctx, cancel := getDefaultContext()
	defer cancel()
	_, err := d.client.ImageRemove(ctx, name, image.RemoveOptions{Force: true, PruneChildren: true})
	return err
}

// RunContainer creates and starts a container from opts.Image, streams its
// output and waits for it to exit. A non-zero exit code is reported as a
// ContainerError.
func (d *stiDocker) RunContainer(opts RunContainerOptions) error {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range opts.Ports {
		port := nat.Port(fmt.Sprintf("%d/tcp", p))
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: fmt.Sprintf("%d", p)}}
	}
	config := &container.Config{
		Image:        opts.Image,
		Env:          opts.Env,
		ExposedPorts: exposed,
	}
	hostConfig := &container.HostConfig{PortBindings: bindings}
	name := containerName(opts.Image)
	log.V(2).Infof("Creating container with options {Name:%q Config:%+v HostConfig:%+v}", name, util.SafeForLoggingContainerConfig(config), hostConfig)

	ctx := context.Background()
	created, err := d.client.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return err
	}
	if opts.Remove {
		defer func() {
			rctx, cancel := getDefaultContext()
			defer cancel()
			if err := d.client.ContainerRemove(rctx, created.ID, container.RemoveOptions{Force: true}); err != nil {
				log.Warningf("Unable to remove container %q: %v", created.ID, err)
			}
		}()
	}

	waitC, errC := d.client.ContainerWait(ctx, created.ID, container.WaitConditionNextExit)
	if err := d.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return err
	}
	if opts.OnStart != nil {
		if err := opts.OnStart(created.ID); err != nil {
			return err
		}
	}

	logs, err := d.client.ContainerLogs(ctx, created.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true})
	if err != nil {
		return err
	}
	defer logs.Close()
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	errOutput := &bytes.Buffer{}
	if _, err := stdcopy.StdCopy(stdout, io.MultiWriter(stderr, errOutput), logs); err != nil {
		log.V(3).Infof("Log stream of %s ended: %v", created.ID, err)
	}

	select {
	case err := <-errC:
		return err
	case res := <-waitC:
		if res.Error != nil && len(res.Error.Message) > 0 {
			return fmt.Errorf("waiting for container %s: %s", created.ID, res.Error.Message)
		}
		if res.StatusCode != 0 {
			return r2ierr.NewContainerError(name, int(res.StatusCode), errOutput.String())
		}
	}
	return nil
}

var containerNameRegex = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// containerName creates a unique container name from the image name.
func containerName(image string) string {
	uid := fmt.Sprintf("%08x", rand.Uint32())
	name := containerNameRegex.ReplaceAllString(image, "_")
	return fmt.Sprintf("r2i_%s_%s", name, uid)
}

// imageFromInspect copies the engine image metadata into an api.Image.
func imageFromInspect(resp image.InspectResponse) *api.Image {
	img := &api.Image{
		ID:          resp.ID,
		RepoTags:    resp.RepoTags,
		RepoDigests: resp.RepoDigests,
		Config:      &api.ContainerConfig{},
	}
	if resp.Config == nil {
		return img
	}
	c := resp.Config
	img.Config.User = c.User
	img.Config.Env = c.Env
	img.Config.Labels = c.Labels
	img.Config.Cmd = c.Cmd
	img.Config.Entrypoint = c.Entrypoint
	img.Config.WorkingDir = c.WorkingDir
	for port := range c.ExposedPorts {
		img.Config.ExposedPorts = append(img.Config.ExposedPorts, string(port))
	}
	sort.Strings(img.Config.ExposedPorts)
	return img
}
