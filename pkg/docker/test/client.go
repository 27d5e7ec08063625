package test

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/distribution/reference"
	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	dockerspec "github.com/moby/docker-image-spec/specs-go/v1"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// FakeDockerClient provides a fake engine for Docker testing. It keeps an
// in-memory image store and interprets the Dockerfile directives r2i emits
// (FROM, WORKDIR, COPY, RUN, ENV, LABEL, EXPOSE, CMD) so that images built
// through it carry the declared configuration.
type FakeDockerClient struct {
	// Images holds the local images keyed by ID.
	Images map[string]image.InspectResponse
	// Tags maps familiar references to image IDs.
	Tags map[string]string
	// Registry holds the images ImagePull can fetch, keyed by familiar
	// reference.
	Registry map[string]image.InspectResponse

	InspectErr error
	PullErr    error
	BuildErr   error
	TagErr     error
	VersionErr error

	// RunFailure returns the failure message of a RUN instruction, or "" if
	// the instruction succeeds.
	RunFailure func(instruction string) string
	// InspectFailure returns the error inspecting name fails with, or nil.
	InspectFailure func(name string) error

	BuildImageOpts []dockertypes.ImageBuildOptions
	Dockerfiles    []string
	Runs           []string

	Containers        map[string]*container.Config
	ContainerExitCode int64
	ContainerOutput   string
	ContainerErrorOut string

	Calls []string
}

// NewFakeDockerClient returns an empty fake engine.
func NewFakeDockerClient() *FakeDockerClient {
	return &FakeDockerClient{
		Images:     map[string]image.InspectResponse{},
		Tags:       map[string]string{},
		Registry:   map[string]image.InspectResponse{},
		Containers: map[string]*container.Config{},
	}
}

// NewImage returns an image with a deterministic ID derived from name.
func NewImage(name string, config ocispec.ImageConfig) image.InspectResponse {
	id := digest.FromString("image:" + name).String()
	return image.InspectResponse{
		ID:     id,
		Config: &dockerspec.DockerOCIImageConfig{ImageConfig: config},
	}
}

// AddRegistryImage makes name pullable. The image gets a repository digest
// so it can be pinned.
func (d *FakeDockerClient) AddRegistryImage(name string, config ocispec.ImageConfig) image.InspectResponse {
	img := NewImage(name, config)
	familiar := familiarName(name)
	img.RepoTags = []string{familiar}
	img.RepoDigests = []string{repoName(familiar) + "@" + digest.FromString("manifest:"+familiar).String()}
	d.Registry[familiar] = img
	return img
}

// AddLocalImage stores an image that was never pushed, so it has no
// repository digest.
func (d *FakeDockerClient) AddLocalImage(name string, config ocispec.ImageConfig) image.InspectResponse {
	img := NewImage(name, config)
	d.store(img, familiarName(name))
	return d.Images[img.ID]
}

// TaggedID returns the ID of the image tagged name, or "".
func (d *FakeDockerClient) TaggedID(name string) string {
	return d.Tags[familiarName(name)]
}

func familiarName(name string) string {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return name
	}
	return reference.FamiliarString(reference.TagNameOnly(named))
}

func repoName(name string) string {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return name
	}
	return reference.FamiliarName(named)
}

func (d *FakeDockerClient) store(img image.InspectResponse, tags ...string) {
	if existing, ok := d.Images[img.ID]; ok {
		digests := existing.RepoDigests
		for _, rd := range img.RepoDigests {
			if !contains(digests, rd) {
				digests = append(digests, rd)
			}
		}
		img.RepoTags = existing.RepoTags
		img.RepoDigests = digests
	}
	for _, tag := range tags {
		if old, ok := d.Tags[tag]; ok && old != img.ID {
			d.untag(old, tag)
		}
		d.Tags[tag] = img.ID
		if !contains(img.RepoTags, tag) {
			img.RepoTags = append(img.RepoTags, tag)
		}
	}
	d.Images[img.ID] = img
}

func (d *FakeDockerClient) untag(id, tag string) {
	img, ok := d.Images[id]
	if !ok {
		return
	}
	tags := []string{}
	for _, t := range img.RepoTags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	img.RepoTags = tags
	d.Images[id] = img
}

func (d *FakeDockerClient) lookup(name string) (image.InspectResponse, bool) {
	if img, ok := d.Images[name]; ok {
		return img, true
	}
	if img, ok := d.Images["sha256:"+name]; ok {
		return img, true
	}
	if id, ok := d.Tags[familiarName(name)]; ok {
		img, ok := d.Images[id]
		return img, ok
	}
	for _, img := range d.Images {
		for _, rd := range img.RepoDigests {
			if rd == name || familiarName(rd) == familiarName(name) {
				return img, true
			}
		}
	}
	return image.InspectResponse{}, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// ImageInspect returns the local image identified by ID, tag or digest.
func (d *FakeDockerClient) ImageInspect(ctx context.Context, name string, opts ...client.ImageInspectOption) (image.InspectResponse, error) {
	d.Calls = append(d.Calls, "inspect_image")
	if d.InspectErr != nil {
		return image.InspectResponse{}, d.InspectErr
	}
	if d.InspectFailure != nil {
		if err := d.InspectFailure(name); err != nil {
			return image.InspectResponse{}, err
		}
	}
	if img, ok := d.lookup(name); ok {
		return img, nil
	}
	return image.InspectResponse{}, errdefs.NotFound(fmt.Errorf("No such image: %s", name))
}

// ImagePull copies an image from Registry into the local store.
func (d *FakeDockerClient) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	d.Calls = append(d.Calls, "pull")
	if d.PullErr != nil {
		return nil, d.PullErr
	}
	familiar := familiarName(ref)
	img, ok := d.Registry[familiar]
	if !ok {
		return nil, errdefs.NotFound(fmt.Errorf("manifest for %s not found: manifest unknown", familiar))
	}
	d.store(img, familiar)
	out := &bytes.Buffer{}
	writeMessage(out, jsonmessage.JSONMessage{Status: "Status: Downloaded newer image for " + familiar})
	return io.NopCloser(out), nil
}

// ImageBuild interprets the Dockerfile found in the build context.
func (d *FakeDockerClient) ImageBuild(ctx context.Context, buildContext io.Reader, options dockertypes.ImageBuildOptions) (dockertypes.ImageBuildResponse, error) {
	d.Calls = append(d.Calls, "build")
	d.BuildImageOpts = append(d.BuildImageOpts, options)
	if d.BuildErr != nil {
		return dockertypes.ImageBuildResponse{}, d.BuildErr
	}

	files, err := readContext(buildContext)
	if err != nil {
		return dockertypes.ImageBuildResponse{}, err
	}
	dockerfileName := options.Dockerfile
	if len(dockerfileName) == 0 {
		dockerfileName = "Dockerfile"
	}
	dockerfile, ok := files[dockerfileName]
	if !ok {
		return dockertypes.ImageBuildResponse{}, fmt.Errorf("Cannot locate specified Dockerfile: %s", dockerfileName)
	}
	d.Dockerfiles = append(d.Dockerfiles, string(dockerfile))

	out := &bytes.Buffer{}
	img, err := d.build(string(dockerfile), files, options, out)
	if err != nil {
		writeMessage(out, jsonmessage.JSONMessage{
			Error:        &jsonmessage.JSONError{Message: err.Error()},
			ErrorMessage: err.Error(),
		})
		return dockertypes.ImageBuildResponse{Body: io.NopCloser(out)}, nil
	}
	d.store(img, tagNames(options.Tags)...)
	aux, _ := json.Marshal(dockertypes.BuildResult{ID: img.ID})
	raw := json.RawMessage(aux)
	writeMessage(out, jsonmessage.JSONMessage{Aux: &raw})
	writeMessage(out, jsonmessage.JSONMessage{Stream: "Successfully built " + shortID(img.ID) + "\n"})
	return dockertypes.ImageBuildResponse{Body: io.NopCloser(out)}, nil
}

func tagNames(tags []string) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, familiarName(t))
	}
	return names
}

func (d *FakeDockerClient) build(dockerfile string, files map[string][]byte, options dockertypes.ImageBuildOptions, out io.Writer) (image.InspectResponse, error) {
	var (
		config ocispec.ImageConfig
		parent string
		hash   = digest.Canonical.Digester()
	)
	lines := instructions(dockerfile)
	for i, line := range lines {
		writeMessage(out, jsonmessage.JSONMessage{Stream: fmt.Sprintf("Step %d/%d : %s\n", i+1, len(lines), line)})
		keyword, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		fmt.Fprintf(hash.Hash(), "%s\n", line)

		switch strings.ToUpper(keyword) {
		case "FROM":
			base, ok := d.lookup(rest)
			if !ok {
				return image.InspectResponse{}, fmt.Errorf("pull access denied for %s, repository does not exist or may require 'docker login'", rest)
			}
			parent = base.ID
			fmt.Fprintf(hash.Hash(), "%s\n", base.ID)
			if base.Config != nil {
				config = cloneConfig(base.Config.ImageConfig)
			}
		case "WORKDIR":
			config.WorkingDir = unquote(rest)
		case "COPY":
			var fields []string
			if strings.HasPrefix(rest, "[") {
				if err := json.Unmarshal([]byte(rest), &fields); err != nil {
					return image.InspectResponse{}, fmt.Errorf("COPY: %v", err)
				}
			} else {
				fields = strings.Fields(rest)
			}
			if len(fields) < 2 {
				return image.InspectResponse{}, fmt.Errorf("COPY requires at least two arguments")
			}
			for _, src := range fields[:len(fields)-1] {
				content, ok := files[strings.TrimPrefix(src, "./")]
				if !ok {
					return image.InspectResponse{}, fmt.Errorf("COPY failed: file not found in build context or excluded by .dockerignore: stat %s: file does not exist", src)
				}
				hash.Hash().Write(content)
			}
		case "RUN":
			d.Runs = append(d.Runs, rest)
			if d.RunFailure != nil {
				if msg := d.RunFailure(rest); len(msg) > 0 {
					writeMessage(out, jsonmessage.JSONMessage{Stream: msg + "\n"})
					return image.InspectResponse{}, fmt.Errorf("The command '%s' returned a non-zero code: 1", rest)
				}
			}
		case "ENV":
			key, value := splitKeyValue(rest)
			config.Env = setEnv(config.Env, key, value)
		case "LABEL":
			key, value := splitKeyValue(rest)
			if config.Labels == nil {
				config.Labels = map[string]string{}
			}
			config.Labels[key] = value
		case "EXPOSE":
			if config.ExposedPorts == nil {
				config.ExposedPorts = map[string]struct{}{}
			}
			for _, p := range strings.Fields(rest) {
				if !strings.Contains(p, "/") {
					p += "/tcp"
				}
				config.ExposedPorts[p] = struct{}{}
			}
		case "CMD":
			var cmd []string
			if err := json.Unmarshal([]byte(rest), &cmd); err != nil {
				cmd = []string{"/bin/sh", "-c", rest}
			}
			config.Cmd = cmd
		default:
			return image.InspectResponse{}, fmt.Errorf("unknown instruction: %s", keyword)
		}
	}
	if len(parent) == 0 {
		return image.InspectResponse{}, fmt.Errorf("no build stage in current context")
	}

	keys := make([]string, 0, len(options.Labels))
	for k := range options.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if config.Labels == nil {
			config.Labels = map[string]string{}
		}
		config.Labels[k] = options.Labels[k]
		fmt.Fprintf(hash.Hash(), "label %s=%s\n", k, options.Labels[k])
	}

	return image.InspectResponse{
		ID:     hash.Digest().String(),
		Parent: parent,
		Config: &dockerspec.DockerOCIImageConfig{ImageConfig: config},
	}, nil
}

func cloneConfig(c ocispec.ImageConfig) ocispec.ImageConfig {
	out := c
	out.Env = append([]string(nil), c.Env...)
	out.Cmd = append([]string(nil), c.Cmd...)
	if c.Labels != nil {
		out.Labels = map[string]string{}
		for k, v := range c.Labels {
			out.Labels[k] = v
		}
	}
	if c.ExposedPorts != nil {
		out.ExposedPorts = map[string]struct{}{}
		for k := range c.ExposedPorts {
			out.ExposedPorts[k] = struct{}{}
		}
	}
	return out
}

func setEnv(env []string, key, value string) []string {
	for i, e := range env {
		if strings.HasPrefix(e, key+"=") {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}

// splitKeyValue parses a single KEY="value" pair as written by the
// Dockerfile renderer.
func splitKeyValue(s string) (string, string) {
	key, value, _ := strings.Cut(s, "=")
	return unquote(strings.TrimSpace(key)), unquote(strings.TrimSpace(value))
}

func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// instructions returns the Dockerfile instructions with comments and blank
// lines removed.
func instructions(dockerfile string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(dockerfile))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func readContext(r io.Reader) (map[string][]byte, error) {
	files := map[string][]byte{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		files[strings.TrimPrefix(hdr.Name, "./")] = content
	}
}

func writeMessage(w io.Writer, msg jsonmessage.JSONMessage) {
	b, _ := json.Marshal(msg)
	w.Write(append(b, '\n'))
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// ImageTag adds target as a reference to the source image.
func (d *FakeDockerClient) ImageTag(ctx context.Context, source, target string) error {
	d.Calls = append(d.Calls, "tag")
	if d.TagErr != nil {
		return d.TagErr
	}
	img, ok := d.lookup(source)
	if !ok {
		return errdefs.NotFound(fmt.Errorf("No such image: %s", source))
	}
	d.store(img, familiarName(target))
	return nil
}

// ImageRemove untags name, deleting the image once no tag refers to it.
// Removing by ID deletes the image and all its tags.
func (d *FakeDockerClient) ImageRemove(ctx context.Context, name string, options image.RemoveOptions) ([]image.DeleteResponse, error) {
	d.Calls = append(d.Calls, "remove_image")
	img, ok := d.lookup(name)
	if !ok {
		return nil, errdefs.NotFound(fmt.Errorf("No such image: %s", name))
	}
	var resp []image.DeleteResponse
	familiar := familiarName(name)
	if id, tagged := d.Tags[familiar]; tagged && id == img.ID {
		delete(d.Tags, familiar)
		d.untag(img.ID, familiar)
		resp = append(resp, image.DeleteResponse{Untagged: familiar})
		if len(d.Images[img.ID].RepoTags) > 0 {
			return resp, nil
		}
	} else {
		for _, tag := range img.RepoTags {
			delete(d.Tags, tag)
			resp = append(resp, image.DeleteResponse{Untagged: tag})
		}
	}
	delete(d.Images, img.ID)
	return append(resp, image.DeleteResponse{Deleted: img.ID}), nil
}

// ContainerCreate records the container configuration.
func (d *FakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	d.Calls = append(d.Calls, "create")
	if _, ok := d.lookup(config.Image); !ok {
		return container.CreateResponse{}, errdefs.NotFound(fmt.Errorf("No such image: %s", config.Image))
	}
	id := containerName
	d.Containers[id] = config
	return container.CreateResponse{ID: id}, nil
}

// ContainerStart starts nothing.
func (d *FakeDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	d.Calls = append(d.Calls, "start")
	if _, ok := d.Containers[containerID]; !ok {
		return errdefs.NotFound(fmt.Errorf("No such container: %s", containerID))
	}
	return nil
}

// ContainerLogs returns ContainerOutput and ContainerErrorOut multiplexed
// the way the engine does for containers without a TTY.
func (d *FakeDockerClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	d.Calls = append(d.Calls, "logs")
	buf := &bytes.Buffer{}
	if len(d.ContainerOutput) > 0 {
		stdcopy.NewStdWriter(buf, stdcopy.Stdout).Write([]byte(d.ContainerOutput))
	}
	if len(d.ContainerErrorOut) > 0 {
		stdcopy.NewStdWriter(buf, stdcopy.Stderr).Write([]byte(d.ContainerErrorOut))
	}
	return io.NopCloser(buf), nil
}

// ContainerWait reports ContainerExitCode.
func (d *FakeDockerClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	d.Calls = append(d.Calls, "wait")
	resC := make(chan container.WaitResponse, 1)
	errC := make(chan error, 1)
	resC <- container.WaitResponse{StatusCode: d.ContainerExitCode}
	return resC, errC
}

// ContainerRemove forgets the container.
func (d *FakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	d.Calls = append(d.Calls, "remove")
	if _, exists := d.Containers[containerID]; exists {
		delete(d.Containers, containerID)
		return nil
	}
	return errdefs.NotFound(errors.New("container does not exist"))
}

// ServerVersion returns a fixed engine version.
func (d *FakeDockerClient) ServerVersion(ctx context.Context) (dockertypes.Version, error) {
	d.Calls = append(d.Calls, "version")
	if d.VersionErr != nil {
		return dockertypes.Version{}, d.VersionErr
	}
	return dockertypes.Version{Version: "28.0.1", APIVersion: "1.48"}, nil
}
