// Package layered builds the output image as a chain of single purpose
// layer images, one per pipeline stage, on top of the pinned base image.
package layered

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	"github.com/openshift/recipe-to-image/pkg/build"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/dockerfile"
	"github.com/openshift/recipe-to-image/pkg/docker"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	"github.com/openshift/recipe-to-image/pkg/resolver"
	"github.com/openshift/recipe-to-image/pkg/scm"
	"github.com/openshift/recipe-to-image/pkg/scm/git"
	"github.com/openshift/recipe-to-image/pkg/util"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
	"github.com/openshift/recipe-to-image/pkg/util/status"
)

var log = utillog.StderrLog

// DefaultResolveTimeout bounds the resolution of the whole manifest.
const DefaultResolveTimeout = 5 * time.Minute

// Layered runs the build pipeline. Every stage builds one image from the
// image of the previous stage, and only the last one is tagged with the
// requested tag.
type Layered struct {
	docker  docker.Docker
	fs      fs.FileSystem
	source  build.Downloader
	index   resolver.Index
	cleaner *build.DefaultCleaner

	pipeline *build.Pipeline
	result   *api.Result
	info     *git.SourceInfo
	name     string
}

var (
	_ build.Builder  = &Layered{}
	_ build.Preparer = &Layered{}
)

// New returns a new instance of the layered builder. When index is nil the
// manifest is resolved against the index named by the manifest or config.
func New(config *api.Config, fs fs.FileSystem, d docker.Docker, index resolver.Index) (*Layered, error) {
	downloader, err := scm.DownloaderForSource(fs, config.Source, utillog.NewWriter(log.V(2).Info))
	if err != nil {
		return nil, err
	}
	return &Layered{
		docker:   d,
		fs:       fs,
		source:   downloader,
		index:    index,
		cleaner:  build.NewDefaultCleaner(fs, d),
		pipeline: build.NewPipeline(),
		result:   &api.Result{Phase: api.PhaseStart},
		name:     fmt.Sprintf("r2i-build-%012x", rand.Int63n(1<<48)),
	}, nil
}

// Prepare creates the working directory and fetches the build inputs into
// it.
func (l *Layered) Prepare(config *api.Config) error {
	if len(config.WorkingDir) == 0 {
		dir, err := l.fs.CreateWorkingDirectory()
		if err != nil {
			l.result.BuildInfo.FailureReason = status.NewFailureReason(
				status.ReasonFSOperationFailed,
				status.ReasonMessageFSOperationFailed,
			)
			return err
		}
		config.WorkingDir = dir
	}
	l.result.WorkingDir = config.WorkingDir

	startTime := time.Now()
	info, err := l.source.Download(config)
	l.record(api.StagePreflight, api.StepFetchSource, startTime)
	if err != nil {
		return r2ierr.NewFetchSourceError(config.Source, err)
	}
	l.info = info
	return nil
}

// Build runs the pipeline. On failure the intermediate images of this build
// are removed and nothing is tagged.
func (l *Layered) Build(config *api.Config) (*api.Result, error) {
	if len(config.Tag) == 0 {
		return l.fail(r2ierr.NewInvalidRecipeError([]string{"an output tag is required"}))
	}
	defer l.cleaner.Cleanup(config)

	if err := l.Prepare(config); err != nil {
		return l.fail(err)
	}

	startTime := time.Now()
	in, err := build.GatherInputs(l.fs, config, l.info)
	l.record(api.StagePreflight, api.StepVerifyInputs, startTime)
	if err != nil {
		return l.fail(err)
	}

	baseRef, from, err := l.selectBase(config)
	if err != nil {
		return l.fail(err)
	}

	labels := util.GenerateOutputImageLabels(l.info, config, baseRef, "")
	inputsDigest := build.InputsDigest(baseRef, in, config, labels)
	l.result.InputsDigest = inputsDigest.String()
	if config.Reuse {
		if reused, ok := l.reuse(config, inputsDigest); ok {
			return reused, nil
		}
	}
	md := dockerfile.Metadata{
		WorkDir: config.ImageWorkDir,
		Env:     in.Env,
		Labels:  util.GenerateOutputImageLabels(l.info, config, baseRef, inputsDigest.String()),
		Port:    config.Port,
		Command: in.Command,
	}
	if err := md.Validate(); err != nil {
		return l.fail(err)
	}

	if from, err = l.installDependencies(config, in, from); err != nil {
		return l.fail(err)
	}
	if from, err = l.placeArtifact(config, in, from); err != nil {
		return l.fail(err)
	}
	if from, err = l.declareMetadata(config, from, md); err != nil {
		return l.fail(err)
	}
	if err := l.publish(config, from); err != nil {
		return l.fail(err)
	}

	l.result.Success = true
	l.result.Phase = l.pipeline.Phase()
	l.result.Messages = append(l.result.Messages, fmt.Sprintf("Built image %s as %s", l.result.ImageID, config.Tag))
	return l.result, nil
}

// selectBase applies the pull policy and pins the base image. It returns
// the pinned reference and the name the next stage builds from.
func (l *Layered) selectBase(config *api.Config) (string, string, error) {
	startTime := time.Now()
	pulled, err := docker.PullImage(config.BaseImage, l.docker, config.PullPolicy)
	l.record(api.StageBase, api.StepPullBaseImage, startTime)
	if err != nil {
		return "", "", err
	}

	startTime = time.Now()
	defer l.record(api.StageBase, api.StepPinBaseImage, startTime)
	baseRef, err := docker.PinnedReference(config.BaseImage, pulled.Image)
	if err != nil {
		return "", "", r2ierr.NewInspectImageError(config.BaseImage, err)
	}
	from := baseRef
	if _, err := digest.Parse(baseRef); err == nil {
		// FROM takes a reference, so the ID gets a temporary tag.
		from = l.stageTag("base")
		if err := l.docker.TagImage(baseRef, from); err != nil {
			return "", "", r2ierr.NewTagImageError(from, err)
		}
		l.cleaner.Track(from)
	}
	log.V(1).Infof("Using base image %s", baseRef)
	l.result.BaseImageRef = baseRef
	return baseRef, from, l.pipeline.Advance(api.PhaseBaseSelected)
}

// reuse returns the result for the image already tagged config.Tag when it
// was built from the same inputs.
func (l *Layered) reuse(config *api.Config, inputsDigest digest.Digest) (*api.Result, bool) {
	img, err := l.docker.InspectImage(config.Tag)
	if err != nil || img.Config == nil {
		return nil, false
	}
	if img.Config.Labels[util.BuildLabel(config, "inputs-digest")] != inputsDigest.String() {
		log.V(2).Infof("Image %s was built from different inputs", config.Tag)
		return nil, false
	}
	log.V(0).Infof("Image %s is up to date, reusing %s", config.Tag, img.ID)
	l.result.Success = true
	l.result.Reused = true
	l.result.ImageID = img.ID
	l.result.Tag = config.Tag
	l.result.Phase = api.PhaseBuilt
	l.result.Metadata = docker.ImageMetadataFromImage(img, util.BuildLabel(config, "port"))
	l.result.Messages = append(l.result.Messages, fmt.Sprintf("Reused image %s as %s", img.ID, config.Tag))
	return l.result, true
}

// installDependencies resolves the manifest and builds the dependency
// layer. Any failure is a DependencyResolutionError.
func (l *Layered) installDependencies(config *api.Config, in *build.Inputs, from string) (string, error) {
	index := l.index
	if index == nil {
		index = build.IndexFor(in.Manifest, config.IndexURL)
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultResolveTimeout)
	defer cancel()

	startTime := time.Now()
	content, lines, inImageName, err := build.LockFile(ctx, index, config, in.Manifest)
	l.record(api.StageDependencies, api.StepResolveDependencies, startTime)
	if err != nil {
		return "", err
	}
	l.result.Lock = lines

	contextDir, err := l.stageDir(config, "deps")
	if err != nil {
		return "", err
	}
	if err := l.fs.WriteFile(filepath.Join(contextDir, inImageName), content); err != nil {
		return "", err
	}
	manifest := dockerfile.File{Source: inImageName, Target: inImageName}
	df := dockerfile.DependenciesStage(from, config.ImageWorkDir, manifest, build.InstallCommand(config, inImageName))

	startTime = time.Now()
	next, err := l.buildStage(config, api.StageDependencies, "deps", contextDir, df)
	l.record(api.StageDependencies, api.StepBuildDependenciesLayer, startTime)
	if err != nil {
		return "", r2ierr.NewDependencyResolutionError(nil, err)
	}
	return next, l.pipeline.Advance(api.PhaseDependenciesInstalled)
}

// placeArtifact builds the layer holding the artifact.
func (l *Layered) placeArtifact(config *api.Config, in *build.Inputs, from string) (string, error) {
	contextDir, err := l.stageDir(config, "artifact")
	if err != nil {
		return "", err
	}
	rel := path.Clean(filepath.ToSlash(config.ArtifactPath))
	target := filepath.Join(contextDir, filepath.FromSlash(rel))
	if err := l.fs.MkdirAll(filepath.Dir(target)); err != nil {
		return "", err
	}
	if err := l.fs.Copy(in.ArtifactFile, target); err != nil {
		return "", err
	}
	df := dockerfile.ArtifactStage(from, config.ImageWorkDir, dockerfile.File{Source: rel, Target: rel})

	startTime := time.Now()
	next, err := l.buildStage(config, api.StageArtifact, "artifact", contextDir, df)
	l.record(api.StageArtifact, api.StepBuildArtifactLayer, startTime)
	if err != nil {
		return "", r2ierr.NewBuildError("artifact", err.Error(), err)
	}
	return next, l.pipeline.Advance(api.PhaseArtifactPlaced)
}

// declareMetadata builds the layer declaring the runtime metadata. It adds
// no files.
func (l *Layered) declareMetadata(config *api.Config, from string, md dockerfile.Metadata) (string, error) {
	contextDir, err := l.stageDir(config, "metadata")
	if err != nil {
		return "", err
	}
	df := dockerfile.MetadataStage(from, md)

	startTime := time.Now()
	next, err := l.buildStage(config, api.StageMetadata, "metadata", contextDir, df)
	l.record(api.StageMetadata, api.StepBuildMetadataLayer, startTime)
	if err != nil {
		return "", r2ierr.NewBuildError("metadata", err.Error(), err)
	}
	return next, l.pipeline.Advance(api.PhaseMetadataDeclared)
}

// publish checks what the metadata layer declares and tags it. Nothing is
// tagged when the layer does not expose the requested port.
func (l *Layered) publish(config *api.Config, from string) error {
	if !l.pipeline.Reached(api.PhaseMetadataDeclared) {
		return r2ierr.NewStageOrderError(string(l.pipeline.Phase()), string(api.PhaseBuilt))
	}
	startTime := time.Now()
	img, err := l.docker.InspectImage(from)
	l.record(api.StagePublish, api.StepInspectImage, startTime)
	if err != nil {
		return err
	}
	md := docker.ImageMetadataFromImage(img, util.BuildLabel(config, "port"))
	if md.Port != config.Port || !exposes(md.ExposedPorts, config.Port) {
		err := fmt.Errorf("image declares port %d and exposes %v, expected %d/tcp", md.Port, md.ExposedPorts, config.Port)
		return r2ierr.NewBuildError("metadata", err.Error(), err)
	}

	startTime = time.Now()
	err = l.docker.TagImage(from, config.Tag)
	l.record(api.StagePublish, api.StepTagImage, startTime)
	if err != nil {
		return r2ierr.NewTagImageError(config.Tag, err)
	}
	l.result.Tag = config.Tag
	l.result.ImageID = img.ID
	l.result.Metadata = md
	return l.pipeline.Advance(api.PhaseBuilt)
}

func exposes(ports []string, port int) bool {
	want := fmt.Sprintf("%d/tcp", port)
	for _, p := range ports {
		if p == want {
			return true
		}
	}
	return false
}

// buildStage builds df in contextDir under the intermediate tag of stage.
func (l *Layered) buildStage(config *api.Config, stage api.StageName, suffix, contextDir string, df []byte) (string, error) {
	if err := l.fs.WriteFile(filepath.Join(contextDir, constants.DockerfileName), df); err != nil {
		return "", err
	}
	log.V(3).Infof("%s Dockerfile:\n%s", stage, df)

	tag := l.stageTag(suffix)
	var out io.Writer
	if !config.Quiet {
		out = os.Stdout
	}
	id, err := l.docker.BuildImage(docker.BuildImageOptions{
		Name:       tag,
		ContextDir: contextDir,
		Dockerfile: constants.DockerfileName,
		Stdout:     out,
	})
	if err != nil {
		return "", err
	}
	l.cleaner.Track(tag)
	l.result.Layers = append(l.result.Layers, api.Layer{Stage: stage, ImageID: id})
	log.V(2).Infof("Stage %s produced %s", stage, id)
	return tag, nil
}

// stageDir creates the build context directory of a stage.
func (l *Layered) stageDir(config *api.Config, suffix string) (string, error) {
	dir := filepath.Join(config.WorkingDir, "stages", suffix)
	if err := l.fs.MkdirAll(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (l *Layered) stageTag(suffix string) string {
	return l.name + ":" + suffix
}

func (l *Layered) record(stage api.StageName, step api.StepName, startTime time.Time) {
	l.result.BuildInfo.Stages = api.RecordStageAndStepInfo(l.result.BuildInfo.Stages, stage, step, startTime, time.Now())
}

// fail moves the pipeline to Failed and records the failure reason.
func (l *Layered) fail(err error) (*api.Result, error) {
	l.pipeline.Fail()
	l.result.Success = false
	l.result.Phase = l.pipeline.Phase()
	if len(l.result.BuildInfo.FailureReason.Reason) == 0 {
		l.result.BuildInfo.FailureReason = build.FailureReasonFor(err)
	}
	var se r2ierr.Error
	if errors.As(err, &se) {
		l.result.Messages = append(l.result.Messages, se.Message)
	} else {
		l.result.Messages = append(l.result.Messages, err.Error())
	}
	return l.result, err
}
