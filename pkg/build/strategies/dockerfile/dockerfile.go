package dockerfile

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"time"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/build"
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

// Dockerfile writes the recipe as a single Dockerfile next to the sources it
// copies, instead of building an image.
type Dockerfile struct {
	fs     fs.FileSystem
	source build.Downloader
	index  resolver.Index
	info   *git.SourceInfo
	result *api.Result
}

var (
	_ build.Builder  = &Dockerfile{}
	_ build.Preparer = &Dockerfile{}
)

// New creates a Dockerfile builder. When index is nil the manifest is
// resolved against the index named by the manifest or the config.
func New(config *api.Config, fs fs.FileSystem, index resolver.Index) (*Dockerfile, error) {
	if len(config.AsDockerfile) == 0 {
		return nil, errors.New("the Dockerfile path must be given")
	}
	downloader, err := scm.DownloaderForSource(fs, config.Source, utillog.NewWriter(log.V(2).Info))
	if err != nil {
		return nil, err
	}
	return &Dockerfile{
		fs:     fs,
		source: downloader,
		index:  index,
		result: &api.Result{},
	}, nil
}

// Build fetches the sources into the directory of the Dockerfile and
// writes the Dockerfile. Nothing is sent to a container engine.
func (d *Dockerfile) Build(config *api.Config) (*api.Result, error) {
	if err := d.Prepare(config); err != nil {
		return d.result, err
	}
	if err := d.CreateDockerfile(config); err != nil {
		return d.result, err
	}
	d.result.Success = true
	d.result.WorkingDir = config.WorkingDir
	d.result.Messages = append(d.result.Messages, "Application Dockerfile written to "+config.AsDockerfile)
	return d.result, nil
}

// Prepare fetches the sources into an "upload" directory next to the
// Dockerfile so that the Dockerfile can be built with its directory as
// context.
func (d *Dockerfile) Prepare(config *api.Config) error {
	abs, err := filepath.Abs(config.AsDockerfile)
	if err != nil {
		return err
	}
	config.AsDockerfile = abs
	config.WorkingDir = filepath.Dir(abs)
	if err := d.fs.MkdirAll(config.WorkingDir); err != nil {
		d.result.BuildInfo.FailureReason = status.NewFailureReason(
			status.ReasonFSOperationFailed,
			status.ReasonMessageFSOperationFailed,
		)
		return err
	}

	startTime := time.Now()
	info, err := d.source.Download(config)
	d.result.BuildInfo.Stages = api.RecordStageAndStepInfo(d.result.BuildInfo.Stages, api.StagePreflight, api.StepFetchSource, startTime, time.Now())
	if err != nil {
		d.result.BuildInfo.FailureReason = status.NewFailureReason(
			status.ReasonFetchSourceFailed,
			status.ReasonMessageFetchSourceFailed,
		)
		return err
	}
	d.info = info
	return nil
}

// CreateDockerfile writes the Dockerfile named by config.AsDockerfile.
// Unless resolution is skipped, the pinned manifest is written next to it
// and copied into the image instead of the manifest.
func (d *Dockerfile) CreateDockerfile(config *api.Config) error {
	startTime := time.Now()
	in, err := build.GatherInputs(d.fs, config, d.info)
	d.result.BuildInfo.Stages = api.RecordStageAndStepInfo(d.result.BuildInfo.Stages, api.StagePreflight, api.StepVerifyInputs, startTime, time.Now())
	if err != nil {
		d.result.BuildInfo.FailureReason = build.FailureReasonFor(err)
		return err
	}

	index := d.index
	if index == nil {
		index = build.IndexFor(in.Manifest, config.IndexURL)
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultResolveTimeout)
	defer cancel()
	startTime = time.Now()
	content, lines, inImageName, err := build.LockFile(ctx, index, config, in.Manifest)
	d.result.BuildInfo.Stages = api.RecordStageAndStepInfo(d.result.BuildInfo.Stages, api.StageDependencies, api.StepResolveDependencies, startTime, time.Now())
	if err != nil {
		d.result.BuildInfo.FailureReason = build.FailureReasonFor(err)
		return err
	}
	d.result.Lock = lines

	manifestSource := in.ManifestFile
	if !config.SkipResolve {
		manifestSource = filepath.Join(config.WorkingDir, "upload", inImageName)
		if err := d.fs.WriteFile(manifestSource, content); err != nil {
			d.result.BuildInfo.FailureReason = status.NewFailureReason(
				status.ReasonFSOperationFailed,
				status.ReasonMessageFSOperationFailed,
			)
			return err
		}
	}

	manifestFile, err := d.contextPath(config, manifestSource)
	if err != nil {
		return err
	}
	artifactFile, err := d.contextPath(config, in.ArtifactFile)
	if err != nil {
		return err
	}

	md := Metadata{
		WorkDir: config.ImageWorkDir,
		Env:     in.Env,
		Labels:  util.GenerateOutputImageLabels(d.info, config, "", ""),
		Port:    config.Port,
		Command: in.Command,
	}
	if err := md.Validate(); err != nil {
		d.result.BuildInfo.FailureReason = build.FailureReasonFor(err)
		return err
	}
	dockerfile := Complete(
		config.BaseImage,
		File{Source: manifestFile, Target: inImageName},
		File{Source: artifactFile, Target: path.Clean(filepath.ToSlash(config.ArtifactPath))},
		build.InstallCommand(config, inImageName),
		md,
	)
	log.V(3).Infof("Generated Dockerfile:\n%s", dockerfile)
	if err := d.fs.WriteFile(config.AsDockerfile, dockerfile); err != nil {
		d.result.BuildInfo.FailureReason = status.NewFailureReason(
			status.ReasonDockerfileCreateFailed,
			status.ReasonMessageDockerfileCreateFailed,
		)
		return err
	}
	log.V(1).Infof("Wrote Dockerfile %s", config.AsDockerfile)
	return nil
}

// contextPath returns file relative to the directory of the Dockerfile, in
// slash form.
func (d *Dockerfile) contextPath(config *api.Config, file string) (string, error) {
	rel, err := filepath.Rel(config.WorkingDir, file)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
