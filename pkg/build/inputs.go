package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	"github.com/openshift/recipe-to-image/pkg/manifest"
	"github.com/openshift/recipe-to-image/pkg/resolver"
	"github.com/openshift/recipe-to-image/pkg/scm/git"
	"github.com/openshift/recipe-to-image/pkg/util"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	"github.com/openshift/recipe-to-image/pkg/util/status"
)

// Inputs are the verified build inputs read from the source directory.
type Inputs struct {
	SourceInfo *git.SourceInfo
	// Manifest is the parsed dependency manifest.
	Manifest *manifest.Manifest
	// ManifestFile is the absolute path of the manifest.
	ManifestFile string
	// ArtifactFile is the absolute path of the artifact.
	ArtifactFile string
	// Artifact holds the artifact content. It is never interpreted.
	Artifact []byte
	// Env is the declared environment, NAME=VALUE.
	Env []string
	// Command is the declared startup command.
	Command []string
}

// GatherInputs verifies the artifact and the dependency manifest exist in
// the working source directory and reads them. The artifact is checked
// first so that a missing artifact is reported before anything else.
func GatherInputs(fs fs.FileSystem, config *api.Config, info *git.SourceInfo) (*Inputs, error) {
	in := &Inputs{SourceInfo: info}

	in.ArtifactFile = filepath.Join(config.WorkingSourceDir, filepath.FromSlash(config.ArtifactPath))
	st, err := fs.Stat(in.ArtifactFile)
	if err != nil {
		return nil, r2ierr.NewArtifactNotFoundError(config.ArtifactPath, err)
	}
	if !st.Mode().IsRegular() {
		return nil, r2ierr.NewArtifactNotFoundError(config.ArtifactPath, fmt.Errorf("%s is not a regular file", config.ArtifactPath))
	}
	if in.Artifact, err = fs.ReadFile(in.ArtifactFile); err != nil {
		return nil, r2ierr.NewArtifactNotFoundError(config.ArtifactPath, err)
	}

	in.ManifestFile = filepath.Join(config.WorkingSourceDir, filepath.FromSlash(config.ManifestPath))
	in.Manifest, err = manifest.ParseFile(fs, in.ManifestFile)
	if err != nil {
		var perr *manifest.ParseError
		if errors.As(err, &perr) {
			return nil, r2ierr.NewDependencyResolutionError(perr.Entries(), perr)
		}
		if os.IsNotExist(err) {
			err = fmt.Errorf("dependency manifest %s not found: %w", config.ManifestPath, err)
		}
		return nil, r2ierr.NewDependencyResolutionError(nil, err)
	}

	envFromFile := map[string]string{}
	if len(config.EnvironmentFile) > 0 {
		if envFromFile, err = util.ReadEnvironmentFile(config.EnvironmentFile); err != nil {
			return nil, err
		}
	}
	in.Env = util.MergeEnvironment(envFromFile, config.Environment).AsBinds()
	in.Command = Command(config)
	return in, nil
}

// Command returns the startup command of config, defaulting to the
// interpreter running the artifact.
func Command(config *api.Config) []string {
	if len(config.Command) > 0 {
		return config.Command
	}
	return []string{constants.DefaultInterpreter, path.Clean(filepath.ToSlash(config.ArtifactPath))}
}

// InstallCommand returns the install command of config for the manifest
// file named manifestFile inside the image.
func InstallCommand(config *api.Config, manifestFile string) []string {
	install := config.InstallCommand
	if len(install) == 0 {
		install = constants.DefaultInstallCommand
	}
	return api.RenderInstallCommand(install, constants.ManifestPlaceholder, manifestFile)
}

// IndexFor returns the package index the manifest is resolved against. An
// index URL given in the manifest overrides indexURL.
func IndexFor(m *manifest.Manifest, indexURL string) resolver.Index {
	if len(m.IndexURL) > 0 {
		indexURL = m.IndexURL
	}
	if len(indexURL) == 0 {
		indexURL = constants.DefaultIndexURL
	}
	indexes := resolver.MultiIndex{resolver.NewPyPI(indexURL)}
	for _, u := range m.ExtraIndexURLs {
		indexes = append(indexes, resolver.NewPyPI(u))
	}
	if len(indexes) == 1 {
		return indexes[0]
	}
	return indexes
}

// LockFile returns the content and in-image name of the manifest that gets
// installed. Unless resolution is skipped every requirement is pinned
// first, and a DependencyResolutionError lists every unsatisfiable entry.
func LockFile(ctx context.Context, index resolver.Index, config *api.Config, m *manifest.Manifest) ([]byte, []string, string, error) {
	if config.SkipResolve {
		return m.Data, nil, path.Base(filepath.ToSlash(config.ManifestPath)), nil
	}
	lock, err := resolver.New(index).Resolve(ctx, m)
	if err != nil {
		if r2ierr.IsDependencyResolution(err) {
			return nil, nil, "", err
		}
		return nil, nil, "", r2ierr.NewDependencyResolutionError(nil, err)
	}
	return lock.Bytes(), lock.Lines(), constants.LockFile, nil
}

// InputsDigest identifies the build inputs. Identical inputs give an
// identical digest, so it can be compared to decide whether an existing
// image can be reused.
func InputsDigest(baseRef string, in *Inputs, config *api.Config, labels map[string]string) digest.Digest {
	digester := digest.Canonical.Digester()
	h := digester.Hash()
	field := func(name string, value []byte) {
		fmt.Fprintf(h, "%s %d\n", name, len(value))
		h.Write(value)
		h.Write([]byte{'\n'})
	}
	field("base", []byte(baseRef))
	field("manifest", in.Manifest.Data)
	field("artifact-path", []byte(filepath.ToSlash(config.ArtifactPath)))
	field("artifact", in.Artifact)
	field("workdir", []byte(config.ImageWorkDir))
	field("port", []byte(strconv.Itoa(config.Port)))
	field("cmd", []byte(strings.Join(in.Command, "\x00")))
	field("install", []byte(strings.Join(InstallCommand(config, "-"), "\x00")))
	field("resolve", []byte(strconv.FormatBool(!config.SkipResolve)))
	field("env", []byte(strings.Join(in.Env, "\x00")))

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field("label", []byte(k+"="+labels[k]))
	}
	return digester.Digest()
}

// FailureReasonFor maps a build error to the failure reason recorded on the
// result.
func FailureReasonFor(err error) api.FailureReason {
	switch r2ierr.Code(err) {
	case r2ierr.ArtifactNotFoundError:
		return status.NewFailureReason(status.ReasonArtifactNotFound, status.ReasonMessageArtifactNotFound)
	case r2ierr.DependencyResolutionError:
		return status.NewFailureReason(status.ReasonDependencyResolutionFailed, status.ReasonMessageDependencyResolutionFailed)
	case r2ierr.ImageNotFoundError:
		return status.NewFailureReason(status.ReasonBaseImageNotFound, status.ReasonMessageBaseImageNotFound)
	case r2ierr.PullImageError, r2ierr.InspectImageError:
		return status.NewFailureReason(status.ReasonPullBaseImageFailed, status.ReasonMessagePullBaseImageFailed)
	case r2ierr.FetchSourceError:
		return status.NewFailureReason(status.ReasonFetchSourceFailed, status.ReasonMessageFetchSourceFailed)
	case r2ierr.BuildError:
		return status.NewFailureReason(status.ReasonDockerImageBuildFailed, status.ReasonMessageDockerImageBuildFailed)
	case r2ierr.TagImageError:
		return status.NewFailureReason(status.ReasonTagImageFailed, status.ReasonMessageTagImageFailed)
	}
	return status.NewFailureReason(status.ReasonGenericR2IBuildFailed, status.ReasonMessageGenericR2IBuildFailed)
}
