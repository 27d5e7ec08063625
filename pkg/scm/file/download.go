package file

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/scm/git"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// File represents a simplest possible Downloader implementation where the
// sources are just copied from local directory.
type File struct {
	fs.FileSystem
	Git git.Git
}

// Download copies sources from a local directory into the working directory.
// Git metadata of the directory, when present, is reported in the returned
// SourceInfo.
func (f *File) Download(config *api.Config) (*git.SourceInfo, error) {
	source := strings.TrimPrefix(config.Source, "file://")
	if len(source) == 0 {
		source = "."
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", abs)
	}

	targetSourceDir := filepath.Join(config.WorkingDir, "upload", "src")
	copySrc := abs
	if len(config.ContextDir) > 0 {
		copySrc = filepath.Join(abs, config.ContextDir)
	}
	log.V(1).Infof("Copying sources from %q to %q", copySrc, targetSourceDir)
	if err := f.MkdirAll(targetSourceDir); err != nil {
		return nil, err
	}
	if err := f.CopyContents(copySrc, targetSourceDir); err != nil {
		return nil, err
	}
	config.WorkingSourceDir = targetSourceDir

	var sourceInfo *git.SourceInfo
	if f.Git != nil {
		sourceInfo = f.Git.GetInfo(abs)
	}
	if sourceInfo == nil {
		sourceInfo = &git.SourceInfo{}
	}
	if len(sourceInfo.Location) == 0 {
		sourceInfo.Location = abs
	}
	sourceInfo.ContextDir = config.ContextDir
	return sourceInfo, nil
}
