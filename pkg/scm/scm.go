package scm

import (
	"fmt"
	"io"
	"strings"

	"github.com/openshift/recipe-to-image/pkg/build"
	"github.com/openshift/recipe-to-image/pkg/scm/file"
	"github.com/openshift/recipe-to-image/pkg/scm/git"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// DownloaderForSource determines what SCM plugin should be used for
// downloading the sources from the repository.
func DownloaderForSource(fs fs.FileSystem, s string, progress io.Writer) (build.Downloader, error) {
	log.V(4).Infof("DownloadForSource %s", s)

	g := git.New(progress)
	if g.ValidCloneSpec(s) {
		log.V(4).Infof("Source %q is a git repository", s)
		return &git.Clone{Git: g, FileSystem: fs}, nil
	}

	if len(s) == 0 || strings.HasPrefix(s, "file://") || !strings.Contains(s, "://") {
		return &file.File{FileSystem: fs, Git: g}, nil
	}

	return nil, fmt.Errorf("no downloader defined for %q source URL", s)
}
