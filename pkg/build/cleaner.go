package build

import (
	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/docker"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// DefaultCleaner provides a cleaner for r2i builds. It cleans
// the temporary directories created by r2i build and it also cleans the
// intermediate images it was told about.
type DefaultCleaner struct {
	fs     fs.FileSystem
	docker docker.Docker
	images []string
}

var _ Cleaner = &DefaultCleaner{}

// NewDefaultCleaner creates a new instance of the default Cleaner
// implementation.
func NewDefaultCleaner(fs fs.FileSystem, docker docker.Docker) *DefaultCleaner {
	return &DefaultCleaner{fs: fs, docker: docker}
}

// Track registers an intermediate image reference to remove on Cleanup.
func (c *DefaultCleaner) Track(name string) {
	c.images = append(c.images, name)
}

// Tracked returns the references registered so far.
func (c *DefaultCleaner) Tracked() []string {
	return c.images
}

// RemoveImages removes every tracked image reference, newest first.
// Failures are logged and do not stop the removal of the others.
func (c *DefaultCleaner) RemoveImages() {
	for i := len(c.images) - 1; i >= 0; i-- {
		name := c.images[i]
		log.V(2).Infof("Removing intermediate image %s", name)
		if err := c.docker.RemoveImage(name); err != nil {
			log.Warningf("Unable to remove intermediate image %s: %v", name, err)
		}
	}
	c.images = nil
}

// Cleanup removes the tracked intermediate images and the temporary
// working directory, unless the latter should be preserved.
func (c *DefaultCleaner) Cleanup(config *api.Config) {
	c.RemoveImages()
	if config.PreserveWorkingDir {
		log.V(2).Infof("Temporary directory %q will be saved, not deleted", config.WorkingDir)
		return
	}
	if len(config.WorkingDir) == 0 {
		return
	}
	log.V(2).Infof("Removing temporary directory %s", config.WorkingDir)
	if err := c.fs.RemoveDirectory(config.WorkingDir); err != nil {
		log.Warningf("Error removing temporary directory %q: %v", config.WorkingDir, err)
	}
}
