package git

import (
	"context"
	"path/filepath"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
)

// Clone knows how to clone a Git repository.
type Clone struct {
	Git
	fs.FileSystem
}

// Download downloads the application source code from the Git repository
// and checkout the Ref specified in the config.
func (c *Clone) Download(config *api.Config) (*SourceInfo, error) {
	targetSourceDir := filepath.Join(config.WorkingDir, "upload", "src")
	log.V(1).Infof("Downloading %q to %q", config.Source, targetSourceDir)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultCloneTimeout)
	defer cancel()
	if err := c.Clone(ctx, config.Source, targetSourceDir, config.Ref); err != nil {
		log.V(0).Infof("error: git clone failed: %v", err)
		return nil, err
	}

	config.WorkingSourceDir = targetSourceDir
	if len(config.ContextDir) > 0 {
		config.WorkingSourceDir = filepath.Join(targetSourceDir, config.ContextDir)
	}

	info := c.GetInfo(targetSourceDir)
	if info == nil {
		info = &SourceInfo{}
	}
	info.Location = config.Source
	if len(config.Ref) > 0 {
		info.Ref = config.Ref
	}
	info.ContextDir = config.ContextDir
	return info, nil
}
