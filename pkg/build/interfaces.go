package build

import (
	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/scm/git"
)

// Builder is the interface that provides basic methods all implementation
// should have.
// Build method executes the build based on config and returns the Result.
type Builder interface {
	Build(*api.Config) (*api.Result, error)
}

// Preparer provides the Prepare method for builders that need to prepare
// the working directory and the build inputs before the first stage runs.
type Preparer interface {
	Prepare(*api.Config) error
}

// Cleaner provides the Cleanup method for builders that need to cleanup
// intermediate images or directories after build execution finish.
type Cleaner interface {
	Cleanup(*api.Config)
}

// Downloader provides methods for downloading the application source code
type Downloader interface {
	Download(*api.Config) (*git.SourceInfo, error)
}
