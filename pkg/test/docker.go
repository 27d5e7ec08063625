package test

import (
	"sync"

	dockertypes "github.com/docker/docker/api/types"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/docker"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

// FakeDocker provides a fake docker interface
type FakeDocker struct {
	LocalRegistryImage  string
	LocalRegistryResult bool
	LocalRegistryError  error

	Images map[string]*api.Image

	PullResult *api.Image
	PullError  error

	BuildImageOpts   []docker.BuildImageOptions
	BuildImageResult string
	BuildImageError  error

	TagSource string
	TagTarget string
	TagError  error

	RemovedImages    []string
	RemoveImageError error

	RunContainerOpts  docker.RunContainerOptions
	RunContainerError error

	ReachableError error

	mutex sync.Mutex
}

// CheckReachable returns ReachableError.
func (f *FakeDocker) CheckReachable() error {
	return f.ReachableError
}

// Version returns a fixed version.
func (f *FakeDocker) Version() (dockertypes.Version, error) {
	return dockertypes.Version{Version: "28.0.1"}, f.ReachableError
}

// IsImageInLocalRegistry checks if the image exists in the fake local registry
func (f *FakeDocker) IsImageInLocalRegistry(imageName string) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.LocalRegistryImage = imageName
	return f.LocalRegistryResult, f.LocalRegistryError
}

// InspectImage returns the image registered under name.
func (f *FakeDocker) InspectImage(name string) (*api.Image, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if img, ok := f.Images[name]; ok {
		return img, nil
	}
	return nil, r2ierr.NewImageNotFoundError(name, nil)
}

// CheckImage checks image in local registry
func (f *FakeDocker) CheckImage(name string) (*api.Image, error) {
	return f.InspectImage(name)
}

// GetImageID returns the ID of the image registered under name.
func (f *FakeDocker) GetImageID(name string) (string, error) {
	img, err := f.InspectImage(name)
	if err != nil {
		return "", err
	}
	return img.ID, nil
}

// PullImage returns PullResult and PullError.
func (f *FakeDocker) PullImage(name string) (*api.Image, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.PullError != nil {
		return nil, f.PullError
	}
	if f.PullResult == nil {
		return nil, r2ierr.NewImageNotFoundError(name, nil)
	}
	return f.PullResult, nil
}

// CheckAndPullImage pulls a fake image
func (f *FakeDocker) CheckAndPullImage(name string) (*api.Image, error) {
	if img, err := f.InspectImage(name); err == nil {
		return img, nil
	}
	return f.PullImage(name)
}

// BuildImage records opts and returns BuildImageResult.
func (f *FakeDocker) BuildImage(opts docker.BuildImageOptions) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.BuildImageOpts = append(f.BuildImageOpts, opts)
	return f.BuildImageResult, f.BuildImageError
}

// TagImage records the tag request.
func (f *FakeDocker) TagImage(source, target string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.TagSource = source
	f.TagTarget = target
	return f.TagError
}

// RemoveImage records the removed image.
func (f *FakeDocker) RemoveImage(name string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.RemovedImages = append(f.RemovedImages, name)
	return f.RemoveImageError
}

// RunContainer records opts and calls OnStart with a fixed container ID.
func (f *FakeDocker) RunContainer(opts docker.RunContainerOptions) error {
	f.mutex.Lock()
	f.RunContainerOpts = opts
	f.mutex.Unlock()
	if opts.OnStart != nil {
		if err := opts.OnStart("fake-container"); err != nil {
			return err
		}
	}
	return f.RunContainerError
}
