package status

import (
	"github.com/openshift/recipe-to-image/pkg/api"
)

const (
	// ReasonPullBaseImageFailed is the reason associated with failing to pull
	// the base image.
	ReasonPullBaseImageFailed        api.StepFailureReason  = "PullBaseImageFailed"
	ReasonMessagePullBaseImageFailed api.StepFailureMessage = "Failed to pull base image"

	// ReasonBaseImageNotFound is the reason associated with a base image
	// reference that does not exist.
	ReasonBaseImageNotFound        api.StepFailureReason  = "BaseImageNotFound"
	ReasonMessageBaseImageNotFound api.StepFailureMessage = "Base image tag does not exist"

	// ReasonDependencyResolutionFailed is the reason associated with a
	// dependency manifest that cannot be satisfied.
	ReasonDependencyResolutionFailed        api.StepFailureReason  = "DependencyResolutionFailed"
	ReasonMessageDependencyResolutionFailed api.StepFailureMessage = "Failed to resolve or install dependencies"

	// ReasonArtifactNotFound is the reason associated with a missing
	// application artifact.
	ReasonArtifactNotFound        api.StepFailureReason  = "ArtifactNotFound"
	ReasonMessageArtifactNotFound api.StepFailureMessage = "Application artifact not found"

	// ReasonFetchSourceFailed is the reason associated with failing to download
	// the source of the build.
	ReasonFetchSourceFailed        api.StepFailureReason  = "FetchSourceFailed"
	ReasonMessageFetchSourceFailed api.StepFailureMessage = "Failed to fetch source for build"

	// ReasonDockerImageBuildFailed is the reasons associated with a failed
	// Docker image build.
	ReasonDockerImageBuildFailed        api.StepFailureReason  = "DockerImageBuildFailed"
	ReasonMessageDockerImageBuildFailed api.StepFailureMessage = "Docker image build failed"

	// ReasonDockerfileCreateFailed is the reason associated with failing to create a
	// Dockerfile for a build.
	ReasonDockerfileCreateFailed        api.StepFailureReason  = "DockerFileCreationFailed"
	ReasonMessageDockerfileCreateFailed api.StepFailureMessage = "Failed to create Dockerfile"

	// ReasonTagImageFailed is the reason associated with failing to publish
	// the final image under its tag.
	ReasonTagImageFailed        api.StepFailureReason  = "TagImageFailed"
	ReasonMessageTagImageFailed api.StepFailureMessage = "Failed to tag the output image"

	// ReasonFSOperationFailed is the reason associated with a failed fs
	// operation. Create, remove directory, copy file, etc.
	ReasonFSOperationFailed        api.StepFailureReason  = "FileSystemOperationFailed"
	ReasonMessageFSOperationFailed api.StepFailureMessage = "Failed to perform filesystem operation"

	// ReasonGenericR2IBuildFailed is the reason associated with a broad range of
	// failure.
	ReasonGenericR2IBuildFailed        api.StepFailureReason  = "GenericR2IBuildFailed"
	ReasonMessageGenericR2IBuildFailed api.StepFailureMessage = "Generic R2I Build failure - check R2I logs for details"
)

// NewFailureReason initializes a new failure reason that contains both the
// reason and a message to be displayed
func NewFailureReason(reason api.StepFailureReason, message api.StepFailureMessage) api.FailureReason {
	return api.FailureReason{
		Reason:  reason,
		Message: message,
	}
}
