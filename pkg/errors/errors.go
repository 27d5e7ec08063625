package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common r2i error codes. The code doubles as the process exit status of
// the CLI.
const (
	InspectImageError int = 1 + iota
	ImageNotFoundError
	PullImageError
	DependencyResolutionError
	ArtifactNotFoundError
	BuildError
	TagImageError
	InvalidRecipeError
	FetchSourceError
	ContainerError
	DockerConnectionError
	StageOrderError
)

// Error represents an error thrown during the build pipeline. Details holds
// the underlying cause, Suggestion a hint for the operator.
type Error struct {
	Message    string
	Details    error
	ErrorCode  int
	Suggestion string
}

// ContainerErr is an error returned when a container exits with a non-zero
// code. ExitCode is the code returned from the container.
type ContainerErr struct {
	Message   string
	Output    string
	ErrorCode int
	ExitCode  int
}

// Error returns a string for a given error.
func (e Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e Error) Unwrap() error {
	return e.Details
}

// Error returns a string for the given error.
func (e ContainerErr) Error() string {
	return e.Message
}

// NewInspectImageError returns a new error which indicates there was a problem
// inspecting the image.
func NewInspectImageError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to get metadata for %s", name),
		Details:    err,
		ErrorCode:  InspectImageError,
		Suggestion: "check image name",
	}
}

// NewImageNotFoundError returns a new error which indicates that the base
// image reference could not be resolved locally or in its registry.
func NewImageNotFoundError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to find image %q", name),
		Details:    err,
		ErrorCode:  ImageNotFoundError,
		Suggestion: "check that the image name and tag exist in the registry and that you are authorized to pull it",
	}
}

// NewPullImageError returns a new error which indicates there was a problem
// pulling the image.
func NewPullImageError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to pull %s", name),
		Details:    err,
		ErrorCode:  PullImageError,
		Suggestion: "check that the registry is reachable and that the pull policy allows pulling",
	}
}

// NewDependencyResolutionError returns a new error which indicates that one
// or more entries of the dependency manifest could not be satisfied. The
// offending entries are listed in the message.
func NewDependencyResolutionError(entries []string, err error) error {
	msg := "unable to resolve dependencies"
	if len(entries) > 0 {
		msg = fmt.Sprintf("unable to resolve dependencies: %s", strings.Join(entries, ", "))
	}
	return Error{
		Message:    msg,
		Details:    err,
		ErrorCode:  DependencyResolutionError,
		Suggestion: "check the package names and version constraints in the dependency manifest",
	}
}

// NewArtifactNotFoundError returns a new error which indicates that the
// application artifact is missing from the build inputs.
func NewArtifactNotFoundError(path string, err error) error {
	return Error{
		Message:    fmt.Sprintf("application artifact %q not found", path),
		Details:    err,
		ErrorCode:  ArtifactNotFoundError,
		Suggestion: "check that the artifact path is relative to the source directory and that the file exists",
	}
}

// NewBuildError returns a new error which indicates there was a problem
// building the image layer for the given stage.
func NewBuildError(stage string, output string, err error) error {
	return Error{
		Message:    fmt.Sprintf("building the %s layer failed: %s", stage, output),
		Details:    err,
		ErrorCode:  BuildError,
		Suggestion: "check the build output above; run with --loglevel=3 for the generated Dockerfiles",
	}
}

// NewTagImageError returns a new error which indicates there was a problem
// tagging the final image.
func NewTagImageError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to tag image as %s", name),
		Details:    err,
		ErrorCode:  TagImageError,
		Suggestion: "check the output tag",
	}
}

// NewInvalidRecipeError returns a new error which indicates the recipe or
// command line configuration is not valid.
func NewInvalidRecipeError(problems []string) error {
	return Error{
		Message:    fmt.Sprintf("invalid recipe: %s", strings.Join(problems, "; ")),
		ErrorCode:  InvalidRecipeError,
		Suggestion: "fix the recipe file or the command line flags",
	}
}

// NewFetchSourceError returns a new error which indicates there was a problem
// fetching the build inputs.
func NewFetchSourceError(source string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to fetch source %s", source),
		Details:    err,
		ErrorCode:  FetchSourceError,
		Suggestion: "check the source location and, for git sources, the ref",
	}
}

// NewDockerConnectionError returns a new error which indicates the container
// engine could not be reached.
func NewDockerConnectionError(endpoint string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to connect to the container engine at %s", endpoint),
		Details:    err,
		ErrorCode:  DockerConnectionError,
		Suggestion: "check that the engine is running and that --url points at it",
	}
}

// NewStageOrderError returns a new error which indicates a pipeline
// transition that does not follow the declared stage order.
func NewStageOrderError(from, to string) error {
	return Error{
		Message:   fmt.Sprintf("invalid pipeline transition from %s to %s", from, to),
		ErrorCode: StageOrderError,
	}
}

// NewContainerError return a new error which indicates there was a problem
// running a container created from the built image.
func NewContainerError(name string, code int, output string) error {
	return ContainerErr{
		Message:   fmt.Sprintf("container %q returned non-zero exit code %d", name, code),
		Output:    output,
		ErrorCode: ContainerError,
		ExitCode:  code,
	}
}

// Code returns the r2i error code carried by err, or 0.
func Code(err error) int {
	var e Error
	if errors.As(err, &e) {
		return e.ErrorCode
	}
	var ce ContainerErr
	if errors.As(err, &ce) {
		return ce.ErrorCode
	}
	return 0
}

// IsImageNotFound reports whether err is an ImageNotFoundError.
func IsImageNotFound(err error) bool {
	return Code(err) == ImageNotFoundError
}

// IsDependencyResolution reports whether err is a DependencyResolutionError.
func IsDependencyResolution(err error) bool {
	return Code(err) == DependencyResolutionError
}

// IsArtifactNotFound reports whether err is an ArtifactNotFoundError.
func IsArtifactNotFound(err error) bool {
	return Code(err) == ArtifactNotFoundError
}
