package api

import (
	"fmt"
	"strings"
	"time"
)

// Config contains essential fields for performing a build.
type Config struct {
	// DisplayName is a result image display-name label. This defaults to the
	// output image name.
	DisplayName string

	// Description is a result image description label.
	Description string

	// BaseImage is the runtime image the application is layered onto. It must
	// carry an explicit tag or digest.
	BaseImage string

	// Source is the location of the build inputs: a local directory, a
	// file:// URL or a git repository URL.
	Source string

	// Ref is the git reference to check out when Source is a repository.
	Ref string

	// ContextDir is the sub-directory of Source holding the build inputs.
	ContextDir string

	// ManifestPath is the dependency manifest, relative to the source
	// directory.
	ManifestPath string

	// ArtifactPath is the application entry point, relative to the source
	// directory.
	ArtifactPath string

	// ImageWorkDir is the working directory declared in the output image.
	ImageWorkDir string

	// Port is the network port declared as exposed on the output image.
	Port int

	// Command is the startup command declared on the output image.
	Command []string

	// Tag is the output image tag.
	Tag string

	// Environment is a map of environment variables declared on the output
	// image.
	Environment EnvironmentList

	// EnvironmentFile contains name of the file with environment variables
	// definition.
	EnvironmentFile string

	// Labels specify labels and their values to be applied to the output image.
	Labels map[string]string

	// LabelNamespace provides the namespace under which the build labels
	// will be generated.
	LabelNamespace string

	// InstallCommand installs the dependency manifest inside the image. The
	// literal {manifest} is replaced by the in-image manifest file name.
	InstallCommand []string

	// IndexURL is the package index dependencies are resolved against.
	IndexURL string

	// SkipResolve disables pinning the manifest against IndexURL before the
	// dependency layer is built.
	SkipResolve bool

	// Reuse short-circuits the build when Tag already carries the same
	// inputs digest.
	Reuse bool

	// PullPolicy specifies when to pull the base image.
	PullPolicy PullPolicy

	// ContainerManager selects the engine backend (docker or buildah).
	ContainerManager string

	// WithBuilder uses an external builder CLI against the generated
	// Dockerfile instead of the layered pipeline.
	WithBuilder string

	// DockerConfig describes how to access the container engine.
	DockerConfig *DockerConfig

	// WorkingDir describes the temporary directory used for downloading
	// sources and staging build contexts.
	WorkingDir string

	// WorkingSourceDir is the directory holding the build inputs after the
	// source was fetched.
	WorkingSourceDir string

	// PreserveWorkingDir describes if working directory should be left after
	// processing.
	PreserveWorkingDir bool

	// AsDockerfile indicates the path where the Dockerfile should be written
	// instead of building a new image.
	AsDockerfile string

	// RunImage will trigger a "docker run ..." invocation of the produced
	// image so the user can see if it operates as expected.
	RunImage bool

	// Quiet describes whether build output should be suppressed.
	Quiet bool
}

// DockerConfig contains the configuration for a Docker connection.
type DockerConfig struct {
	// Endpoint is the docker network endpoint or socket
	Endpoint string

	// CertFile is the certificate file path for a TLS connection
	CertFile string

	// KeyFile is the key file path for a TLS connection
	KeyFile string

	// CAFile is the certificate authority file path for a TLS connection
	CAFile string

	// UseTLS indicates if TLS must be used
	UseTLS bool

	// TLSVerify indicates if TLS peer must be verified
	TLSVerify bool
}

// Result structure contains information from build process.
type Result struct {
	// Success describes whether the build was successful.
	Success bool

	// Messages is a list of messages from build process.
	Messages []string

	// WorkingDir describes temporary directory used for the build.
	WorkingDir string

	// ImageID describes resulting image ID.
	ImageID string

	// Tag is the tag the image was published under.
	Tag string

	// BaseImageRef is the digest-pinned base image reference.
	BaseImageRef string

	// InputsDigest identifies the build inputs.
	InputsDigest string

	// Reused is set when an existing image with the same inputs was returned.
	Reused bool

	// Phase is the last pipeline state reached.
	Phase Phase

	// Layers holds the image produced by every layer-building stage.
	Layers []Layer

	// Lock holds the exact pins installed in the dependency layer.
	Lock []string

	// Metadata is the declared runtime metadata of the built image.
	Metadata ImageMetadata

	// BuildInfo holds information about the result of a build.
	BuildInfo BuildInfo
}

// Layer associates a pipeline stage with the image it produced.
type Layer struct {
	Stage   StageName
	ImageID string
}

// ImageMetadata is the runtime contract declared by a built image.
type ImageMetadata struct {
	WorkingDir   string
	Port         int
	ExposedPorts []string
	Command      []string
	Env          []string
	Labels       map[string]string
}

// Image is the subset of engine image metadata r2i relies on.
type Image struct {
	ID          string
	RepoTags    []string
	RepoDigests []string
	Config      *ContainerConfig
}

// ContainerConfig is the image configuration declared for containers.
type ContainerConfig struct {
	User         string
	Env          []string
	Labels       map[string]string
	Cmd          []string
	Entrypoint   []string
	WorkingDir   string
	ExposedPorts []string
}

// Phase is a state of the build pipeline.
type Phase string

const (
	// PhaseStart is the state before any stage ran.
	PhaseStart Phase = "Start"
	// PhaseBaseSelected follows pinning the base image.
	PhaseBaseSelected Phase = "BaseSelected"
	// PhaseDependenciesInstalled follows building the dependency layer.
	PhaseDependenciesInstalled Phase = "DependenciesInstalled"
	// PhaseArtifactPlaced follows building the artifact layer.
	PhaseArtifactPlaced Phase = "ArtifactPlaced"
	// PhaseMetadataDeclared follows building the metadata layer.
	PhaseMetadataDeclared Phase = "MetadataDeclared"
	// PhaseBuilt follows publishing the final image.
	PhaseBuilt Phase = "Built"
	// PhaseFailed is terminal; nothing was published.
	PhaseFailed Phase = "Failed"
)

// BuildInfo contains information about the build process.
type BuildInfo struct {
	// Stages contains details about each build stage.
	Stages Stages

	// FailureReason is a camel case reason that is used by the machine to
	// reply back to the user about the build failure.
	FailureReason FailureReason
}

// Stages is a list of the stages run during a build.
type Stages []StageInfo

// StageInfo contains details about a build stage.
type StageInfo struct {
	StageName StageName
	StartTime time.Time
	Duration  time.Duration
	Steps     []StepInfo
}

// StageName is the identifier for each build stage.
type StageName string

// Valid StageNames
const (
	StagePreflight    StageName = "Preflight"
	StageBase         StageName = "BaseSelection"
	StageDependencies StageName = "DependencyInstallation"
	StageArtifact     StageName = "ArtifactPlacement"
	StageMetadata     StageName = "MetadataDeclaration"
	StagePublish      StageName = "Publish"
)

// StepInfo contains details about a build step.
type StepInfo struct {
	StepName  StepName
	StartTime time.Time
	Duration  time.Duration
}

// StepName is the identifier for each build step.
type StepName string

// Valid StepNames
const (
	StepFetchSource             StepName = "FetchSource"
	StepVerifyInputs            StepName = "VerifyInputs"
	StepPullBaseImage           StepName = "PullBaseImage"
	StepPinBaseImage            StepName = "PinBaseImage"
	StepResolveDependencies     StepName = "ResolveDependencies"
	StepBuildDependenciesLayer  StepName = "BuildDependenciesLayer"
	StepBuildArtifactLayer      StepName = "BuildArtifactLayer"
	StepBuildMetadataLayer      StepName = "BuildMetadataLayer"
	StepTagImage                StepName = "TagImage"
	StepInspectImage            StepName = "InspectImage"
	StepRemoveIntermediateLayer StepName = "RemoveIntermediateLayers"
)

// StepFailureReason holds the type of failure that occurred during the build
// process.
type StepFailureReason string

// StepFailureMessage holds the detailed message of a failure.
type StepFailureMessage string

// FailureReason holds the type of failure that occurred during the build
// process.
type FailureReason struct {
	Reason  StepFailureReason
	Message StepFailureMessage
}

// PullPolicy specifies a type for the method used to retrieve the base image
type PullPolicy string

// String implements the String() function of pflags.Value so this can be used as
// command line parameter.
func (p *PullPolicy) String() string {
	if len(string(*p)) == 0 {
		return string(DefaultPullPolicy)
	}
	return string(*p)
}

// Type implements the Type() function of pflags.Value interface
func (p *PullPolicy) Type() string {
	return "string"
}

// Set implements the Set() function of pflags.Value interface
// The valid options are "always", "never" or "if-not-present"
func (p *PullPolicy) Set(v string) error {
	switch v {
	case "always":
		*p = PullAlways
	case "never":
		*p = PullNever
	case "if-not-present":
		*p = PullIfNotPresent
	default:
		return fmt.Errorf("invalid value %q, valid values are: always, never or if-not-present", v)
	}
	return nil
}

const (
	// PullAlways means that we always attempt to pull the latest image.
	PullAlways PullPolicy = "always"

	// PullNever means that we never pull an image, but only use a local image.
	PullNever PullPolicy = "never"

	// PullIfNotPresent means that we pull if the image isn't present on disk.
	PullIfNotPresent PullPolicy = "if-not-present"

	// DefaultPullPolicy specifies the default pull policy to use
	DefaultPullPolicy = PullIfNotPresent
)

// EnvironmentSpec specifies a single environment variable.
type EnvironmentSpec struct {
	Name  string
	Value string
}

// EnvironmentList contains list of environment variables.
type EnvironmentList []EnvironmentSpec

// Set implements the Set() function of pflags.Value interface.
// It accepts a single NAME=VALUE pair per invocation.
func (e *EnvironmentList) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || len(parts[0]) == 0 {
		return fmt.Errorf("invalid environment format %q, must be NAME=VALUE", value)
	}
	if strings.Contains(parts[1], ",") && strings.Contains(parts[1], "=") {
		return fmt.Errorf("multiple environment variables are not supported in a single value, use -e option for every variable")
	}
	*e = append(*e, EnvironmentSpec{
		Name:  strings.TrimSpace(parts[0]),
		Value: strings.TrimSpace(parts[1]),
	})
	return nil
}

// String returns all environment variables as a comma separated string.
func (e *EnvironmentList) String() string {
	result := []string{}
	for _, env := range *e {
		result = append(result, strings.Join([]string{env.Name, env.Value}, "="))
	}
	return strings.Join(result, ",")
}

// Type implements the Type() function of pflags.Value interface.
func (e *EnvironmentList) Type() string {
	return "string"
}

// AsBinds returns the environment as NAME=VALUE strings.
func (e EnvironmentList) AsBinds() []string {
	result := make([]string, 0, len(e))
	for _, env := range e {
		result = append(result, env.Name+"="+env.Value)
	}
	return result
}
