package constants

const (
	// ContainerManager term for docker, buildah, etc.
	ContainerManager = "container-manager"

	// DockerContainerManager docker container manager.
	DockerContainerManager = "docker"

	// BuildahContainerManager buildah container manager.
	BuildahContainerManager = "buildah"
)

const (
	// DefaultNamespace is the default label namespace for r2i build labels.
	DefaultNamespace = "io.openshift.r2i."

	// KubernetesDescriptionLabel is the image label with the application
	// description.
	KubernetesDescriptionLabel = "io.k8s.description"

	// KubernetesDisplayNameLabel is the image label with the application
	// display name.
	KubernetesDisplayNameLabel = "io.k8s.display-name"

	// InputsDigestLabel carries the digest of the build inputs. Rebuilds
	// with identical inputs carry the same value.
	InputsDigestLabel = DefaultNamespace + "build.inputs-digest"

	// BaseImageLabel carries the digest-pinned base image reference.
	BaseImageLabel = DefaultNamespace + "build.base-image"

	// PortLabel carries the port the application listens on. Base images
	// may expose other ports too.
	PortLabel = DefaultNamespace + "build.port"

	// OCIBaseNameAnnotation is the OCI annotation for the base image name.
	OCIBaseNameAnnotation = "org.opencontainers.image.base.name"

	// OCIBaseDigestAnnotation is the OCI annotation for the base image
	// digest.
	OCIBaseDigestAnnotation = "org.opencontainers.image.base.digest"
)

const (
	// RecipeFile is the default recipe file name.
	RecipeFile = "r2i.yaml"

	// DefaultManifest is the default dependency manifest.
	DefaultManifest = "requirements.txt"

	// DefaultArtifact is the default application entry point.
	DefaultArtifact = "app.py"

	// DefaultImageWorkDir is the default working directory in the image.
	DefaultImageWorkDir = "/app"

	// DefaultPort is the default exposed port.
	DefaultPort = 8080

	// DefaultInterpreter runs the artifact when no command is given.
	DefaultInterpreter = "python"

	// DefaultIndexURL is the default package index.
	DefaultIndexURL = "https://pypi.org"

	// IndexURLEnvironment overrides the default package index.
	IndexURLEnvironment = "R2I_INDEX_URL"

	// ManifestPlaceholder is replaced by the in-image manifest file name in
	// the install command.
	ManifestPlaceholder = "{manifest}"

	// LockFile is the name of the pinned manifest written into the
	// dependency layer.
	LockFile = "requirements.lock"

	// DockerfileName is the name of the generated Dockerfile.
	DockerfileName = "Dockerfile.r2i"
)

// DefaultInstallCommand installs the manifest without leaving a package
// cache in the layer.
var DefaultInstallCommand = []string{"pip", "install", "--no-cache-dir", "-r", ManifestPlaceholder}

const (
	// SourceConfig is the directory in the source tree holding optional
	// build metadata such as image_metadata.json.
	SourceConfig = ".r2i"
)
