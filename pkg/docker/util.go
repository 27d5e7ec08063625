package docker

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"

	"github.com/openshift/recipe-to-image/pkg/api"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

// PullResult is the result returned by the PullImage function.
type PullResult struct {
	// Image is the metadata of the image.
	Image *api.Image
	// Pulled is set when the image was fetched from its registry.
	Pulled bool
}

// GetDefaultDockerConfig checks relevant Docker environment variables to
// provide defaults for our command line flags
func GetDefaultDockerConfig() *api.DockerConfig {
	cfg := &api.DockerConfig{}

	if cfg.Endpoint = os.Getenv("DOCKER_HOST"); cfg.Endpoint == "" {
		cfg.Endpoint = "unix:///var/run/docker.sock"
	}

	certPath := os.Getenv("DOCKER_CERT_PATH")
	if certPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			certPath = filepath.Join(home, ".docker")
		}
	}
	cfg.CertFile = filepath.Join(certPath, "cert.pem")
	cfg.KeyFile = filepath.Join(certPath, "key.pem")
	cfg.CAFile = filepath.Join(certPath, "ca.pem")

	if tlsVerify := os.Getenv("DOCKER_TLS_VERIFY"); tlsVerify != "" {
		cfg.TLSVerify = true
	}
	if useTLS := os.Getenv("DOCKER_TLS"); useTLS != "" {
		cfg.UseTLS = true
	}
	return cfg
}

// GetImageName returns the image name in its familiar form with the
// "latest" tag added when name carries neither a tag nor a digest. Names
// that cannot be parsed are returned unchanged.
func GetImageName(name string) string {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return name
	}
	return reference.FamiliarString(reference.TagNameOnly(named))
}

// HasTagOrDigest reports whether name pins a tag or a digest.
func HasTagOrDigest(name string) bool {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return false
	}
	_, tagged := named.(reference.Tagged)
	_, digested := named.(reference.Digested)
	return tagged || digested
}

// PullImage retrieves the named image following the given pull policy.
func PullImage(name string, d Docker, policy api.PullPolicy) (*PullResult, error) {
	switch policy {
	case api.PullNever:
		img, err := d.CheckImage(name)
		if err != nil {
			return nil, err
		}
		return &PullResult{Image: img}, nil
	case api.PullAlways:
		img, err := d.PullImage(name)
		if err == nil {
			return &PullResult{Image: img, Pulled: true}, nil
		}
		if r2ierr.IsImageNotFound(err) {
			return nil, err
		}
		log.Warningf("Unable to pull %q (%v), searching for a local image ...", name, err)
		if local, lerr := d.CheckImage(name); lerr == nil {
			return &PullResult{Image: local}, nil
		}
		return nil, err
	default:
		present, err := d.IsImageInLocalRegistry(GetImageName(name))
		if err != nil {
			return nil, err
		}
		if present {
			img, err := d.CheckImage(name)
			if err != nil {
				return nil, err
			}
			return &PullResult{Image: img}, nil
		}
		img, err := d.PullImage(name)
		if err != nil {
			return nil, err
		}
		return &PullResult{Image: img, Pulled: true}, nil
	}
}

// PinnedReference returns an immutable reference to img, which was resolved
// from name. The repository digest matching name is preferred. When the
// image was never pushed or pulled the local image ID is returned.
func PinnedReference(name string, img *api.Image) (string, error) {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %v", name, err)
	}
	if canonical, ok := named.(reference.Canonical); ok {
		return reference.FamiliarString(canonical), nil
	}
	for _, rd := range img.RepoDigests {
		candidate, err := reference.ParseNormalizedNamed(rd)
		if err != nil {
			continue
		}
		canonical, ok := candidate.(reference.Canonical)
		if !ok || candidate.Name() != named.Name() {
			continue
		}
		pinned, err := reference.WithDigest(reference.TrimNamed(named), canonical.Digest())
		if err != nil {
			return "", err
		}
		return reference.FamiliarString(pinned), nil
	}
	if _, err := digest.Parse(img.ID); err != nil {
		return "", fmt.Errorf("image %q has neither a repository digest nor a valid ID", name)
	}
	log.V(1).Infof("Image %q has no repository digest, pinning to its ID %s", name, img.ID)
	return img.ID, nil
}

// ImageMetadataFromImage returns the runtime contract declared by img. The
// port is read from the label portLabel. Without that label it is only
// known when img exposes a single port.
func ImageMetadataFromImage(img *api.Image, portLabel string) api.ImageMetadata {
	md := api.ImageMetadata{}
	if img == nil || img.Config == nil {
		return md
	}
	md.WorkingDir = img.Config.WorkingDir
	md.ExposedPorts = img.Config.ExposedPorts
	md.Command = img.Config.Cmd
	md.Env = img.Config.Env
	md.Labels = img.Config.Labels
	if port, err := strconv.Atoi(img.Config.Labels[portLabel]); err == nil && port > 0 {
		md.Port = port
		return md
	}
	if len(img.Config.ExposedPorts) == 1 {
		if port, err := strconv.Atoi(strings.SplitN(img.Config.ExposedPorts[0], "/", 2)[0]); err == nil {
			md.Port = port
		}
	}
	return md
}
