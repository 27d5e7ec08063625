package buildah

import (
	"encoding/json"
	"sort"
)

// Inspect parsed outcomes of "buildah inspect" calls.
type Inspect struct {
	FromImage       string        `json:"FromImage"`
	FromImageID     string        `json:"FromImageID"`
	FromImageDigest string        `json:"FromImageDigest"`
	Docker          InspectDocker `json:"Docker"`
}

// InspectDocker docker section of config instance.
type InspectDocker struct {
	Config InspectDockerConfig `json:"config"`
}

// InspectDockerConfig config section inside Docker config.
type InspectDockerConfig struct {
	User         string              `json:"User"`
	Env          []string            `json:"Env"`
	Cmd          []string            `json:"Cmd"`
	WorkingDir   string              `json:"WorkingDir"`
	Entrypoint   []string            `json:"Entrypoint"`
	ExposedPorts map[string]struct{} `json:"ExposedPorts"`
	Labels       map[string]string   `json:"Labels"`
}

// ports returns the exposed ports sorted.
func (c InspectDockerConfig) ports() []string {
	var ports []string
	for p := range c.ExposedPorts {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	return ports
}

// inspectImage run "buildah inspect" and parse out returned json to compose a Inspect instance. It
// can return error in case of buildah does, and in case of not being able to parse out json output.
func (b *Buildah) inspectImage(image string) (*Inspect, error) {
	log.V(3).Infof("Inspecting image '%s' with buildah...", image)
	output, err := b.execute([]string{buildahCmd, "inspect", "--type", "image", image}, nil, false)
	if err != nil {
		return nil, err
	}

	imageMetadata := &Inspect{}
	err = json.Unmarshal(output, &imageMetadata)
	if err != nil {
		log.Errorf("Error parsing JSON output '%s': '%q'", output, err)
		return nil, err
	}
	return imageMetadata, nil
}
