package external

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/dockerfile"
	"github.com/openshift/recipe-to-image/pkg/resolver"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

// External builds the generated Dockerfile with an external builder CLI
// instead of the layered pipeline.
type External struct {
	dockerfile *dockerfile.Dockerfile
}

var (
	// local logger
	log = utillog.StderrLog
	// supported external commands, template is based on api.Config instance
	commands = map[string]string{
		"buildah": `buildah bud --tag {{ .Tag }} --file {{ .AsDockerfile }} {{ or .WorkingDir "." }}`,
		"docker":  `docker build --tag {{ .Tag }} --file {{ .AsDockerfile }} {{ or .WorkingDir "." }}`,
		"podman":  `podman build --tag {{ .Tag }} --file {{ .AsDockerfile }} {{ or .WorkingDir "." }}`,
	}
)

// GetBuilders returns a list of command names, based global commands map.
func GetBuilders() []string {
	builders := []string{}
	for k := range commands {
		builders = append(builders, k)
	}
	sort.Strings(builders)
	return builders
}

// ValidBuilderName returns a boolean based in keys of global commands map.
func ValidBuilderName(name string) bool {
	_, exists := commands[name]
	return exists
}

// renderCommand render a shell command based in api.Config instance. Attribute WithBuilder
// wll determine external builder name, and api.Config feeds command's template variables. It can
// return error in case of template parsing or evaluation issues.
func (e *External) renderCommand(config *api.Config) (string, error) {
	commandTemplate, exists := commands[config.WithBuilder]
	if !exists {
		return "", fmt.Errorf("cannot find command '%s' in dictionary: '%#v'",
			config.WithBuilder, commands)
	}

	t, err := template.New("external-command").Parse(commandTemplate)
	if err != nil {
		return "", err
	}
	var output bytes.Buffer
	if err = t.Execute(&output, config); err != nil {
		return "", err
	}
	return output.String(), nil
}

// execute the given external command using "os/exec". Returns the outcomes as api.Result, making
// sure it only marks result as success when exit-code is zero. Therefore, it returns errors based
// in external command errors, so "r2i build" also fails.
func (e *External) execute(externalCommand string) (*api.Result, error) {
	log.V(0).Infof("Executing external build command: '%s'", externalCommand)

	externalCommandSlice := strings.Fields(externalCommand)
	if len(externalCommandSlice) == 0 {
		return nil, errors.New("empty external build command")
	}
	cmd := exec.Command(externalCommandSlice[0], externalCommandSlice[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	res := &api.Result{Success: false}
	res.Messages = append(res.Messages, fmt.Sprintf("Running command: '%s'", externalCommand))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.V(0).Infof("External command return-code: %d", exitErr.ExitCode())
			res.Messages = append(res.Messages, fmt.Sprintf("exit-code: %d", exitErr.ExitCode()))
		} else {
			res.Messages = append(res.Messages, err.Error())
		}
		return res, err
	}
	res.Success = true
	res.Messages = append(res.Messages, "exit-code: 0")
	return res, nil
}

// asDockerfile inspect config, if user has already informed `--as-dockerfile` option, that's simply
// returned, otherwise, considering the working directory first before using artificial name.
func (e *External) asDockerfile(config *api.Config) string {
	if len(config.AsDockerfile) > 0 {
		return config.AsDockerfile
	}

	if len(config.WorkingDir) > 0 {
		return filepath.Join(config.WorkingDir, constants.DockerfileName)
	}
	return constants.DockerfileName
}

// Build writes the Dockerfile of the recipe first, and then proceeds to execute the external
// command with the directory of the Dockerfile as build context.
func (e *External) Build(config *api.Config) (*api.Result, error) {
	result, err := e.dockerfile.Build(config)
	if err != nil {
		return result, err
	}

	externalCommand, err := e.renderCommand(config)
	if err != nil {
		return nil, err
	}

	res, err := e.execute(externalCommand)
	if res != nil {
		res.WorkingDir = config.WorkingDir
		res.Lock = result.Lock
		res.BuildInfo = result.BuildInfo
		if res.Success {
			res.Tag = config.Tag
		}
	}
	return res, err
}

// New instance of External command strategy. Without --as-dockerfile the
// Dockerfile is written into a new working directory.
func New(config *api.Config, fs fs.FileSystem, index resolver.Index) (*External, error) {
	if len(config.AsDockerfile) == 0 && len(config.WorkingDir) == 0 {
		dir, err := fs.CreateWorkingDirectory()
		if err != nil {
			return nil, err
		}
		config.WorkingDir = dir
	}
	e := &External{}
	config.AsDockerfile = e.asDockerfile(config)

	df, err := dockerfile.New(config, fs, index)
	if err != nil {
		return nil, err
	}
	e.dockerfile = df
	return e, nil
}
