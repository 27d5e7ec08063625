// Package config loads and saves the r2i.yaml build recipe.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// Recipe is the on-disk form of a build recipe.
type Recipe struct {
	Base            string            `yaml:"base,omitempty"`
	Source          string            `yaml:"source,omitempty"`
	Ref             string            `yaml:"ref,omitempty"`
	ContextDir      string            `yaml:"contextDir,omitempty"`
	Tag             string            `yaml:"tag,omitempty"`
	Manifest        string            `yaml:"manifest,omitempty"`
	Artifact        string            `yaml:"artifact,omitempty"`
	WorkDir         string            `yaml:"workdir,omitempty"`
	Port            int               `yaml:"port,omitempty"`
	Command         []string          `yaml:"cmd,omitempty,flow"`
	Env             []string          `yaml:"env,omitempty"`
	EnvironmentFile string            `yaml:"environmentFile,omitempty"`
	Labels          map[string]string `yaml:"labels,omitempty"`
	IndexURL        string            `yaml:"indexURL,omitempty"`
	NoResolve       bool              `yaml:"noResolve,omitempty"`
	InstallCommand  []string          `yaml:"installCmd,omitempty,flow"`
	PullPolicy      string            `yaml:"pullPolicy,omitempty"`
}

// Load reads the recipe at path. Unknown keys are rejected so that a
// misspelled key does not silently fall back to a default.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a recipe. An empty document is an empty recipe.
func Parse(data []byte) (*Recipe, error) {
	r := &Recipe{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}
	return r, nil
}

// FromConfig returns the recipe describing config.
func FromConfig(config *api.Config) *Recipe {
	r := &Recipe{
		Base:            config.BaseImage,
		Source:          config.Source,
		Ref:             config.Ref,
		ContextDir:      config.ContextDir,
		Tag:             config.Tag,
		Manifest:        config.ManifestPath,
		Artifact:        config.ArtifactPath,
		WorkDir:         config.ImageWorkDir,
		Port:            config.Port,
		Command:         config.Command,
		Env:             config.Environment.AsBinds(),
		EnvironmentFile: config.EnvironmentFile,
		IndexURL:        config.IndexURL,
		NoResolve:       config.SkipResolve,
		InstallCommand:  config.InstallCommand,
		PullPolicy:      string(config.PullPolicy),
	}
	if len(config.Labels) > 0 {
		r.Labels = config.Labels
	}
	if len(r.Env) == 0 {
		r.Env = nil
	}
	return r
}

// Save writes the recipe describing config to path.
func Save(config *api.Config, path string) error {
	data, err := yaml.Marshal(FromConfig(config))
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write recipe %s: %w", path, err)
	}
	log.V(1).Infof("Saved recipe to %s", path)
	return nil
}

// Apply copies the recipe values into config. A value is skipped when the
// recipe leaves it empty or when set reports that the matching command line
// flag was given, so flags take precedence over the recipe.
func (r *Recipe) Apply(config *api.Config, set func(flag string) bool) error {
	if set == nil {
		set = func(string) bool { return false }
	}
	str := func(flag, value string, dst *string) {
		if len(value) > 0 && !set(flag) {
			*dst = value
		}
	}
	str("base", r.Base, &config.BaseImage)
	str("ref", r.Ref, &config.Ref)
	str("context-dir", r.ContextDir, &config.ContextDir)
	str("manifest", r.Manifest, &config.ManifestPath)
	str("artifact", r.Artifact, &config.ArtifactPath)
	str("workdir", r.WorkDir, &config.ImageWorkDir)
	str("environment-file", r.EnvironmentFile, &config.EnvironmentFile)
	str("index-url", r.IndexURL, &config.IndexURL)
	if len(config.Source) == 0 {
		config.Source = r.Source
	}
	if len(config.Tag) == 0 {
		config.Tag = r.Tag
	}
	if r.Port != 0 && !set("port") {
		config.Port = r.Port
	}
	if len(r.Command) > 0 && !set("cmd") {
		config.Command = r.Command
	}
	if len(r.InstallCommand) > 0 && !set("install-cmd") {
		config.InstallCommand = r.InstallCommand
	}
	if r.NoResolve && !set("no-resolve") {
		config.SkipResolve = true
	}
	if len(r.PullPolicy) > 0 && !set("pull-policy") {
		if err := config.PullPolicy.Set(r.PullPolicy); err != nil {
			return fmt.Errorf("recipe pullPolicy: %w", err)
		}
	}
	if len(r.Env) > 0 && !set("env") {
		env := api.EnvironmentList{}
		for _, e := range r.Env {
			if err := env.Set(e); err != nil {
				return fmt.Errorf("recipe env: %w", err)
			}
		}
		config.Environment = env
	}
	if len(r.Labels) > 0 {
		if config.Labels == nil {
			config.Labels = map[string]string{}
		}
		// labels given on the command line win
		for k, v := range r.Labels {
			if _, exists := config.Labels[k]; !exists {
				config.Labels[k] = v
			}
		}
	}
	return nil
}

// ApplyDefaults fills the values config leaves empty.
func ApplyDefaults(config *api.Config) {
	if len(config.ManifestPath) == 0 {
		config.ManifestPath = constants.DefaultManifest
	}
	if len(config.ArtifactPath) == 0 {
		config.ArtifactPath = constants.DefaultArtifact
	}
	if len(config.ImageWorkDir) == 0 {
		config.ImageWorkDir = constants.DefaultImageWorkDir
	}
	if config.Port == 0 {
		config.Port = constants.DefaultPort
	}
	if len(config.IndexURL) == 0 {
		config.IndexURL = DefaultIndexURL()
	}
	if len(config.PullPolicy) == 0 {
		config.PullPolicy = api.DefaultPullPolicy
	}
	if len(config.LabelNamespace) == 0 {
		config.LabelNamespace = constants.DefaultNamespace
	}
}

// DefaultIndexURL returns the package index named by R2I_INDEX_URL, or the
// public index.
func DefaultIndexURL() string {
	if v := strings.TrimSpace(os.Getenv(constants.IndexURLEnvironment)); len(v) > 0 {
		return v
	}
	return constants.DefaultIndexURL
}
