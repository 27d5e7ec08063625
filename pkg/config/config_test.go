package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
)

const recipe = `base: python:3.9-slim
tag: myapp:latest
manifest: requirements.txt
artifact: app.py
workdir: /app
port: 8080
cmd: [python, app.py]
env:
  - MODE=production
labels:
  owner: web
pullPolicy: never
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(recipe))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := &Recipe{
		Base:       "python:3.9-slim",
		Tag:        "myapp:latest",
		Manifest:   "requirements.txt",
		Artifact:   "app.py",
		WorkDir:    "/app",
		Port:       8080,
		Command:    []string{"python", "app.py"},
		Env:        []string{"MODE=production"},
		Labels:     map[string]string{"owner": "web"},
		PullPolicy: "never",
	}
	if !reflect.DeepEqual(r, expected) {
		t.Errorf("expected %+v, got %+v", expected, r)
	}
}

func TestParseEmpty(t *testing.T) {
	r, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(r, &Recipe{}) {
		t.Errorf("expected an empty recipe, got %+v", r)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("prot: 8080\n")); err == nil {
		t.Error("expected an error for a misspelled key")
	}
}

func TestApply(t *testing.T) {
	r, err := Parse([]byte(recipe))
	if err != nil {
		t.Fatal(err)
	}
	config := &api.Config{
		Port:   5000,
		Labels: map[string]string{"owner": "cli"},
	}
	changed := map[string]bool{"port": true, "label": true}
	if err := r.Apply(config, func(flag string) bool { return changed[flag] }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Port != 5000 {
		t.Errorf("expected the port flag to win, got %d", config.Port)
	}
	if config.BaseImage != "python:3.9-slim" || config.Tag != "myapp:latest" {
		t.Errorf("unexpected base %q and tag %q", config.BaseImage, config.Tag)
	}
	if config.PullPolicy != api.PullNever {
		t.Errorf("expected pull policy never, got %q", config.PullPolicy)
	}
	if !reflect.DeepEqual(config.Environment, api.EnvironmentList{{Name: "MODE", Value: "production"}}) {
		t.Errorf("unexpected environment %v", config.Environment)
	}
	if config.Labels["owner"] != "cli" {
		t.Errorf("expected the command line label to win, got %q", config.Labels["owner"])
	}
}

func TestApplyInvalidPullPolicy(t *testing.T) {
	r := &Recipe{PullPolicy: "sometimes"}
	if err := r.Apply(&api.Config{}, nil); err == nil {
		t.Error("expected an error for an invalid pull policy")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, constants.RecipeFile)
	config := &api.Config{
		BaseImage:    "python:3.9-slim",
		Tag:          "myapp:latest",
		ManifestPath: "requirements.txt",
		ArtifactPath: "app.py",
		ImageWorkDir: "/app",
		Port:         8080,
		Command:      []string{"python", "app.py"},
		Environment:  api.EnvironmentList{{Name: "MODE", Value: "production"}},
		PullPolicy:   api.PullAlways,
	}
	if err := Save(config, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	restored := &api.Config{}
	if err := r.Apply(restored, nil); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(restored, config) {
		t.Errorf("expected %+v, got %+v", config, restored)
	}
}

func TestApplyDefaults(t *testing.T) {
	os.Unsetenv(constants.IndexURLEnvironment)
	config := &api.Config{}
	ApplyDefaults(config)
	expected := &api.Config{
		ManifestPath:   "requirements.txt",
		ArtifactPath:   "app.py",
		ImageWorkDir:   "/app",
		Port:           8080,
		IndexURL:       "https://pypi.org",
		PullPolicy:     api.PullIfNotPresent,
		LabelNamespace: "io.openshift.r2i.",
	}
	if !reflect.DeepEqual(config, expected) {
		t.Errorf("expected %+v, got %+v", expected, config)
	}
}

func TestDefaultIndexURLFromEnvironment(t *testing.T) {
	t.Setenv(constants.IndexURLEnvironment, "http://mirror.local")
	if got := DefaultIndexURL(); got != "http://mirror.local" {
		t.Errorf("expected the environment index, got %q", got)
	}
}
