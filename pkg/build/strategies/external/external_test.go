package external

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	"github.com/openshift/recipe-to-image/pkg/test"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
)

// withBuilder registers a builder for the duration of the test.
func withBuilder(t *testing.T, name, command string) {
	t.Helper()
	commands[name] = command
	t.Cleanup(func() { delete(commands, name) })
}

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newConfig(source, builder string) *api.Config {
	return &api.Config{
		Source:       source,
		BaseImage:    "python:3.11-slim",
		ManifestPath: "requirements.txt",
		ArtifactPath: "app.py",
		ImageWorkDir: "/app",
		Port:         8080,
		Tag:          "hello:latest",
		WithBuilder:  builder,
	}
}

func flaskApp() map[string]string {
	return map[string]string{
		"requirements.txt": "flask==2.0\n",
		"app.py":           "print('hello')\n",
	}
}

func TestBuilders(t *testing.T) {
	if got, want := GetBuilders(), []string{"buildah", "docker", "podman"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected builders %v, got %v", want, got)
	}
	for name, valid := range map[string]bool{"buildah": true, "podman": true, "docker": true, "kaniko": false, "": false} {
		if ValidBuilderName(name) != valid {
			t.Errorf("%q: expected valid=%v", name, valid)
		}
	}
}

func TestRenderCommandUsesDockerfileDirectory(t *testing.T) {
	e := &External{}
	config := &api.Config{
		Tag:          "registry.example/hello:1.0",
		AsDockerfile: "/tmp/r2i-1/Dockerfile.r2i",
		WorkingDir:   "/tmp/r2i-1",
	}
	tests := map[string]string{
		"buildah": "buildah bud --tag registry.example/hello:1.0 --file /tmp/r2i-1/Dockerfile.r2i /tmp/r2i-1",
		"podman":  "podman build --tag registry.example/hello:1.0 --file /tmp/r2i-1/Dockerfile.r2i /tmp/r2i-1",
		"docker":  "docker build --tag registry.example/hello:1.0 --file /tmp/r2i-1/Dockerfile.r2i /tmp/r2i-1",
	}
	for builder, want := range tests {
		config.WithBuilder = builder
		got, err := e.renderCommand(config)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", builder, err)
			continue
		}
		if got != want {
			t.Errorf("%s: expected %q, got %q", builder, want, got)
		}
	}

	config.WithBuilder = "kaniko"
	if _, err := e.renderCommand(config); err == nil {
		t.Errorf("expected an error for an unknown builder")
	}
}

func TestBuildRunsBuilderOnGeneratedContext(t *testing.T) {
	withBuilder(t, "ok", "/usr/bin/true {{ .Tag }} {{ .AsDockerfile }} {{ .WorkingDir }}")
	config := newConfig(writeSource(t, flaskApp()), "ok")
	e, err := New(config, fs.NewFileSystem(), test.NewFakeIndex(map[string][]string{"flask": {"2.0", "2.0.3"}}))
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(config.WorkingDir)

	result, err := e.Build(config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Tag != "hello:latest" {
		t.Errorf("expected a tagged success, got success=%v tag=%q", result.Success, result.Tag)
	}
	if !reflect.DeepEqual(result.Lock, []string{"flask==2.0"}) {
		t.Errorf("expected the lock to reach the result, got %v", result.Lock)
	}
	if len(result.BuildInfo.Stages) == 0 {
		t.Errorf("expected the Dockerfile stages to reach the result")
	}
	if result.WorkingDir != filepath.Dir(config.AsDockerfile) {
		t.Errorf("expected the build context %s, got %s", filepath.Dir(config.AsDockerfile), result.WorkingDir)
	}

	content, err := os.ReadFile(config.AsDockerfile)
	if err != nil {
		t.Fatalf("expected the Dockerfile to be written: %v", err)
	}
	for _, copied := range []string{"upload/requirements.lock", "upload/src/app.py"} {
		if !strings.Contains(string(content), `"`+copied+`"`) {
			t.Errorf("expected the Dockerfile to copy %s, got:\n%s", copied, content)
		}
		if _, err := os.Stat(filepath.Join(config.WorkingDir, filepath.FromSlash(copied))); err != nil {
			t.Errorf("expected %s inside the build context: %v", copied, err)
		}
	}
}

func TestBuildBuilderFailure(t *testing.T) {
	withBuilder(t, "broken", "/usr/bin/false {{ .Tag }}")
	config := newConfig(writeSource(t, flaskApp()), "broken")
	e, err := New(config, fs.NewFileSystem(), test.NewFakeIndex(map[string][]string{"flask": {"2.0"}}))
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(config.WorkingDir)

	result, err := e.Build(config)
	if err == nil {
		t.Fatal("expected the builder failure to be returned")
	}
	if result.Success || len(result.Tag) > 0 {
		t.Errorf("expected no tag on failure, got success=%v tag=%q", result.Success, result.Tag)
	}
	if !reflect.DeepEqual(result.Lock, []string{"flask==2.0"}) {
		t.Errorf("expected the lock to reach the result, got %v", result.Lock)
	}
	if !contains(result.Messages, "exit-code: 1") {
		t.Errorf("expected the exit code in %v", result.Messages)
	}
}

func TestBuildStopsBeforeBuilderOnRecipeErrors(t *testing.T) {
	withBuilder(t, "never", "/nonexistent/r2i-builder {{ .Tag }}")
	tests := map[string]struct {
		files map[string]string
		code  int
	}{
		"missing artifact": {
			files: map[string]string{"requirements.txt": "flask==2.0\n"},
			code:  r2ierr.ArtifactNotFoundError,
		},
		"unresolvable manifest": {
			files: map[string]string{"requirements.txt": "flsk==2.0\n", "app.py": "pass\n"},
			code:  r2ierr.DependencyResolutionError,
		},
	}
	for name, tc := range tests {
		config := newConfig(writeSource(t, tc.files), "never")
		e, err := New(config, fs.NewFileSystem(), test.NewFakeIndex(map[string][]string{"flask": {"2.0"}}))
		if err != nil {
			t.Fatal(err)
		}
		result, err := e.Build(config)
		os.RemoveAll(config.WorkingDir)
		if r2ierr.Code(err) != tc.code {
			t.Errorf("%s: expected error code %d, got %v", name, tc.code, err)
			continue
		}
		for _, m := range result.Messages {
			if strings.HasPrefix(m, "Running command") {
				t.Errorf("%s: expected the builder not to run, got %q", name, m)
			}
		}
		if len(result.Tag) > 0 {
			t.Errorf("%s: expected no tag, got %q", name, result.Tag)
		}
	}
}

func TestExecute(t *testing.T) {
	e := &External{}
	tests := map[string]bool{
		"/usr/bin/true":                      true,
		"/usr/bin/false":                     false,
		"/nonexistent/r2i-builder --version": false,
	}
	for command, success := range tests {
		result, err := e.execute(command)
		if (err == nil) != success {
			t.Errorf("%s: unexpected error %v", command, err)
		}
		if result == nil || result.Success != success {
			t.Errorf("%s: expected success=%v, got %#v", command, success, result)
		}
	}
	if _, err := e.execute("   "); err == nil {
		t.Errorf("expected an error for an empty command")
	}
}

func TestNewWritesIntoWorkingDir(t *testing.T) {
	config := &api.Config{WithBuilder: "docker", Source: t.TempDir()}
	if _, err := New(config, fs.NewFileSystem(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer os.RemoveAll(config.WorkingDir)
	if len(config.WorkingDir) == 0 {
		t.Fatal("expected a working directory to be created")
	}
	if expected := filepath.Join(config.WorkingDir, "Dockerfile.r2i"); config.AsDockerfile != expected {
		t.Errorf("expected the Dockerfile at %s, got %s", expected, config.AsDockerfile)
	}

	config = &api.Config{WithBuilder: "docker", Source: t.TempDir(), AsDockerfile: "out/Dockerfile"}
	if _, err := New(config, fs.NewFileSystem(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(config.WorkingDir) > 0 || config.AsDockerfile != "out/Dockerfile" {
		t.Errorf("expected the given Dockerfile path to be kept, got %q in %q", config.AsDockerfile, config.WorkingDir)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
