package run

import (
	"reflect"
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	"github.com/openshift/recipe-to-image/pkg/test"
)

func TestRun(t *testing.T) {
	fake := &test.FakeDocker{Images: map[string]*api.Image{
		"hello:latest": {ID: "sha256:1234", Config: &api.ContainerConfig{ExposedPorts: []string{"8080/tcp"}}},
	}}
	config := &api.Config{Tag: "hello:latest", Environment: api.EnvironmentList{{Name: "MODE", Value: "dev"}}}
	if err := New(fake).Run(config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts := fake.RunContainerOpts
	if opts.Image != "hello:latest" || !opts.Remove {
		t.Errorf("unexpected run options %#v", opts)
	}
	if !reflect.DeepEqual(opts.Ports, []int{8080}) {
		t.Errorf("expected the declared port to be published, got %v", opts.Ports)
	}
	if !reflect.DeepEqual(opts.Env, []string{"MODE=dev"}) {
		t.Errorf("unexpected environment %v", opts.Env)
	}

	config.Port = 9000
	if err := New(fake).Run(config); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fake.RunContainerOpts.Ports, []int{9000}) {
		t.Errorf("expected the configured port to win, got %v", fake.RunContainerOpts.Ports)
	}
}

func TestRunPublishesLabelledPort(t *testing.T) {
	fake := &test.FakeDocker{Images: map[string]*api.Image{
		"hello:latest": {ID: "sha256:1234", Config: &api.ContainerConfig{
			ExposedPorts: []string{"5000/tcp", "80/tcp"},
			Labels:       map[string]string{"io.openshift.r2i.build.port": "5000"},
		}},
	}}
	if err := New(fake).Run(&api.Config{Tag: "hello:latest"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(fake.RunContainerOpts.Ports, []int{5000}) {
		t.Errorf("expected the labelled port to be published, got %v", fake.RunContainerOpts.Ports)
	}
}

func TestRunContainerError(t *testing.T) {
	fake := &test.FakeDocker{
		Images:            map[string]*api.Image{"hello:latest": {ID: "sha256:1234", Config: &api.ContainerConfig{}}},
		RunContainerError: r2ierr.NewContainerError("r2i_hello_latest_0001", 3, "boom"),
	}
	err := New(fake).Run(&api.Config{Tag: "hello:latest"})
	ce, ok := err.(r2ierr.ContainerErr)
	if !ok {
		t.Fatalf("expected a container error, got %v", err)
	}
	if ce.ExitCode != 3 || ce.Output != "boom" || ce.Message != `container "hello:latest" returned non-zero exit code 3` {
		t.Errorf("unexpected error %#v", ce)
	}
}

func TestRunMissingImage(t *testing.T) {
	err := New(&test.FakeDocker{}).Run(&api.Config{Tag: "missing:latest"})
	if !r2ierr.IsImageNotFound(err) {
		t.Errorf("expected an image not found error, got %v", err)
	}
}
