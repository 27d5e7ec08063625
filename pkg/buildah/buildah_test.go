package buildah

import (
	"bytes"
	"errors"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/openshift/recipe-to-image/pkg/docker"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

type fakeExecutor struct {
	commands [][]string
	outputs  map[string]string
	errors   map[string]error
	once     map[string]error
	iid      string
}

func (f *fakeExecutor) run(cmdSlice []string, stdin io.Reader, verbose bool) ([]byte, error) {
	f.commands = append(f.commands, cmdSlice)
	key := strings.Join(cmdSlice[:2], " ")
	if cmdSlice[1] == "bud" && len(f.iid) > 0 {
		if err := os.WriteFile(cmdSlice[3], []byte(f.iid+"\n"), 0600); err != nil {
			return nil, err
		}
	}
	if err, ok := f.once[key]; ok {
		delete(f.once, key)
		return nil, err
	}
	return []byte(f.outputs[key]), f.errors[key]
}

const inspectOutput = `{
  "FromImage": "docker.io/library/python:3.9",
  "FromImageID": "1234abcd",
  "FromImageDigest": "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
  "Docker": {
    "config": {
      "Env": ["PATH=/usr/local/bin"],
      "Cmd": ["python", "app.py"],
      "WorkingDir": "/app",
      "ExposedPorts": {"8080/tcp": {}},
      "Labels": {"a": "b"}
    }
  }
}`

func TestInspectImage(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{"buildah inspect": inspectOutput}}
	b := NewBuildahWithExecutor(exec.run)

	img, err := b.InspectImage("python:3.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.ID != "sha256:1234abcd" {
		t.Errorf("unexpected ID %q", img.ID)
	}
	if want := []string{"python@sha256:" + strings.Repeat("a", 64)}; !reflect.DeepEqual(img.RepoDigests, want) {
		t.Errorf("expected repo digests %v, got %v", want, img.RepoDigests)
	}
	if !reflect.DeepEqual(img.Config.ExposedPorts, []string{"8080/tcp"}) || img.Config.WorkingDir != "/app" {
		t.Errorf("unexpected config %+v", img.Config)
	}
	if want := []string{"buildah", "inspect", "--type", "image", "python:3.9"}; !reflect.DeepEqual(exec.commands[0], want) {
		t.Errorf("expected %v, got %v", want, exec.commands[0])
	}
}

func TestCheckAndPullImage(t *testing.T) {
	tests := map[string]struct {
		once    map[string]error
		errors  map[string]error
		errCode int
		pulled  bool
	}{
		"local":        {},
		"pulled":       {once: map[string]error{"buildah inspect": errors.New("python:3.9: image not known")}, pulled: true},
		"unknown tag":  {errors: map[string]error{"buildah inspect": errors.New("image not known"), "buildah pull": errors.New("manifest unknown")}, errCode: r2ierr.ImageNotFoundError},
		"pull failure": {errors: map[string]error{"buildah inspect": errors.New("image not known"), "buildah pull": errors.New("connection refused")}, errCode: r2ierr.PullImageError},
	}
	for name, tc := range tests {
		exec := &fakeExecutor{outputs: map[string]string{"buildah inspect": inspectOutput}, errors: tc.errors, once: tc.once}
		b := NewBuildahWithExecutor(exec.run)
		_, err := b.CheckAndPullImage("python:3.9")
		if tc.errCode != 0 {
			if r2ierr.Code(err) != tc.errCode {
				t.Errorf("%s: expected error code %d, got %v", name, tc.errCode, err)
			}
			continue
		}
		pulled := false
		for _, c := range exec.commands {
			pulled = pulled || c[1] == "pull"
		}
		if tc.pulled != pulled {
			t.Errorf("%s: expected pulled=%v, commands %v", name, tc.pulled, exec.commands)
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
}

func TestBuildImage(t *testing.T) {
	exec := &fakeExecutor{
		outputs: map[string]string{"buildah bud": "STEP 1/2: FROM python:3.9\n"},
		iid:     "sha256:feed",
	}
	b := NewBuildahWithExecutor(exec.run)
	out := &bytes.Buffer{}

	id, err := b.BuildImage(docker.BuildImageOptions{
		Name:       "r2i-build-x:deps",
		ContextDir: "/tmp/ctx",
		Dockerfile: "Dockerfile.deps",
		Labels:     map[string]string{"z": "1", "a": "2"},
		Stdout:     out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "sha256:feed" {
		t.Errorf("unexpected ID %q", id)
	}
	cmd := exec.commands[0]
	want := []string{"--tag", "r2i-build-x:deps", "--file", "/tmp/ctx/Dockerfile.deps", "--label", "a=2", "--label", "z=1", "/tmp/ctx"}
	if !reflect.DeepEqual(cmd[4:], want) {
		t.Errorf("expected arguments %v, got %v", want, cmd[4:])
	}
	if out.String() != "STEP 1/2: FROM python:3.9\n" {
		t.Errorf("expected the build output to be forwarded, got %q", out.String())
	}
}

func TestRunContainerUnsupported(t *testing.T) {
	b := NewBuildahWithExecutor((&fakeExecutor{}).run)
	if err := b.RunContainer(docker.RunContainerOptions{Image: "app:1"}); err == nil {
		t.Error("expected an error")
	}
}
