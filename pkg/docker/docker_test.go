package docker

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/openshift/recipe-to-image/pkg/docker/test"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

func TestContainerName(t *testing.T) {
	got := containerName("sub.domain.com:5000/repo:tag@sha256:ffffff")
	want := regexp.MustCompile(`^r2i_sub.domain.com_5000_repo_tag_sha256_ffffff_[0-9a-f]{8}$`)
	if !want.MatchString(got) {
		t.Errorf("got %v, want match for %v", got, want)
	}
}

func TestIsImageInLocalRegistry(t *testing.T) {
	tests := map[string]struct {
		imageName      string
		local          string
		inspectErr     error
		expectedResult bool
		expectedError  string
	}{
		"ImageFound":    {imageName: "a_test_image:latest", local: "a_test_image", expectedResult: true},
		"ImageNotFound": {imageName: "a_test_image:sometag", expectedResult: false},
		"InspectError":  {imageName: "a_test_image:latest", inspectErr: errors.New("daemon down"), expectedError: "unable to get metadata for a_test_image:latest"},
	}

	for name, tc := range tests {
		fake := test.NewFakeDockerClient()
		if len(tc.local) > 0 {
			fake.AddLocalImage(tc.local, ocispec.ImageConfig{})
		}
		fake.InspectErr = tc.inspectErr
		dh := New(fake)

		result, err := dh.IsImageInLocalRegistry(tc.imageName)
		if !reflect.DeepEqual(fake.Calls, []string{"inspect_image"}) {
			t.Errorf("%s: unexpected calls %v", name, fake.Calls)
		}
		if result != tc.expectedResult {
			t.Errorf("%s: expected result %v, got %v", name, tc.expectedResult, result)
		}
		if len(tc.expectedError) > 0 {
			if err == nil || !strings.Contains(err.Error(), tc.expectedError) {
				t.Errorf("%s: expected error %q, got %v", name, tc.expectedError, err)
			}
		} else if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
}

func TestCheckAndPullImage(t *testing.T) {
	tests := map[string]struct {
		imageName string
		local     bool
		registry  bool
		pullErr   error
		calls     []string
		errCode   int
	}{
		"ImageExists":       {imageName: "test_image", local: true, calls: []string{"inspect_image"}},
		"ImageDoesNotExist": {imageName: "test_image", registry: true, calls: []string{"inspect_image", "pull", "inspect_image"}},
		"UnknownTag":        {imageName: "test_image:0.0", calls: []string{"inspect_image", "pull"}, errCode: r2ierr.ImageNotFoundError},
		"PullError":         {imageName: "test_image", registry: true, pullErr: errors.New("connection refused"), calls: []string{"inspect_image", "pull"}, errCode: r2ierr.PullImageError},
		"PullNotFound":      {imageName: "test_image", pullErr: errdefs.NotFound(errors.New("gone")), calls: []string{"inspect_image", "pull"}, errCode: r2ierr.ImageNotFoundError},
	}

	for name, tc := range tests {
		fake := test.NewFakeDockerClient()
		if tc.local {
			fake.AddLocalImage(tc.imageName, ocispec.ImageConfig{})
		}
		if tc.registry {
			fake.AddRegistryImage(tc.imageName, ocispec.ImageConfig{})
		}
		fake.PullErr = tc.pullErr
		dh := New(fake)

		img, err := dh.CheckAndPullImage(tc.imageName)
		if !reflect.DeepEqual(fake.Calls, tc.calls) {
			t.Errorf("%s: expected calls %v, got %v", name, tc.calls, fake.Calls)
		}
		if tc.errCode != 0 {
			if r2ierr.Code(err) != tc.errCode {
				t.Errorf("%s: expected error code %d, got %v", name, tc.errCode, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
			continue
		}
		if img == nil || len(img.ID) == 0 {
			t.Errorf("%s: expected image metadata, got %#v", name, img)
		}
	}
}

func TestInspectImage(t *testing.T) {
	fake := test.NewFakeDockerClient()
	fake.AddLocalImage("python:3.9-slim", ocispec.ImageConfig{
		WorkingDir:   "/srv",
		Env:          []string{"PATH=/usr/local/bin"},
		Cmd:          []string{"python3"},
		ExposedPorts: map[string]struct{}{"9000/tcp": {}, "8000/tcp": {}},
	})
	img, err := New(fake).InspectImage("python:3.9-slim")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Config.WorkingDir != "/srv" {
		t.Errorf("unexpected working dir %q", img.Config.WorkingDir)
	}
	if want := []string{"8000/tcp", "9000/tcp"}; !reflect.DeepEqual(img.Config.ExposedPorts, want) {
		t.Errorf("expected sorted ports %v, got %v", want, img.Config.ExposedPorts)
	}
	if want := []string{"python:3.9-slim"}; !reflect.DeepEqual(img.RepoTags, want) {
		t.Errorf("expected tags %v, got %v", want, img.RepoTags)
	}
}

func writeContext(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBuildImage(t *testing.T) {
	fake := test.NewFakeDockerClient()
	fake.AddLocalImage("python:3.9", ocispec.ImageConfig{})
	dir := writeContext(t, map[string]string{
		"Dockerfile": "FROM python:3.9\nWORKDIR /app\nCOPY app.py ./app.py\nEXPOSE 8080/tcp\nCMD [\"python\",\"app.py\"]\n",
		"app.py":     "print('hi')\n",
	})
	out := &bytes.Buffer{}
	dh := New(fake)

	id, err := dh.BuildImage(BuildImageOptions{
		Name:       "r2i-build-test:artifact",
		ContextDir: dir,
		Dockerfile: "Dockerfile",
		Labels:     map[string]string{"stage": "artifact"},
		Stdout:     out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(id, "sha256:") {
		t.Errorf("expected a content addressed ID, got %q", id)
	}
	if fake.TaggedID("r2i-build-test:artifact") != id {
		t.Errorf("expected the build tag to point to %s", id)
	}
	if !strings.Contains(out.String(), "Step 1/5 : FROM python:3.9") {
		t.Errorf("expected build output to be streamed, got %q", out.String())
	}
	img, err := dh.InspectImage(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(img.Config.Cmd, []string{"python", "app.py"}) {
		t.Errorf("unexpected command %v", img.Config.Cmd)
	}
	if img.Config.Labels["stage"] != "artifact" {
		t.Errorf("expected build labels to be applied, got %v", img.Config.Labels)
	}

	again, err := dh.BuildImage(BuildImageOptions{ContextDir: dir, Dockerfile: "Dockerfile", Labels: map[string]string{"stage": "artifact"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != id {
		t.Errorf("expected identical inputs to give the same ID, got %s and %s", id, again)
	}
}

func TestBuildImageFailure(t *testing.T) {
	fake := test.NewFakeDockerClient()
	fake.AddLocalImage("python:3.9", ocispec.ImageConfig{})
	dir := writeContext(t, map[string]string{
		"Dockerfile": "FROM python:3.9\nCOPY missing.py ./missing.py\n",
	})
	_, err := New(fake).BuildImage(BuildImageOptions{Name: "x:1", ContextDir: dir, Dockerfile: "Dockerfile"})
	if err == nil || !strings.Contains(err.Error(), "COPY failed") {
		t.Errorf("expected the build error to be returned, got %v", err)
	}
	if len(fake.TaggedID("x:1")) != 0 {
		t.Error("a failed build must not be tagged")
	}
}

func TestTagAndRemoveImage(t *testing.T) {
	fake := test.NewFakeDockerClient()
	img := fake.AddLocalImage("r2i-build-abc:metadata", ocispec.ImageConfig{})
	dh := New(fake)

	if err := dh.TagImage(img.ID, "myapp:1.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.TaggedID("myapp:1.0") != img.ID {
		t.Fatalf("expected myapp:1.0 to point to %s", img.ID)
	}
	if err := dh.RemoveImage("r2i-build-abc:metadata"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := fake.Images[img.ID]; !ok {
		t.Error("untagging an intermediate reference must keep the published image")
	}
	if err := dh.RemoveImage(img.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := fake.Images[img.ID]; ok {
		t.Error("expected the image to be removed")
	}
}

func TestRunContainer(t *testing.T) {
	tests := map[string]struct {
		exitCode int64
		wantErr  bool
	}{
		"success": {exitCode: 0},
		"failure": {exitCode: 3, wantErr: true},
	}
	for name, tc := range tests {
		fake := test.NewFakeDockerClient()
		fake.AddLocalImage("myapp:1.0", ocispec.ImageConfig{})
		fake.ContainerExitCode = tc.exitCode
		fake.ContainerOutput = "serving on 8080\n"
		fake.ContainerErrorOut = "warning\n"
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		var started string

		err := New(fake).RunContainer(RunContainerOptions{
			Image:   "myapp:1.0",
			Ports:   []int{8080},
			Remove:  true,
			OnStart: func(id string) error { started = id; return nil },
			Stdout:  stdout,
			Stderr:  stderr,
		})
		if tc.wantErr {
			var cerr r2ierr.ContainerErr
			if !errors.As(err, &cerr) || cerr.ExitCode != int(tc.exitCode) {
				t.Errorf("%s: expected container error with code %d, got %v", name, tc.exitCode, err)
			} else if cerr.Output != "warning\n" {
				t.Errorf("%s: expected stderr in the error, got %q", name, cerr.Output)
			}
		} else if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
		if len(started) == 0 {
			t.Errorf("%s: OnStart was not called", name)
		}
		if stdout.String() != "serving on 8080\n" {
			t.Errorf("%s: unexpected stdout %q", name, stdout.String())
		}
		if len(fake.Containers) != 0 {
			t.Errorf("%s: expected the container to be removed", name)
		}
	}
}
