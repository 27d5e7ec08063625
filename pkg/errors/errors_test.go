package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeThroughWrapping(t *testing.T) {
	tests := map[string]struct {
		err  error
		code int
	}{
		"image not found":  {NewImageNotFoundError("python:3.9", nil), ImageNotFoundError},
		"dependency":       {NewDependencyResolutionError([]string{"flsk"}, nil), DependencyResolutionError},
		"artifact":         {NewArtifactNotFoundError("app.py", nil), ArtifactNotFoundError},
		"wrapped artifact": {fmt.Errorf("stage failed: %w", NewArtifactNotFoundError("app.py", nil)), ArtifactNotFoundError},
		"container":        {NewContainerError("app", 2, ""), ContainerError},
		"plain":            {errors.New("boom"), 0},
	}
	for desc, tc := range tests {
		if got := Code(tc.err); got != tc.code {
			t.Errorf("%s: expected code %d, got %d", desc, tc.code, got)
		}
	}
}

func TestHelpers(t *testing.T) {
	if !IsImageNotFound(NewImageNotFoundError("x:1", nil)) {
		t.Error("expected IsImageNotFound to match")
	}
	if !IsDependencyResolution(fmt.Errorf("x: %w", NewDependencyResolutionError(nil, nil))) {
		t.Error("expected IsDependencyResolution to match through wrapping")
	}
	if IsArtifactNotFound(NewBuildError("deps", "", nil)) {
		t.Error("build error must not be reported as missing artifact")
	}
}

func TestUnwrapDetails(t *testing.T) {
	cause := errors.New("manifest unknown")
	err := NewImageNotFoundError("python:0.0", cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected %v to wrap %v", err, cause)
	}
}

func TestDependencyResolutionMessage(t *testing.T) {
	err := NewDependencyResolutionError([]string{"flsk", "requets==2.0"}, nil)
	want := "unable to resolve dependencies: flsk, requets==2.0"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
