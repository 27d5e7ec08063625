package validation

import (
	"reflect"
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

func validConfig() *api.Config {
	return &api.Config{
		BaseImage:    "python:3.9-slim",
		Tag:          "myapp:latest",
		Source:       ".",
		ManifestPath: "requirements.txt",
		ArtifactPath: "app.py",
		ImageWorkDir: "/app",
		Port:         8080,
		PullPolicy:   api.PullIfNotPresent,
	}
}

func TestValidation(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(*api.Config)
		expected []Error
	}{
		{
			name:     "valid",
			mutate:   func(*api.Config) {},
			expected: []Error{},
		},
		{
			name:     "pinned by digest",
			mutate:   func(c *api.Config) { c.BaseImage = "python@sha256:" + sha },
			expected: []Error{},
		},
		{
			name:     "missing base",
			mutate:   func(c *api.Config) { c.BaseImage = "" },
			expected: []Error{NewFieldRequired("base")},
		},
		{
			name:     "base without tag",
			mutate:   func(c *api.Config) { c.BaseImage = "python" },
			expected: []Error{NewFieldInvalidValueWithReason("base", "must name an exact tag or digest")},
		},
		{
			name:     "missing tag",
			mutate:   func(c *api.Config) { c.Tag = "" },
			expected: []Error{NewFieldRequired("tag")},
		},
		{
			name: "dockerfile needs no tag",
			mutate: func(c *api.Config) {
				c.Tag = ""
				c.AsDockerfile = "out/Dockerfile"
			},
			expected: []Error{},
		},
		{
			name:     "artifact outside the source",
			mutate:   func(c *api.Config) { c.ArtifactPath = "../app.py" },
			expected: []Error{NewFieldInvalidValueWithReason("artifact", `"../app.py" must name a file inside the source directory`)},
		},
		{
			name:     "absolute manifest",
			mutate:   func(c *api.Config) { c.ManifestPath = "/requirements.txt" },
			expected: []Error{NewFieldInvalidValueWithReason("manifest", `"/requirements.txt" must be relative to the source directory`)},
		},
		{
			name:     "port out of range",
			mutate:   func(c *api.Config) { c.Port = 70000 },
			expected: []Error{NewFieldInvalidValueWithReason("port", "70000 is not between 1 and 65535")},
		},
		{
			name:     "relative workdir",
			mutate:   func(c *api.Config) { c.ImageWorkDir = "app" },
			expected: []Error{NewFieldInvalidValueWithReason("workdir", "must be an absolute path")},
		},
		{
			name:     "line break in workdir",
			mutate:   func(c *api.Config) { c.ImageWorkDir = "/app\nRUN id" },
			expected: []Error{NewFieldInvalidValueWithReason("workdir", "must not contain line breaks")},
		},
		{
			name: "line breaks in description and display name",
			mutate: func(c *api.Config) {
				c.Description = "hello\rworld"
				c.DisplayName = "hello\n"
			},
			expected: []Error{
				NewFieldInvalidValueWithReason("description", "must not contain line breaks"),
				NewFieldInvalidValueWithReason("display-name", "must not contain line breaks"),
			},
		},
		{
			name:     "line break in artifact",
			mutate:   func(c *api.Config) { c.ArtifactPath = "app.py\nRUN id" },
			expected: []Error{NewFieldInvalidValueWithReason("artifact", `"app.py\nRUN id" must not contain line breaks`)},
		},
		{
			name: "spaces in paths",
			mutate: func(c *api.Config) {
				c.ArtifactPath = "my app/main.py"
				c.ImageWorkDir = "/srv/my app"
			},
			expected: []Error{},
		},
		{
			name:     "bad pull policy",
			mutate:   func(c *api.Config) { c.PullPolicy = "sometimes" },
			expected: []Error{NewFieldInvalidValue("pull-policy")},
		},
		{
			name:     "bad env",
			mutate:   func(c *api.Config) { c.Environment = api.EnvironmentList{{Name: "A B", Value: "1"}} },
			expected: []Error{NewFieldInvalidValue("env")},
		},
		{
			name:     "bad label",
			mutate:   func(c *api.Config) { c.Labels = map[string]string{"owner": "a\nb"} },
			expected: []Error{NewFieldInvalidValue("label")},
		},
		{
			name:     "carriage return in env",
			mutate:   func(c *api.Config) { c.Environment = api.EnvironmentList{{Name: "A", Value: "1\rRUN id"}} },
			expected: []Error{NewFieldInvalidValue("env")},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := validConfig()
			tc.mutate(config)
			result := ValidateConfig(config)
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestValidateReturnsInvalidRecipe(t *testing.T) {
	config := validConfig()
	if err := Validate(config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	config.Port = 0
	config.WithBuilder = "kaniko"
	err := Validate(config)
	if r2ierr.Code(err) != r2ierr.InvalidRecipeError {
		t.Fatalf("expected InvalidRecipeError, got %v", err)
	}
}

const sha = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
