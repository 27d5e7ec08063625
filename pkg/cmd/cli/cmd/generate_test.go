package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
)

func TestGenerateSkipResolve(t *testing.T) {
	src := t.TempDir()
	for name, content := range map[string]string{
		"requirements.txt": "flask==2.0\n",
		"app.py":           "print('hello')\n",
	} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(t.TempDir(), "Dockerfile")

	cfg := &api.Config{}
	c := NewCmdGenerate(cfg)
	c.SetArgs([]string{"--base", "python:3.9-slim", "--no-resolve", "--recipe", filepath.Join(src, "r2i.yaml"), src, out})
	// the recipe file is optional only while --recipe is not given
	if err := c.Execute(); err == nil {
		t.Fatal("expected an error for a missing recipe file")
	}

	cfg = &api.Config{}
	c = NewCmdGenerate(cfg)
	c.SetArgs([]string{"--base", "python:3.9-slim", "--no-resolve", src, out})
	if err := c.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{
		"FROM python:3.9-slim",
		"WORKDIR \"/app\"",
		"EXPOSE 8080/tcp",
		`CMD ["python","app.py"]`,
	} {
		if !strings.Contains(string(data), line) {
			t.Errorf("expected %q in\n%s", line, data)
		}
	}
}

func TestGenerateRequiresBase(t *testing.T) {
	cfg := &api.Config{}
	c := NewCmdGenerate(cfg)
	c.SetArgs([]string{t.TempDir(), filepath.Join(t.TempDir(), "Dockerfile")})
	c.SilenceUsage = true
	if err := c.Execute(); err == nil {
		t.Error("expected a validation error without a base image")
	}
}
