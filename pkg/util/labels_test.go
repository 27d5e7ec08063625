package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	"github.com/openshift/recipe-to-image/pkg/scm/git"
)

func TestImageMetadataLabels(t *testing.T) {
	tests := []struct {
		json  string
		count int
	}{
		{
			json:  "{\"labels\": [{\"org.tenkichannel/service\":\"rain-forecast-process\"}]}",
			count: 1,
		},
		{
			json:  "{\"labels\": [{\"labelkey1\":\"value1\"},{\"labelkey2\":\"value2\"}]}",
			count: 2,
		},
		{
			json:  "{\"labels\": [{\"labelkey1\":\"value1\",\"labelkey2\":\"value2\"}]}",
			count: 2,
		},
	}
	for _, tc := range tests {
		tempDir := t.TempDir()
		err := os.MkdirAll(filepath.Join(tempDir, constants.SourceConfig), 0777)
		if err != nil {
			t.Fatalf("could not create subdirs: %v", err)
		}

		path := filepath.Join(tempDir, constants.SourceConfig, MetadataFilename)
		err = os.WriteFile(path, []byte(tc.json), 0700)
		if err != nil {
			t.Fatalf("could not create temp image_metadata.json: %v", err)
		}

		cfg := &api.Config{
			WorkingSourceDir: tempDir,
		}
		data := GenerateOutputImageLabels(nil, cfg, "", "")
		if len(data) != tc.count {
			t.Fatalf("data from GenerateOutputImageLabels len %d when needed %d for %s", len(data), tc.count, tc.json)
		}
	}
}

func TestGenerateOutputImageLabels(t *testing.T) {
	cfg := &api.Config{
		BaseImage:    "python:3.9-slim",
		ArtifactPath: "app.py",
		Tag:          "hello:latest",
		Labels:       map[string]string{"team": "web", constants.KubernetesDisplayNameLabel: "hello"},
	}
	info := &git.SourceInfo{CommitID: "abc123", Ref: "main", Location: "https://example.com/hello.git"}
	base := "docker.io/library/python@sha256:0000000000000000000000000000000000000000000000000000000000000000"
	labels := GenerateOutputImageLabels(info, cfg, base, "sha256:1111")

	expected := map[string]string{
		constants.InputsDigestLabel:          "sha256:1111",
		constants.BaseImageLabel:             base,
		"io.openshift.r2i.build.image":       "python:3.9-slim",
		"io.openshift.r2i.build.commit.id":   "abc123",
		"io.openshift.r2i.build.commit.ref":  "main",
		constants.OCIBaseNameAnnotation:      "python:3.9-slim",
		constants.OCIBaseDigestAnnotation:    "sha256:0000000000000000000000000000000000000000000000000000000000000000",
		constants.KubernetesDisplayNameLabel: "hello",
		"team":                               "web",
	}
	for k, v := range expected {
		if labels[k] != v {
			t.Errorf("expected label %s=%q, got %q", k, v, labels[k])
		}
	}
}

func TestCustomLabelNamespace(t *testing.T) {
	cfg := &api.Config{BaseImage: "python:3.9", LabelNamespace: "com.example."}
	labels := GenerateOutputImageLabels(nil, cfg, "", "sha256:2222")
	if labels["com.example.build.inputs-digest"] != "sha256:2222" {
		t.Errorf("expected the inputs digest under the custom namespace, got %v", labels)
	}
}
