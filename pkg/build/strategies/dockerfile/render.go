package dockerfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

// Stage Dockerfiles of the layered build. Every stage starts from the image
// produced by the previous one, so each of them adds exactly one concern.

// File is a build context file copied into the working directory.
type File struct {
	// Source is the path in the build context.
	Source string
	// Target is the path relative to the working directory.
	Target string
}

// DependenciesStage installs the dependency manifest file on top of from.
// The RUN layer is only committed when the install command succeeds.
func DependenciesStage(from, workDir string, manifest File, install []string) []byte {
	buffer := bytes.Buffer{}
	writeFrom(&buffer, from)
	writeWorkdir(&buffer, workDir)
	writeCopy(&buffer, manifest, workDir)
	writeRun(&buffer, install)
	return buffer.Bytes()
}

// ArtifactStage places the application artifact into the working directory.
func ArtifactStage(from, workDir string, artifact File) []byte {
	buffer := bytes.Buffer{}
	writeFrom(&buffer, from)
	writeCopy(&buffer, artifact, workDir)
	return buffer.Bytes()
}

// MetadataStage declares the runtime metadata of the image. It adds no
// file system changes.
func MetadataStage(from string, m Metadata) []byte {
	buffer := bytes.Buffer{}
	writeFrom(&buffer, from)
	writeMetadata(&buffer, m)
	return buffer.Bytes()
}

// Metadata is the declarative part of the output image.
type Metadata struct {
	WorkDir string
	Env     []string
	Labels  map[string]string
	Port    int
	Command []string
}

// Validate rejects line breaks in the values rendered as quoted words.
// Dockerfile words cannot hold them.
func (m Metadata) Validate() error {
	var problems []string
	if hasLineBreak(m.WorkDir) {
		problems = append(problems, "the working directory must not contain line breaks")
	}
	for _, e := range m.Env {
		if name, value, _ := strings.Cut(e, "="); hasLineBreak(name) || hasLineBreak(value) {
			problems = append(problems, fmt.Sprintf("environment variable %q must not contain line breaks", name))
		}
	}
	keys := make([]string, 0, len(m.Labels))
	for k := range m.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if hasLineBreak(k) || hasLineBreak(m.Labels[k]) {
			problems = append(problems, fmt.Sprintf("label %q must not contain line breaks", k))
		}
	}
	if len(problems) > 0 {
		return r2ierr.NewInvalidRecipeError(problems)
	}
	return nil
}

func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

// Complete renders the recipe as a single Dockerfile, in the order base,
// dependencies, artifact, metadata.
func Complete(base string, manifest, artifact File, install []string, m Metadata) []byte {
	buffer := bytes.Buffer{}
	writeFrom(&buffer, base)
	writeWorkdir(&buffer, m.WorkDir)
	writeCopy(&buffer, manifest, m.WorkDir)
	writeRun(&buffer, install)
	writeCopy(&buffer, artifact, m.WorkDir)
	m.WorkDir = ""
	writeMetadata(&buffer, m)
	return buffer.Bytes()
}

func writeMetadata(buffer *bytes.Buffer, m Metadata) {
	if len(m.WorkDir) > 0 {
		writeWorkdir(buffer, m.WorkDir)
	}
	for _, e := range m.Env {
		name, value, _ := strings.Cut(e, "=")
		buffer.WriteString(fmt.Sprintf("ENV %s=%s\n", name, quote(value)))
	}
	keys := make([]string, 0, len(m.Labels))
	for k := range m.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buffer.WriteString(fmt.Sprintf("LABEL %s=%s\n", quote(k), quote(m.Labels[k])))
	}
	if m.Port > 0 {
		buffer.WriteString(fmt.Sprintf("EXPOSE %d/tcp\n", m.Port))
	}
	if len(m.Command) > 0 {
		buffer.WriteString(fmt.Sprintf("CMD %s\n", execForm(m.Command)))
	}
}

func writeFrom(buffer *bytes.Buffer, from string) {
	buffer.WriteString(fmt.Sprintf("FROM %s\n", from))
}

func writeWorkdir(buffer *bytes.Buffer, dir string) {
	buffer.WriteString(fmt.Sprintf("WORKDIR %s\n", quote(dir)))
}

func writeCopy(buffer *bytes.Buffer, f File, workDir string) {
	buffer.WriteString(fmt.Sprintf("COPY %s\n", execForm([]string{path.Clean(f.Source), path.Join(workDir, f.Target)})))
}

func writeRun(buffer *bytes.Buffer, cmd []string) {
	buffer.WriteString(fmt.Sprintf("RUN %s\n", execForm(cmd)))
}

// execForm renders cmd as a JSON array so that no shell is involved.
func execForm(cmd []string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cmd); err != nil {
		return "[]"
	}
	return strings.TrimSpace(b.String())
}

// quote renders s as a double quoted Dockerfile word. Backslashes, quotes
// and dollar signs are escaped so that no variable expansion happens.
// Values must not hold line breaks; callers reject them before rendering.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '$':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
