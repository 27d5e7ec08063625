// Package create scaffolds a new application directory with a build recipe.
package create

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/openshift/recipe-to-image/pkg/api/constants"
	"github.com/openshift/recipe-to-image/pkg/create/templates"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// DefaultBaseImage is the base image named in a new recipe.
const DefaultBaseImage = "python:3.9-slim"

var invalidNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// DefaultImageName derives the tag of a new application from the name of
// its directory.
func DefaultImageName(dst string) string {
	if abs, err := filepath.Abs(dst); err == nil {
		dst = abs
	}
	name := invalidNameChars.ReplaceAllString(strings.ToLower(filepath.Base(dst)), "-")
	name = strings.Trim(name, "-._")
	if len(name) == 0 {
		name = "app"
	}
	return name + ":latest"
}

// Bootstrap defines parameters for the template processing
type Bootstrap struct {
	DestinationDir string
	ImageName      string
	BaseImage      string
	Port           int
}

// New returns a new bootstrap for given image name and destination
// directory.
func New(name, dst string) *Bootstrap {
	return &Bootstrap{
		DestinationDir: dst,
		ImageName:      name,
		BaseImage:      DefaultBaseImage,
		Port:           constants.DefaultPort,
	}
}

// AddRecipe creates the r2i.yaml recipe.
func (b *Bootstrap) AddRecipe() error {
	return b.process(templates.Recipe, constants.RecipeFile, 0644)
}

// AddManifest creates a sample dependency manifest.
func (b *Bootstrap) AddManifest() error {
	return b.process(templates.Requirements, constants.DefaultManifest, 0644)
}

// AddApplication creates a sample entry point.
func (b *Bootstrap) AddApplication() error {
	return b.process(templates.Application, constants.DefaultArtifact, 0644)
}

// Create writes every file of a new application. Existing files are not
// overwritten.
func (b *Bootstrap) Create() error {
	for _, add := range []func() error{b.AddRecipe, b.AddManifest, b.AddApplication} {
		if err := add(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bootstrap) process(t string, dst string, perm os.FileMode) error {
	tpl := template.Must(template.New(dst).Parse(t))

	if err := os.MkdirAll(b.DestinationDir, 0700); err != nil {
		return err
	}
	path := filepath.Join(b.DestinationDir, dst)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if os.IsExist(err) {
		log.Warningf("%s already exists, skipping", path)
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	log.V(1).Infof("Writing %s", path)
	return tpl.Execute(f, b)
}
