package validation

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/external"
	"github.com/openshift/recipe-to-image/pkg/docker"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

// ValidateConfig returns a list of error from validation.
func ValidateConfig(config *api.Config) []Error {
	allErrs := []Error{}
	if len(config.BaseImage) == 0 {
		allErrs = append(allErrs, NewFieldRequired("base"))
	} else if _, err := reference.ParseNormalizedNamed(config.BaseImage); err != nil {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("base", err.Error()))
	} else if !docker.HasTagOrDigest(config.BaseImage) {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("base", "must name an exact tag or digest"))
	}
	if len(config.Tag) > 0 {
		if _, err := reference.ParseNormalizedNamed(config.Tag); err != nil {
			allErrs = append(allErrs, NewFieldInvalidValueWithReason("tag", err.Error()))
		}
	} else if len(config.AsDockerfile) == 0 {
		allErrs = append(allErrs, NewFieldRequired("tag"))
	}
	if len(config.Source) == 0 {
		allErrs = append(allErrs, NewFieldRequired("source"))
	}
	if err := validateSourcePath(config.ManifestPath); err != nil {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("manifest", err.Error()))
	}
	if err := validateSourcePath(config.ArtifactPath); err != nil {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("artifact", err.Error()))
	}
	if config.Port < 1 || config.Port > 65535 {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("port", fmt.Sprintf("%d is not between 1 and 65535", config.Port)))
	}
	if !path.IsAbs(config.ImageWorkDir) {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("workdir", "must be an absolute path"))
	} else if hasLineBreak(config.ImageWorkDir) {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("workdir", "must not contain line breaks"))
	}
	if hasLineBreak(config.Description) {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("description", "must not contain line breaks"))
	}
	if hasLineBreak(config.DisplayName) {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("display-name", "must not contain line breaks"))
	}
	switch config.PullPolicy {
	case "", api.PullAlways, api.PullNever, api.PullIfNotPresent:
	default:
		allErrs = append(allErrs, NewFieldInvalidValue("pull-policy"))
	}
	if len(config.WithBuilder) > 0 && !external.ValidBuilderName(config.WithBuilder) {
		allErrs = append(allErrs, NewFieldInvalidValueWithReason("with-builder",
			fmt.Sprintf("must be one of %s", strings.Join(external.GetBuilders(), ", "))))
	}
	if !validateEnvironment(config.Environment) {
		allErrs = append(allErrs, NewFieldInvalidValue("env"))
	}
	if !validateLabels(config.Labels) {
		allErrs = append(allErrs, NewFieldInvalidValue("label"))
	}
	return allErrs
}

// Validate returns an InvalidRecipeError listing every problem of config,
// or nil when config is valid.
func Validate(config *api.Config) error {
	errs := ValidateConfig(config)
	if len(errs) == 0 {
		return nil
	}
	problems := make([]string, 0, len(errs))
	for _, e := range errs {
		problems = append(problems, e.Error())
	}
	return r2ierr.NewInvalidRecipeError(problems)
}

// validateSourcePath requires p to name a file inside the source directory.
func validateSourcePath(p string) error {
	if len(p) == 0 {
		return fmt.Errorf("must not be empty")
	}
	if hasLineBreak(p) {
		return fmt.Errorf("%q must not contain line breaks", p)
	}
	if filepath.IsAbs(p) || path.IsAbs(filepath.ToSlash(p)) {
		return fmt.Errorf("%q must be relative to the source directory", p)
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%q must name a file inside the source directory", p)
	}
	return nil
}

func validateEnvironment(env api.EnvironmentList) bool {
	for _, e := range env {
		if len(e.Name) == 0 || strings.ContainsAny(e.Name, " \t\r\n=") || hasLineBreak(e.Value) {
			return false
		}
	}
	return true
}

// validateLabels checks that labels have neither empty keys nor line breaks.
func validateLabels(labels map[string]string) bool {
	for k, v := range labels {
		if len(strings.TrimSpace(k)) == 0 || strings.ContainsAny(k, " \t\r\n") || hasLineBreak(v) {
			return false
		}
	}
	return true
}

// hasLineBreak reports whether s would end a Dockerfile instruction early.
func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
