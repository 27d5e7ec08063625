package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	"github.com/openshift/recipe-to-image/pkg/api/validation"
	"github.com/openshift/recipe-to-image/pkg/config"
)

// AddCommonFlags adds the flags shared by the build and generate commands.
func AddCommonFlags(c *cobra.Command, cfg *api.Config) {
	c.Flags().BoolVarP(&(cfg.Quiet), "quiet", "q", false,
		"Operate quietly. Suppress all non-error output.")
	c.Flags().VarP(&(cfg.PullPolicy), "pull-policy", "p",
		"Specify when to pull the base image (always, never or if-not-present)")
	c.Flags().BoolVar(&(cfg.PreserveWorkingDir), "save-temp-dir", false,
		"Save the temporary directory used by r2i instead of deleting it")
	c.Flags().StringVar(&(cfg.ContainerManager), constants.ContainerManager, constants.DockerContainerManager,
		"Specify the container manager to use (docker or buildah)")
}

// AddRecipeFlags adds the flags describing the build recipe.
func AddRecipeFlags(c *cobra.Command, cfg *api.Config) {
	c.Flags().StringVar(&(cfg.BaseImage), "base", "",
		"Base runtime image, as name:tag or name@digest")
	c.Flags().StringVar(&(cfg.ManifestPath), "manifest", constants.DefaultManifest,
		"Dependency manifest, relative to the source directory")
	c.Flags().StringVar(&(cfg.ArtifactPath), "artifact", constants.DefaultArtifact,
		"Application entry point, relative to the source directory")
	c.Flags().StringVar(&(cfg.ImageWorkDir), "workdir", constants.DefaultImageWorkDir,
		"Working directory of the image")
	c.Flags().IntVar(&(cfg.Port), "port", constants.DefaultPort,
		"Port declared as exposed by the image")
	c.Flags().Var(NewCommandValue(&cfg.Command), "cmd",
		`Startup command, as a JSON array or space separated words (default: python <artifact>)`)
	c.Flags().VarP(&(cfg.Environment), "env", "e",
		"Specify an single environment variable in NAME=VALUE format")
	c.Flags().StringVarP(&(cfg.EnvironmentFile), "environment-file", "E", "",
		"Specify the path to the file with environment")
	c.Flags().Var(NewLabelsValue(&cfg.Labels), "label",
		"Specify an single label in NAME=VALUE format to apply to the output image")
	c.Flags().StringVar(&(cfg.IndexURL), "index-url", config.DefaultIndexURL(),
		"Package index the manifest is resolved against (env "+constants.IndexURLEnvironment+")")
	c.Flags().BoolVar(&(cfg.SkipResolve), "no-resolve", false,
		"Install the manifest as written instead of pinning it against the index")
	c.Flags().Var(NewCommandValue(&cfg.InstallCommand), "install-cmd",
		"Command installing the manifest; "+constants.ManifestPlaceholder+" is replaced by the manifest file")
	c.Flags().StringVarP(&(cfg.Ref), "ref", "r", "",
		"Specify a ref to check-out")
	c.Flags().StringVar(&(cfg.ContextDir), "context-dir", "",
		"Specify the sub-directory inside the repository with the application sources")
	c.Flags().StringVar(&(cfg.LabelNamespace), "label-namespace", constants.DefaultNamespace,
		"Namespace of the build labels")
	c.Flags().StringVar(&(cfg.DisplayName), "display-name", "",
		"Display name of the output image")
	c.Flags().StringVar(&(cfg.Description), "description", "",
		"Description of the output image")
}

// RestoreRecipe applies the recipe file at path to cfg. Flags given on the
// command line keep their values. A missing file is not an error unless
// required is set.
func RestoreRecipe(c *cobra.Command, cfg *api.Config, path string, required bool) error {
	r, err := config.Load(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return r.Apply(cfg, func(flag string) bool { return c.Flags().Changed(flag) })
}

// AddRecipeFileFlag adds the --recipe flag naming the recipe file.
func AddRecipeFileFlag(c *cobra.Command, path *string) {
	c.Flags().StringVarP(path, "recipe", "f", constants.RecipeFile,
		"Recipe file; values given as flags take precedence")
}

// Complete fills cfg from the recipe file at path and the defaults, then
// validates it. The recipe file is required only when --recipe was given.
func Complete(c *cobra.Command, cfg *api.Config, path string) error {
	required := c.Flags().Lookup("recipe") != nil && c.Flags().Changed("recipe")
	if err := RestoreRecipe(c, cfg, path, required); err != nil {
		return err
	}
	if len(cfg.Source) == 0 {
		cfg.Source = "."
	}
	config.ApplyDefaults(cfg)
	return validation.Validate(cfg)
}

// LabelsValue collects NAME=VALUE labels into a map.
type LabelsValue struct {
	labels *map[string]string
}

// NewLabelsValue returns a pflag.Value filling labels.
func NewLabelsValue(labels *map[string]string) *LabelsValue {
	return &LabelsValue{labels: labels}
}

// Set implements the Set() function of pflags.Value interface.
func (l *LabelsValue) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || len(strings.TrimSpace(parts[0])) == 0 {
		return fmt.Errorf("invalid label format %q, must be NAME=VALUE", value)
	}
	if *l.labels == nil {
		*l.labels = map[string]string{}
	}
	(*l.labels)[strings.TrimSpace(parts[0])] = parts[1]
	return nil
}

// String returns the labels in NAME=VALUE form, sorted by name.
func (l *LabelsValue) String() string {
	if l.labels == nil {
		return ""
	}
	pairs := make([]string, 0, len(*l.labels))
	for k, v := range *l.labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// Type implements the Type() function of pflags.Value interface.
func (l *LabelsValue) Type() string {
	return "string"
}

// CommandValue parses a command given either as a JSON array or as space
// separated words.
type CommandValue struct {
	command *[]string
}

// NewCommandValue returns a pflag.Value filling command.
func NewCommandValue(command *[]string) *CommandValue {
	return &CommandValue{command: command}
}

// Set implements the Set() function of pflags.Value interface.
func (c *CommandValue) Set(value string) error {
	value = strings.TrimSpace(value)
	var words []string
	if strings.HasPrefix(value, "[") {
		if err := json.Unmarshal([]byte(value), &words); err != nil {
			return fmt.Errorf("invalid command %q: %v", value, err)
		}
	} else {
		words = strings.Fields(value)
	}
	if len(words) == 0 {
		return fmt.Errorf("the command must not be empty")
	}
	*c.command = words
	return nil
}

// String returns the command as a JSON array.
func (c *CommandValue) String() string {
	if c.command == nil || len(*c.command) == 0 {
		return ""
	}
	data, _ := json.Marshal(*c.command)
	return string(data)
}

// Type implements the Type() function of pflags.Value interface.
func (c *CommandValue) Type() string {
	return "command"
}
