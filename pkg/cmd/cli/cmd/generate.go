package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/describe"
	"github.com/openshift/recipe-to-image/pkg/build/strategies/dockerfile"
	cmdutil "github.com/openshift/recipe-to-image/pkg/cmd"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// generateDockerfile generates a Dockerfile with the given configuration.
func generateDockerfile(cfg *api.Config) error {
	builder, err := dockerfile.New(cfg, fs.NewFileSystem(), nil)
	if err != nil {
		return err
	}
	result, err := builder.Build(cfg)
	if err != nil {
		return err
	}
	for _, message := range result.Messages {
		log.V(1).Info(message)
	}
	return nil
}

// NewCmdGenerate implements the r2i cli generate command.
func NewCmdGenerate(cfg *api.Config) *cobra.Command {
	recipe := ""
	generateCmd := &cobra.Command{
		Use:   "generate [<source>] <output file>",
		Short: "Generate a Dockerfile from a build recipe",
		Long: "Generate a single Dockerfile carrying the same steps as the layered build. " +
			"The sources and the pinned manifest are copied next to it, so its directory " +
			"can be used as the context of any builder supporting the format.",
		Example: `
# Generate a Dockerfile for the application in the current directory:
$ r2i generate --base python:3.9-slim out/Dockerfile

# Generate a Dockerfile from a remote repository:
$ r2i generate https://github.com/example/app out/Dockerfile
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.AsDockerfile = args[len(args)-1]
			if len(args) == 2 {
				cfg.Source = args[0]
			}
			if err := cmdutil.Complete(cmd, cfg, recipe); err != nil {
				return err
			}
			log.V(2).Infof("\n%s\n", describe.Config(cfg))
			return generateDockerfile(cfg)
		},
	}

	cmdutil.AddRecipeFileFlag(generateCmd, &recipe)
	cmdutil.AddRecipeFlags(generateCmd, cfg)
	generateCmd.Flags().BoolVarP(&(cfg.Quiet), "quiet", "q", false, "Operate quietly. Suppress all non-error output.")

	return generateCmd
}
