package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	"github.com/openshift/recipe-to-image/pkg/api/describe"
	"github.com/openshift/recipe-to-image/pkg/build/strategies"
	cmdutil "github.com/openshift/recipe-to-image/pkg/cmd"
	clicmd "github.com/openshift/recipe-to-image/pkg/cmd/cli/cmd"
	"github.com/openshift/recipe-to-image/pkg/config"
	"github.com/openshift/recipe-to-image/pkg/create"
	"github.com/openshift/recipe-to-image/pkg/docker"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	"github.com/openshift/recipe-to-image/pkg/run"
	"github.com/openshift/recipe-to-image/pkg/util/containermanager"
	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
	"github.com/openshift/recipe-to-image/pkg/version"
)

var log = utillog.StderrLog

func newCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version",
		Long:  "Display version",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Printf("r2i %v (%s, %s)\n", info, info.GoVersion, info.Platform)
		},
	}
}

func newCmdBuild(cfg *api.Config) *cobra.Command {
	useConfig := false
	recipe := ""

	buildCmd := &cobra.Command{
		Use:   "build [<source>] [<tag>]",
		Short: "Build a new image",
		Long: "Build a runnable image named <tag> from a base image, a dependency manifest " +
			"and one application artifact. The recipe is read from r2i.yaml when present.",
		Example: `
# Build the application in the current directory
$ r2i build --base python:3.9-slim . myapp:latest

# Build from a remote Git repository
$ r2i build --base python:3.9-slim --ref main https://github.com/example/app myapp:latest
`,
		Args: cobra.MaximumNArgs(2),
		Run: func(c *cobra.Command, args []string) {
			log.V(1).Infof("Running r2i version %q", version.Get())

			// If user specifies the arguments, then we override the stored ones
			if len(args) >= 1 {
				cfg.Source = args[0]
			}
			if len(args) >= 2 {
				cfg.Tag = args[1]
			}
			checkErr(cmdutil.Complete(c, cfg, recipe))

			// Persists the current command line options and config into the recipe
			if useConfig {
				checkErr(config.Save(cfg, recipe))
			}

			log.V(2).Infof("\n%s\n", describe.Config(cfg))

			var d docker.Docker
			if len(cfg.WithBuilder) == 0 && len(cfg.AsDockerfile) == 0 {
				var err error
				d, err = containermanager.Connect(cfg)
				checkErr(err)
				checkErr(d.CheckReachable())
			}

			builder, err := strategies.Strategy(cfg, fs.NewFileSystem(), d, nil)
			checkErr(err)
			result, err := builder.Build(cfg)
			if result != nil {
				log.V(3).Infof("\n%s\n", describe.Result(result))
			}
			checkErr(err)

			for _, message := range result.Messages {
				log.V(1).Info(message)
			}
			if !cfg.Quiet && len(result.ImageID) > 0 {
				fmt.Printf("%s\n", result.ImageID)
			}

			if cfg.RunImage {
				if d == nil {
					checkErr(errors.New("--run needs an image built by r2i, not a Dockerfile"))
				}
				checkErr(run.New(d).Run(cfg))
			}
		},
	}

	cmdutil.AddCommonFlags(buildCmd, cfg)
	cmdutil.AddRecipeFlags(buildCmd, cfg)
	cmdutil.AddRecipeFileFlag(buildCmd, &recipe)

	buildCmd.Flags().BoolVar(&(cfg.RunImage), "run", false, "Run resulting image as part of invocation of this command")
	buildCmd.Flags().BoolVar(&(cfg.Reuse), "reuse", false, "Return the existing image when <tag> was built from identical inputs")
	buildCmd.Flags().BoolVar(&(useConfig), "use-config", false, "Store command line options to the recipe file")
	buildCmd.Flags().StringVar(&(cfg.AsDockerfile), "as-dockerfile", "", "EXPERIMENTAL: Output a Dockerfile to this path instead of building a new image")
	buildCmd.Flags().StringVar(&(cfg.WithBuilder), "with-builder", "", "Build the generated Dockerfile with an external builder (buildah, docker or podman)")

	return buildCmd
}

func newCmdRun(cfg *api.Config) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <tag>",
		Short: "Run an image built by r2i",
		Long:  "Create and start a container from the image, publishing the port it declares, and stream its output.",
		Args:  cobra.ExactArgs(1),
		Run: func(c *cobra.Command, args []string) {
			cfg.Tag = args[0]
			d, err := containermanager.Connect(cfg)
			checkErr(err)
			checkErr(run.New(d).Run(cfg))
		},
	}
	runCmd.Flags().IntVar(&(cfg.Port), "port", 0, "Port to publish (default: the port the image declares)")
	runCmd.Flags().VarP(&(cfg.Environment), "env", "e", "Specify an single environment variable in NAME=VALUE format")
	runCmd.Flags().StringVar(&(cfg.ContainerManager), "container-manager", "docker", "Specify the container manager to use")
	return runCmd
}

func newCmdInspect(cfg *api.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <image>",
		Short: "Print the runtime metadata an image declares",
		Args:  cobra.ExactArgs(1),
		Run: func(c *cobra.Command, args []string) {
			d, err := containermanager.Connect(cfg)
			checkErr(err)
			img, err := d.InspectImage(args[0])
			checkErr(err)
			result := &api.Result{
				ImageID:  img.ID,
				Tag:      args[0],
				Metadata: docker.ImageMetadataFromImage(img, constants.PortLabel),
			}
			if img.Config != nil {
				result.BaseImageRef = img.Config.Labels[constants.BaseImageLabel]
				result.InputsDigest = img.Config.Labels[constants.InputsDigestLabel]
			}
			fmt.Print(describe.Result(result))
		},
	}
}

func newCmdCreate() *cobra.Command {
	var name string
	createCmd := &cobra.Command{
		Use:   "create <destination>",
		Short: "Bootstrap a new application with a build recipe",
		Long:  "Bootstrap a new application with an r2i.yaml recipe, a dependency manifest and an entry point inside the destination directory",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if len(name) == 0 {
				name = create.DefaultImageName(args[0])
			}
			checkErr(create.New(name, args[0]).Create())
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "Tag of the new application image, defaults to the destination directory name")
	return createCmd
}

// setupKlog makes --loglevel reflect in klog's -v flag
func setupKlog(flags *pflag.FlagSet) {
	from := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(from)
	if fflag := from.Lookup("v"); fflag != nil {
		level := pflag.PFlagFromGoFlag(fflag)
		level.Name = "loglevel"
		level.Shorthand = ""
		level.Usage = "Set the level of log output (0-5)"
		flags.AddFlag(level)
	}
	from.Set("logtostderr", "true")
}

func checkErr(err error) {
	if err == nil {
		return
	}
	var e r2ierr.Error
	if errors.As(err, &e) {
		log.Errorf("An error occurred: %v", e)
		log.Errorf("Suggested solution: %v", e.Suggestion)
		if e.Details != nil {
			log.V(1).Infof("Details: %v", e.Details)
		}
		log.Error("If the problem persists, run the build again with --loglevel=3 and attach its log when reporting it")
		klog.Flush()
		os.Exit(e.ErrorCode)
	}
	var ce r2ierr.ContainerErr
	if errors.As(err, &ce) {
		log.Errorf("An error occurred: %v", ce)
		klog.Flush()
		os.Exit(ce.ExitCode)
	}
	log.Errorf("An error occurred: %v", err)
	klog.Flush()
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	cfg := &api.Config{}
	r2iCmd := &cobra.Command{
		Use: filepath.Base(os.Args[0]),
		Long: "Recipe-to-image (r2i) is a tool for building runnable container images from a build recipe.\n\n" +
			"A recipe names a base image, a dependency manifest and one application artifact. The\n" +
			"dependencies are pinned against the package index before any layer is built.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cfg.DockerConfig = docker.GetDefaultDockerConfig()
	r2iCmd.PersistentFlags().StringVarP(&(cfg.DockerConfig.Endpoint), "url", "U", cfg.DockerConfig.Endpoint, "Set the url of the docker socket to use")
	r2iCmd.PersistentFlags().StringVar(&(cfg.DockerConfig.CertFile), "cert", cfg.DockerConfig.CertFile, "Set the path of the docker TLS certificate file")
	r2iCmd.PersistentFlags().StringVar(&(cfg.DockerConfig.KeyFile), "key", cfg.DockerConfig.KeyFile, "Set the path of the docker TLS key file")
	r2iCmd.PersistentFlags().StringVar(&(cfg.DockerConfig.CAFile), "ca", cfg.DockerConfig.CAFile, "Set the path of the docker TLS ca file")
	r2iCmd.PersistentFlags().BoolVar(&(cfg.DockerConfig.UseTLS), "tls", cfg.DockerConfig.UseTLS, "Use TLS to connect to docker; implied by --tlsverify")
	r2iCmd.PersistentFlags().BoolVar(&(cfg.DockerConfig.TLSVerify), "tlsverify", cfg.DockerConfig.TLSVerify, "Use TLS to connect to docker and verify the remote")
	r2iCmd.AddCommand(newCmdVersion())
	r2iCmd.AddCommand(newCmdBuild(cfg))
	r2iCmd.AddCommand(clicmd.NewCmdGenerate(cfg))
	r2iCmd.AddCommand(newCmdRun(cfg))
	r2iCmd.AddCommand(newCmdInspect(cfg))
	r2iCmd.AddCommand(newCmdCreate())
	setupKlog(r2iCmd.PersistentFlags())
	return r2iCmd
}

func main() {
	defer klog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
