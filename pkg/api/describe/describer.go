package describe

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/util"
)

// Config returns the Config object in nice readable, tabbed format.
func Config(config *api.Config) string {
	out, err := tabbedString(func(out io.Writer) error {
		if len(config.DisplayName) > 0 {
			fmt.Fprintf(out, "Application Name:\t%s\n", config.DisplayName)
		}
		if len(config.Description) > 0 {
			fmt.Fprintf(out, "Description:\t%s\n", config.Description)
		}
		fmt.Fprintf(out, "Base Image:\t%s\n", config.BaseImage)
		fmt.Fprintf(out, "Base Image Pull Policy:\t%s\n", config.PullPolicy.String())
		fmt.Fprintf(out, "Source:\t%s\n", config.Source)
		if len(config.Ref) > 0 {
			fmt.Fprintf(out, "Source Ref:\t%s\n", config.Ref)
		}
		if len(config.ContextDir) > 0 {
			fmt.Fprintf(out, "Context Directory:\t%s\n", config.ContextDir)
		}
		fmt.Fprintf(out, "Dependency Manifest:\t%s\n", config.ManifestPath)
		fmt.Fprintf(out, "Application Artifact:\t%s\n", config.ArtifactPath)
		fmt.Fprintf(out, "Image Working Directory:\t%s\n", config.ImageWorkDir)
		fmt.Fprintf(out, "Exposed Port:\t%d\n", config.Port)
		fmt.Fprintf(out, "Command:\t%s\n", strings.Join(config.Command, " "))
		fmt.Fprintf(out, "Output Image Tag:\t%s\n", config.Tag)
		printEnv(out, config.Environment)
		if len(config.EnvironmentFile) > 0 {
			fmt.Fprintf(out, "Environment File:\t%s\n", config.EnvironmentFile)
		}
		printLabels(out, config.Labels)
		fmt.Fprintf(out, "Install Command:\t%s\n", strings.Join(config.InstallCommand, " "))
		if config.SkipResolve {
			fmt.Fprintf(out, "Dependency Resolution:\t%s\n", printBool(false))
		} else {
			fmt.Fprintf(out, "Package Index:\t%s\n", config.IndexURL)
		}
		fmt.Fprintf(out, "Reuse Existing Image:\t%s\n", printBool(config.Reuse))
		fmt.Fprintf(out, "Quiet:\t%s\n", printBool(config.Quiet))
		if len(config.ContainerManager) > 0 {
			fmt.Fprintf(out, "Container Manager:\t%s\n", config.ContainerManager)
		}
		if len(config.WithBuilder) > 0 {
			fmt.Fprintf(out, "External Builder:\t%s\n", config.WithBuilder)
		}
		if len(config.WorkingDir) > 0 {
			fmt.Fprintf(out, "Workdir:\t%s\n", config.WorkingDir)
		}
		if config.DockerConfig != nil {
			fmt.Fprintf(out, "Docker Endpoint:\t%s\n", config.DockerConfig.Endpoint)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("error: %v", err)
	}
	return out
}

// Result returns the declared metadata and pipeline details of a build
// result in a readable, tabbed format.
func Result(result *api.Result) string {
	out, err := tabbedString(func(out io.Writer) error {
		fmt.Fprintf(out, "Image ID:\t%s\n", result.ImageID)
		if len(result.Tag) > 0 {
			fmt.Fprintf(out, "Tag:\t%s\n", result.Tag)
		}
		if len(result.BaseImageRef) > 0 {
			fmt.Fprintf(out, "Base Image:\t%s\n", result.BaseImageRef)
		}
		if len(result.InputsDigest) > 0 {
			fmt.Fprintf(out, "Inputs Digest:\t%s\n", result.InputsDigest)
		}
		if len(result.Phase) > 0 {
			fmt.Fprintf(out, "Phase:\t%s\n", result.Phase)
		}
		md := result.Metadata
		fmt.Fprintf(out, "Working Directory:\t%s\n", md.WorkingDir)
		fmt.Fprintf(out, "Exposed Ports:\t%s\n", strings.Join(md.ExposedPorts, ","))
		fmt.Fprintf(out, "Command:\t%q\n", md.Command)
		if len(md.Env) > 0 {
			fmt.Fprintf(out, "Environment:\t%s\n", strings.Join(util.StripProxyCredentials(md.Env), ","))
		}
		printLabels(out, md.Labels)
		for _, l := range result.Layers {
			fmt.Fprintf(out, "Layer %s:\t%s\n", l.Stage, l.ImageID)
		}
		for _, s := range result.BuildInfo.Stages {
			fmt.Fprintf(out, "Stage %s:\t%v\n", s.StageName, s.Duration)
		}
		if len(result.BuildInfo.FailureReason.Reason) > 0 {
			fmt.Fprintf(out, "Failure:\t%s: %s\n", result.BuildInfo.FailureReason.Reason, result.BuildInfo.FailureReason.Message)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("error: %v", err)
	}
	return out
}

func printEnv(out io.Writer, env api.EnvironmentList) {
	if len(env) == 0 {
		return
	}
	fmt.Fprintf(out, "Environment:\t%s\n", strings.Join(util.StripProxyCredentials(env.AsBinds()), ","))
}

func printLabels(out io.Writer, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, fmt.Sprintf("%s=%s", k, labels[k]))
	}
	fmt.Fprintf(out, "Labels:\t%s\n", strings.Join(result, ","))
}

func printBool(b bool) string {
	if b {
		return "\033[1menabled\033[0m"
	}
	return "disabled"
}

func tabbedString(f func(io.Writer) error) (string, error) {
	out := new(tabwriter.Writer)
	buf := &bytes.Buffer{}
	out.Init(buf, 0, 8, 1, '\t', 0)

	err := f(out)
	if err != nil {
		return "", err
	}

	out.Flush()
	return buf.String(), nil
}
