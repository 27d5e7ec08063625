package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/openshift/recipe-to-image/pkg/api"
	"github.com/openshift/recipe-to-image/pkg/api/constants"
	"github.com/openshift/recipe-to-image/pkg/scm/git"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

const (
	// MetadataFilename is the name of the config file defining additional labels to set on the output image.
	MetadataFilename = "image_metadata.json"
)

// GenerateOutputImageLabels generate the labels based on the r2i Config,
// the pinned base image, the inputs digest and source repository
// informations. User supplied labels are applied last and win.
func GenerateOutputImageLabels(info *git.SourceInfo, config *api.Config, baseRef, inputsDigest string) map[string]string {
	labels := map[string]string{}
	namespace := constants.DefaultNamespace
	if len(config.LabelNamespace) > 0 {
		namespace = config.LabelNamespace
	}

	labels = GenerateLabelsFromConfig(labels, config, namespace)
	labels = GenerateLabelsFromSourceInfo(labels, info, namespace)

	addBuildLabel(labels, "base-image", baseRef, namespace)
	addBuildLabel(labels, "inputs-digest", inputsDigest, namespace)
	if len(baseRef) > 0 {
		labels[constants.OCIBaseNameAnnotation] = config.BaseImage
		if d := digestOf(baseRef); len(d) > 0 {
			labels[constants.OCIBaseDigestAnnotation] = d
		}
	}

	if data, err := ProcessImageMetadataFile(filepath.Join(config.WorkingSourceDir, constants.SourceConfig)); err == nil {
		for k, v := range data {
			labels[k] = v
		}
	}
	for k, v := range config.Labels {
		labels[k] = v
	}
	return labels
}

// GenerateLabelsFromConfig generate the labels based on build r2i Config
func GenerateLabelsFromConfig(labels map[string]string, config *api.Config, namespace string) map[string]string {
	if len(config.Description) > 0 {
		labels[constants.KubernetesDescriptionLabel] = config.Description
	}

	if len(config.DisplayName) > 0 {
		labels[constants.KubernetesDisplayNameLabel] = config.DisplayName
	} else if len(config.Tag) > 0 {
		labels[constants.KubernetesDisplayNameLabel] = config.Tag
	}

	addBuildLabel(labels, "image", config.BaseImage, namespace)
	addBuildLabel(labels, "artifact", filepath.ToSlash(config.ArtifactPath), namespace)
	if config.Port > 0 {
		addBuildLabel(labels, "port", strconv.Itoa(config.Port), namespace)
	}
	return labels
}

// GenerateLabelsFromSourceInfo generate the labels based on the source repository
// informations.
func GenerateLabelsFromSourceInfo(labels map[string]string, info *git.SourceInfo, namespace string) map[string]string {
	if info == nil {
		log.V(3).Info("Unable to fetch source information, the output image labels will not be set")
		return labels
	}

	if len(info.AuthorName) > 0 {
		author := fmt.Sprintf("%s <%s>", info.AuthorName, info.AuthorEmail)
		addBuildLabel(labels, "commit.author", author, namespace)
	}

	addBuildLabel(labels, "commit.date", info.Date, namespace)
	addBuildLabel(labels, "commit.id", info.CommitID, namespace)
	addBuildLabel(labels, "commit.ref", info.Ref, namespace)
	addBuildLabel(labels, "commit.message", info.Message, namespace)
	addBuildLabel(labels, "source-location", info.Location, namespace)
	addBuildLabel(labels, "source-context-dir", info.ContextDir, namespace)
	return labels
}

// BuildLabel returns the key of the build label named key in the label
// namespace of config.
func BuildLabel(config *api.Config, key string) string {
	namespace := constants.DefaultNamespace
	if len(config.LabelNamespace) > 0 {
		namespace = config.LabelNamespace
	}
	return namespace + "build." + key
}

// addBuildLabel adds a new "*.build.*" label into map when the
// value of this label is not empty
func addBuildLabel(to map[string]string, key, value, namespace string) {
	if len(value) == 0 {
		return
	}
	to[namespace+"build."+key] = value
}

// digestOf returns the digest part of a name@digest reference.
func digestOf(ref string) string {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '@' {
			return ref[i+1:]
		}
	}
	return ""
}

// ProcessImageMetadataFile returns a map of the labels to set on the output
// image. The file holds {"labels": [{"key": "value"}, ...]}.
func ProcessImageMetadataFile(path string) (map[string]string, error) {
	filePath := filepath.Join(path, MetadataFilename)
	str, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("unable to open file '%s' : %v", filePath, err)
	}
	log.V(3).Infof("new Labels File contents : \n%s\n", str)

	var data struct {
		Labels []map[string]string `json:"labels"`
	}
	if err = json.Unmarshal(str, &data); err != nil {
		return nil, fmt.Errorf("JSON Unmarshal Error with '%s' file : %v", MetadataFilename, err)
	}
	result := map[string]string{}
	for _, l := range data.Labels {
		for k, v := range l {
			result[k] = v
		}
	}
	return result, nil
}
