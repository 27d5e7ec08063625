// Package buildah implements docker.Docker interface in order to support buildah as an alternative
// container engine for r2i. It consumes buildah through "os/exec" calls, composing command-line
// with arguments in order to execute the layered build.
package buildah
