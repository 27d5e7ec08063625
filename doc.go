// Recipe-to-image (`r2i`) is a tool for building runnable container images from a build
// recipe. `r2i` layers a dependency manifest, pinned against a package index, and a single
// application artifact onto a base image, and declares the working directory, port and
// startup command the resulting image is run with.
package recipetoimage
