package templates

// Recipe is the r2i.yaml written by "r2i create".
const Recipe = `# Build recipe for {{.ImageName}}.
# Run "r2i build" in this directory to produce the image.
base: {{.BaseImage}}
tag: {{.ImageName}}
manifest: requirements.txt
artifact: app.py
workdir: /app
port: {{.Port}}
cmd: [python, app.py]
# env:
#   - NAME=value
# labels:
#   io.k8s.description: "..."
`

// Requirements is the sample dependency manifest.
const Requirements = `# One requirement per line. Every entry is pinned against the package
# index before the dependency layer is built.
flask==2.0.3
`

// Application is the sample entry point.
const Application = `from flask import Flask

app = Flask(__name__)


@app.route("/")
def index():
    return "Hello from {{.ImageName}}\n"


if __name__ == "__main__":
    app.run(host="0.0.0.0", port={{.Port}})
`
