// Package resolver pins every requirement of a dependency manifest to one
// exact version available in a package index. Resolution happens before any
// image layer is built, so an unsatisfiable manifest never reaches the
// install step.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
	"github.com/openshift/recipe-to-image/pkg/manifest"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// Pin is a requirement resolved to an exact version.
type Pin struct {
	Requirement manifest.Requirement
	Version     string
}

// String renders the pin in requirements format. Direct references are
// kept as written.
func (p Pin) String() string {
	r := p.Requirement
	if r.IsDirect() {
		return r.Raw
	}
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	b.WriteString("==" + p.Version)
	if len(r.Marker) > 0 {
		b.WriteString("; " + r.Marker)
	}
	return b.String()
}

// Lock is the ordered set of pins for a manifest.
type Lock struct {
	// Options are the manifest option lines carried into the lock.
	Options []string
	Pins    []Pin
}

// Lines returns the lock in requirements format, options first.
func (l *Lock) Lines() []string {
	lines := make([]string, 0, len(l.Options)+len(l.Pins))
	lines = append(lines, l.Options...)
	for _, p := range l.Pins {
		lines = append(lines, p.String())
	}
	return lines
}

// Bytes returns the lock file content.
func (l *Lock) Bytes() []byte {
	lines := l.Lines()
	if len(lines) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Resolver resolves manifests against an Index.
type Resolver struct {
	Index Index
}

// New returns a Resolver over index.
func New(index Index) *Resolver {
	return &Resolver{Index: index}
}

// Resolve pins every requirement of m. Every failing entry is reported in a
// single DependencyResolutionError.
func (r *Resolver) Resolve(ctx context.Context, m *manifest.Manifest) (*Lock, error) {
	lock := &Lock{}
	if len(m.IndexURL) > 0 {
		lock.Options = append(lock.Options, "--index-url "+m.IndexURL)
	}
	for _, u := range m.ExtraIndexURLs {
		lock.Options = append(lock.Options, "--extra-index-url "+u)
	}
	lock.Options = append(lock.Options, m.Options...)
	pre := allowsPrereleases(m.Options)

	var (
		failed []string
		causes []error
		seen   = map[string]int{}
	)
	for _, req := range m.Requirements {
		if req.IsDirect() {
			log.V(3).Infof("Keeping direct reference %q", req.Raw)
			lock.Pins = append(lock.Pins, Pin{Requirement: req})
			continue
		}
		if line, ok := seen[req.Key()]; ok {
			failed = append(failed, req.Raw)
			causes = append(causes, fmt.Errorf("%s: duplicate requirement, first given on line %d", req.Raw, line))
			continue
		}
		seen[req.Key()] = req.Line

		v, err := r.resolveOne(ctx, req, pre)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed = append(failed, req.Raw)
			causes = append(causes, fmt.Errorf("%s: %w", req.Raw, err))
			continue
		}
		log.V(2).Infof("Resolved %s to %s", req.Raw, v)
		lock.Pins = append(lock.Pins, Pin{Requirement: req, Version: v})
	}

	if len(failed) > 0 {
		return nil, r2ierr.NewDependencyResolutionError(failed, errors.Join(causes...))
	}
	return lock, nil
}

// allowsPrereleases reports whether the manifest carries a --pre option.
func allowsPrereleases(options []string) bool {
	for _, o := range options {
		if o == "--pre" {
			return true
		}
	}
	return false
}

func (r *Resolver) resolveOne(ctx context.Context, req manifest.Requirement, pre bool) (string, error) {
	var clauses []*clause
	wantsPre, exact := pre, false
	for _, text := range req.Clauses() {
		c, err := parseClause(text)
		if err != nil {
			return "", err
		}
		wantsPre = wantsPre || c.pre
		exact = exact || len(c.identity) > 0 || (c.equal != nil && !c.negate)
		clauses = append(clauses, c)
	}

	releases, err := r.Index.Releases(ctx, req.Name)
	if err != nil {
		return "", err
	}

	var best *version
	for _, rel := range releases {
		if rel.Yanked && !exact {
			continue
		}
		v, err := parseVersion(rel.Version)
		if err != nil {
			log.V(5).Infof("Skipping %s %s: %v", req.Name, rel.Version, err)
			continue
		}
		if v.pre && !wantsPre {
			continue
		}
		if !satisfies(v, clauses) {
			continue
		}
		if best == nil || best.less(v) {
			best = v
		}
	}
	if best == nil {
		if len(releases) == 0 {
			return "", errors.New("no releases available")
		}
		return "", fmt.Errorf("no release matches %q", req.Specifier)
	}
	return best.raw, nil
}

func satisfies(v *version, clauses []*clause) bool {
	for _, c := range clauses {
		if !c.matches(v) {
			return false
		}
	}
	return true
}
