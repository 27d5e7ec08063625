// Package manifest parses dependency manifests in the requirements file
// format: one requirement per logical line, with optional extras, version
// specifiers and environment markers.
package manifest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openshift/recipe-to-image/pkg/util/fs"
	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

var (
	nameRegex      = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9]|[A-Za-z0-9])`)
	normalizeRegex = regexp.MustCompile(`[-_.]+`)
	clauseRegex    = regexp.MustCompile(`^(~=|===|==|!=|<=|>=|<|>)\s*([^\s,;]+)$`)
	urlRegex       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// Requirement is a single manifest entry.
type Requirement struct {
	// Name is the package name as written.
	Name string
	// Extras are the optional features requested in brackets.
	Extras []string
	// Specifier is the comma separated list of version clauses, without
	// surrounding whitespace. Empty means any version.
	Specifier string
	// Marker is the environment marker following ';', kept verbatim.
	Marker string
	// URL is set for direct references ("name @ url" or a bare URL).
	URL string
	// Line is the 1-based line the entry starts on.
	Line int
	// Raw is the entry as written, comments and per-requirement options
	// removed.
	Raw string
}

// Key returns the normalized package name used for index lookups.
func (r Requirement) Key() string {
	return NormalizeName(r.Name)
}

// IsDirect reports whether the requirement names a direct URL and so cannot
// be looked up in a package index.
func (r Requirement) IsDirect() bool {
	return len(r.URL) > 0
}

// Clauses returns the individual version clauses of the specifier.
func (r Requirement) Clauses() []string {
	if len(r.Specifier) == 0 {
		return nil
	}
	parts := strings.Split(r.Specifier, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		result = append(result, strings.TrimSpace(p))
	}
	return result
}

// String returns the requirement as written.
func (r Requirement) String() string {
	return r.Raw
}

// Manifest is a parsed dependency manifest. Requirements keep the order of
// the file.
type Manifest struct {
	Requirements []Requirement
	// IndexURL is set by an --index-url option line.
	IndexURL string
	// ExtraIndexURLs are set by --extra-index-url option lines.
	ExtraIndexURLs []string
	// Options holds the other global option lines, verbatim.
	Options []string
	// Data is the raw content of the manifest.
	Data []byte
}

// ParseError lists every entry of a manifest that could not be parsed.
type ParseError struct {
	Problems []Problem
}

// Problem is one unparseable manifest entry.
type Problem struct {
	Line   int
	Entry  string
	Reason string
}

func (e *ParseError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, fmt.Sprintf("line %d: %q: %s", p.Line, p.Entry, p.Reason))
	}
	return "invalid dependency manifest: " + strings.Join(msgs, "; ")
}

// Entries returns the offending entries as written.
func (e *ParseError) Entries() []string {
	result := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		result = append(result, p.Entry)
	}
	return result
}

// NormalizeName returns the canonical form of a package name: lower case
// with runs of '-', '_' and '.' replaced by a single '-'.
func NormalizeName(name string) string {
	return strings.ToLower(normalizeRegex.ReplaceAllString(name, "-"))
}

// ParseFile reads and parses the manifest at path.
func ParseFile(fs fs.FileSystem, path string) (*Manifest, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	log.V(4).Infof("Parsing dependency manifest %s", filepath.Base(path))
	return Parse(data)
}

// Parse parses manifest content. All problems are reported together in a
// *ParseError.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{Data: data}
	perr := &ParseError{}

	for _, l := range logicalLines(string(data)) {
		text := stripComment(l.text)
		if len(text) == 0 {
			continue
		}
		if strings.HasPrefix(text, "-") {
			if reason := m.parseOption(text); len(reason) > 0 {
				perr.Problems = append(perr.Problems, Problem{Line: l.number, Entry: text, Reason: reason})
			}
			continue
		}
		req, reason := parseRequirement(text)
		if len(reason) > 0 {
			perr.Problems = append(perr.Problems, Problem{Line: l.number, Entry: text, Reason: reason})
			continue
		}
		req.Line = l.number
		m.Requirements = append(m.Requirements, req)
	}

	if len(perr.Problems) > 0 {
		return nil, perr
	}
	return m, nil
}

type logicalLine struct {
	number int
	text   string
}

// logicalLines joins lines ending with a backslash with the line following
// them.
func logicalLines(content string) []logicalLine {
	var result []logicalLine
	var current strings.Builder
	start := 0
	for i, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if current.Len() == 0 {
			start = i + 1
		}
		if strings.HasSuffix(line, `\`) {
			current.WriteString(strings.TrimSuffix(line, `\`))
			current.WriteString(" ")
			continue
		}
		current.WriteString(line)
		result = append(result, logicalLine{number: start, text: current.String()})
		current.Reset()
	}
	if current.Len() > 0 {
		result = append(result, logicalLine{number: start, text: current.String()})
	}
	return result
}

// stripComment removes a '#' comment that starts the line or follows
// whitespace.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if i == 0 || line[i-1] == ' ' || line[i-1] == '\t' {
			line = line[:i]
			break
		}
	}
	return strings.TrimSpace(line)
}

func (m *Manifest) parseOption(text string) string {
	name, value := text, ""
	if i := strings.IndexAny(text, " \t="); i >= 0 {
		name, value = text[:i], strings.TrimSpace(strings.TrimLeft(text[i:], " \t="))
	}
	switch name {
	case "-i", "--index-url":
		if len(value) == 0 {
			return "missing index URL"
		}
		m.IndexURL = value
	case "--extra-index-url":
		if len(value) == 0 {
			return "missing index URL"
		}
		m.ExtraIndexURLs = append(m.ExtraIndexURLs, value)
	case "-r", "--requirement", "-c", "--constraint":
		return "nested requirement and constraint files are not supported"
	case "-e", "--editable":
		return "editable requirements are not supported"
	default:
		log.V(3).Infof("Keeping manifest option %q", text)
		m.Options = append(m.Options, text)
	}
	return ""
}

func parseRequirement(text string) (Requirement, string) {
	// per-requirement options such as --hash are not part of the entry
	if i := strings.Index(text, " --"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	req := Requirement{Raw: text}

	if urlRegex.MatchString(text) {
		req.URL = text
		return req, ""
	}

	rest := text
	if i := strings.Index(rest, ";"); i >= 0 {
		req.Marker = strings.TrimSpace(rest[i+1:])
		rest = strings.TrimSpace(rest[:i])
		if len(req.Marker) == 0 {
			return req, "empty environment marker"
		}
	}

	name := nameRegex.FindString(rest)
	if len(name) == 0 {
		return req, "invalid package name"
	}
	req.Name = name
	rest = strings.TrimSpace(rest[len(name):])

	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return req, "unterminated extras"
		}
		for _, extra := range strings.Split(rest[1:end], ",") {
			extra = strings.TrimSpace(extra)
			if !nameRegex.MatchString(extra) || nameRegex.FindString(extra) != extra {
				return req, fmt.Sprintf("invalid extra %q", extra)
			}
			req.Extras = append(req.Extras, extra)
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	if strings.HasPrefix(rest, "@") {
		req.URL = strings.TrimSpace(rest[1:])
		if !urlRegex.MatchString(req.URL) {
			return req, "invalid direct reference"
		}
		return req, ""
	}

	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}
	if len(rest) == 0 {
		return req, ""
	}
	clauses := strings.Split(rest, ",")
	normalized := make([]string, 0, len(clauses))
	for _, c := range clauses {
		c = strings.TrimSpace(c)
		match := clauseRegex.FindStringSubmatch(c)
		if match == nil {
			return req, fmt.Sprintf("invalid version specifier %q", c)
		}
		normalized = append(normalized, match[1]+match[2])
	}
	req.Specifier = strings.Join(normalized, ",")
	return req, ""
}
