package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var pep440Regex = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)` +
	`(?:[-_.]?(a|b|c|rc|alpha|beta|pre|preview)[-_.]?(\d*))?` +
	`(?:-(\d+)|[-_.]?(post|rev|r)[-_.]?(\d*))?` +
	`(?:[-_.]?(dev)[-_.]?(\d*))?` +
	`(?:\+([a-z0-9]+(?:[-_.][a-z0-9]+)*))?$`)

// version is a package index version together with its semantic version
// rendering.
type version struct {
	raw    string
	sv     *semver.Version
	pre    bool
	extra  []int
	labels string
}

// parseVersion converts a package version into a semantic version. Release
// segments beyond the third are kept aside and only used to break ties.
// Pre-releases and development releases become semver pre-releases, post
// and local releases become build metadata.
func parseVersion(raw string) (*version, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	m := pep440Regex.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid version %q", raw)
	}

	release := strings.Split(m[1], ".")
	nums := make([]int, 0, len(release))
	for _, r := range release {
		n, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %v", raw, err)
		}
		nums = append(nums, n)
	}
	for len(nums) < 3 {
		nums = append(nums, 0)
	}

	var pre []string
	if len(m[2]) > 0 {
		pre = append(pre, normalizePreLabel(m[2]), orZero(m[3]))
	}
	if len(m[7]) > 0 {
		pre = append(pre, "dev", orZero(m[8]))
	}
	var meta []string
	switch {
	case len(m[4]) > 0:
		meta = append(meta, "post", orZero(m[4]))
	case len(m[5]) > 0:
		meta = append(meta, "post", orZero(m[6]))
	}
	if len(m[9]) > 0 {
		meta = append(meta, strings.NewReplacer("_", ".", "-", ".").Replace(m[9]))
	}

	text := fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2])
	if len(pre) > 0 {
		text += "-" + strings.Join(pre, ".")
	}
	if len(meta) > 0 {
		text += "+" + strings.Join(meta, ".")
	}
	sv, err := semver.StrictNewVersion(text)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %v", raw, err)
	}
	return &version{
		raw:    raw,
		sv:     sv,
		pre:    len(pre) > 0,
		extra:  nums[3:],
		labels: strings.Join(meta, "."),
	}, nil
}

func normalizePreLabel(label string) string {
	switch label {
	case "alpha":
		return "a"
	case "beta":
		return "b"
	case "c", "pre", "preview":
		return "rc"
	}
	return label
}

func orZero(n string) string {
	i, err := strconv.Atoi(n)
	if err != nil {
		return "0"
	}
	return strconv.Itoa(i)
}

// less orders versions by semantic version, then by the release segments
// beyond the third, then by post release label.
func (v *version) less(o *version) bool {
	if c := v.sv.Compare(o.sv); c != 0 {
		return c < 0
	}
	for i := 0; i < len(v.extra) || i < len(o.extra); i++ {
		a, b := segment(v.extra, i), segment(o.extra, i)
		if a != b {
			return a < b
		}
	}
	return v.labels < o.labels
}

func segment(s []int, i int) int {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// clause is one version clause of a requirement specifier.
type clause struct {
	text       string
	constraint *semver.Constraints
	equal      *version
	negate     bool
	identity   string
	pre        bool
	// bounds replace constraint for versions with more than three release
	// segments.
	bounds []bound
}

// bound is an ordered comparison against a version.
type bound struct {
	op string
	v  *version
}

func (b bound) matches(v *version) bool {
	switch b.op {
	case "<":
		return v.less(b.v)
	case "<=":
		return !b.v.less(v)
	case ">":
		return b.v.less(v)
	case ">=":
		return !v.less(b.v)
	}
	return false
}

// parseClause translates a version clause into semver constraints. The
// compatible release operator and prefix matching have no direct semver
// operator and are expanded into ranges.
func parseClause(text string) (*clause, error) {
	op, value := splitOperator(text)
	c := &clause{text: text}
	if op == "===" {
		c.identity = value
		return c, nil
	}

	wildcard := strings.HasSuffix(value, ".*")
	if wildcard && op != "==" && op != "!=" {
		return nil, fmt.Errorf("prefix match is only allowed with == and !=: %q", text)
	}
	if wildcard {
		value = strings.TrimSuffix(value, ".*")
	}
	v, err := parseVersion(value)
	if err != nil {
		return nil, err
	}
	c.pre = v.pre
	if !wildcard && (op == "==" || op == "!=") {
		c.equal = v
		c.negate = op == "!="
		return c, nil
	}
	if !wildcard && len(v.extra) > 0 {
		return c, c.longBounds(op, value, v)
	}
	base := v.sv.String()

	var expr string
	switch {
	case wildcard:
		expr, err = prefixRange(value)
		if err != nil {
			return nil, err
		}
		c.negate = op == "!="
	case op == "~=":
		expr, err = compatibleRange(value, base)
		if err != nil {
			return nil, err
		}
	default:
		expr = op + base
	}

	constraint, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid version specifier %q: %v", text, err)
	}
	c.constraint = constraint
	return c, nil
}

// longBounds compares in full the versions semver cannot hold, such as
// 1.2.3.4.
func (c *clause) longBounds(op, value string, v *version) error {
	if op != "~=" {
		c.bounds = append(c.bounds, bound{op: op, v: v})
		return nil
	}
	nums, err := releaseSegments(value)
	if err != nil {
		return err
	}
	upper := append([]int{}, nums[:len(nums)-1]...)
	upper[len(upper)-1]++
	u, err := parseVersion(joinRelease(upper))
	if err != nil {
		return err
	}
	c.bounds = append(c.bounds, bound{op: ">=", v: v}, bound{op: "<", v: u})
	return nil
}

func splitOperator(text string) (string, string) {
	for _, op := range []string{"===", "~=", "==", "!=", "<=", ">=", "<", ">"} {
		if strings.HasPrefix(text, op) {
			return op, strings.TrimSpace(text[len(op):])
		}
	}
	return "", text
}

// prefixRange expands X.Y.* into >=X.Y, <X.(Y+1).
func prefixRange(value string) (string, error) {
	nums, err := releaseSegments(value)
	if err != nil {
		return "", err
	}
	if len(nums) > 3 {
		nums = nums[:3]
	}
	upper := append([]int{}, nums...)
	upper[len(upper)-1]++
	return fmt.Sprintf(">=%s-0, <%s-0", joinRelease(nums), joinRelease(upper)), nil
}

// compatibleRange expands ~=X.Y into >=X.Y, <(X+1) and ~=X.Y.Z into
// >=X.Y.Z, <X.(Y+1).
func compatibleRange(value, base string) (string, error) {
	nums, err := releaseSegments(value)
	if err != nil {
		return "", err
	}
	if len(nums) < 2 {
		return "", fmt.Errorf("compatible release needs at least two release segments: %q", value)
	}
	if len(nums) > 3 {
		nums = nums[:3]
	}
	upper := append([]int{}, nums[:len(nums)-1]...)
	upper[len(upper)-1]++
	return fmt.Sprintf(">=%s, <%s-0", base, joinRelease(upper)), nil
}

func releaseSegments(value string) ([]int, error) {
	m := pep440Regex.FindStringSubmatch(strings.ToLower(value))
	if m == nil {
		return nil, fmt.Errorf("invalid version %q", value)
	}
	var nums []int
	for _, r := range strings.Split(m[1], ".") {
		n, err := strconv.Atoi(r)
		if err != nil {
			return nil, err
		}
		nums = append(nums, n)
	}
	return nums, nil
}

func joinRelease(nums []int) string {
	parts := make([]string, 0, 3)
	for _, n := range nums {
		parts = append(parts, strconv.Itoa(n))
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts, ".")
}

// matches reports whether v satisfies the clause.
func (c *clause) matches(v *version) bool {
	if len(c.identity) > 0 {
		return v.raw == c.identity
	}
	var ok bool
	switch {
	case c.equal != nil:
		ok = !v.less(c.equal) && !c.equal.less(v)
	case len(c.bounds) > 0:
		ok = true
		for _, b := range c.bounds {
			ok = ok && b.matches(v)
		}
	default:
		ok = c.constraint.Check(v.sv)
	}
	if c.negate {
		return !ok
	}
	return ok
}
