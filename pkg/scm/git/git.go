package git

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	utillog "github.com/openshift/recipe-to-image/pkg/util/log"
)

var log = utillog.StderrLog

// DefaultCloneTimeout bounds a clone and checkout.
const DefaultCloneTimeout = 10 * time.Minute

var scpLikeRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:[^/].*`)

// SourceInfo stores information about the source code
type SourceInfo struct {
	// Ref represents a commit SHA-1, valid Git branch name or a Git tag
	// The output image will contain this information as 'io.openshift.r2i.build.commit.ref' label.
	Ref string

	// CommitID represents an arbitrary extended object reference in Git as SHA-1
	// The output image will contain this information as 'io.openshift.r2i.build.commit.id' label.
	CommitID string

	// Date contains a date when the committer created the commit.
	// The output image will contain this information as 'io.openshift.r2i.build.commit.date' label.
	Date string

	// AuthorName contains the name of the author
	// The output image will contain this information (along with AuthorEmail) as 'io.openshift.r2i.build.commit.author' label.
	AuthorName string

	// AuthorEmail contains the e-mail of the author
	// The output image will contain this information (along with AuthorName) as 'io.openshift.r2i.build.commit.author' lablel.
	AuthorEmail string

	// Message represents the first 80 characters from the commit message.
	// The output image will contain this information as 'io.openshift.r2i.build.commit.message' label.
	Message string

	// Location contains a valid URL to the original repository.
	// The output image will contain this information as 'io.openshift.r2i.build.source-location' label.
	Location string

	// ContextDir contains path inside the Location directory that
	// contains the application source code.
	// The output image will contain this information as 'io.openshift.r2i.build.source-context-dir'
	// label.
	ContextDir string
}

// Git is an interface used by main r2i code to extract/checkout git repositories
type Git interface {
	ValidCloneSpec(source string) bool
	Clone(ctx context.Context, source, target, ref string) error
	GetInfo(repo string) *SourceInfo
}

// New returns a new instance of the default implementation of the Git
// interface, backed by go-git.
func New(progress io.Writer) Git {
	return &stiGit{progress: progress}
}

type stiGit struct {
	progress io.Writer
}

// ValidCloneSpec determines if the given source can be cloned: an http(s),
// ssh or git URL, a file:// URL ending in .git, or an scp-like address.
func (h *stiGit) ValidCloneSpec(source string) bool {
	if scpLikeRegex.MatchString(source) {
		return true
	}
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ssh", "git", "git+ssh":
		return len(u.Host) > 0
	case "file":
		return strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), ".git")
	}
	return false
}

// Clone clones source into target and checks out ref when it is set. A
// branch, a tag or a commit may be given.
func (h *stiGit) Clone(ctx context.Context, source, target, ref string) error {
	opts := &git.CloneOptions{
		URL:      source,
		Progress: h.progress,
	}
	if len(ref) == 0 {
		opts.Depth = 1
	}
	log.V(2).Infof("Cloning %q to %q", source, target)
	repo, err := git.PlainCloneContext(ctx, target, false, opts)
	if err != nil {
		return fmt.Errorf("git clone of %s failed: %v", source, err)
	}
	if len(ref) == 0 {
		return nil
	}

	hash, err := resolveRef(repo, ref)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	log.V(1).Infof("Checking out ref %s (%s)", ref, hash)
	return wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true})
}

func resolveRef(repo *git.Repository, ref string) (*plumbing.Hash, error) {
	for _, rev := range []string{ref, "origin/" + ref} {
		if hash, err := repo.ResolveRevision(plumbing.Revision(rev)); err == nil {
			return hash, nil
		}
	}
	return nil, fmt.Errorf("unable to resolve ref %q", ref)
}

// GetInfo retrieves the informations about the source code and commit
func (h *stiGit) GetInfo(repo string) *SourceInfo {
	r, err := git.PlainOpenWithOptions(repo, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		log.V(3).Infof("Unable to open %s as a git repository: %v", repo, err)
		return nil
	}
	head, err := r.Head()
	if err != nil {
		log.V(3).Infof("Unable to read HEAD of %s: %v", repo, err)
		return nil
	}
	info := &SourceInfo{CommitID: head.Hash().String()}
	if head.Name().IsBranch() || head.Name().IsTag() {
		info.Ref = head.Name().Short()
	}
	if remote, err := r.Remote(git.DefaultRemoteName); err == nil && len(remote.Config().URLs) > 0 {
		info.Location = remote.Config().URLs[0]
	}
	if commit, err := r.CommitObject(head.Hash()); err == nil {
		info.AuthorName = commit.Author.Name
		info.AuthorEmail = commit.Author.Email
		info.Date = commit.Committer.When.UTC().Format(time.RFC1123Z)
		info.Message = firstLine(commit.Message, 80)
	}
	return info
}

func firstLine(message string, max int) string {
	line := strings.TrimSpace(strings.SplitN(message, "\n", 2)[0])
	if runes := []rune(line); len(runes) > max {
		line = string(runes[:max])
	}
	return line
}
