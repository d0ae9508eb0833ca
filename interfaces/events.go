package interfaces

import "strings"

// BranchRefPrefix is the ref namespace of branch pushes.
const BranchRefPrefix = "refs/heads/"

// PushEvent is the part of a platform push delivery the planner consumes.
// Missing payload fields decode to their zero values.
type PushEvent struct {
	DeliveryID     string
	Ref            string
	Before         string
	After          string
	Repository     Repository
	InstallationID int64
	Sender         string
	Commits        []Commit
}

// Repository identifies the repository a push landed on.
type Repository struct {
	ID            int64
	Owner         string
	Name          string
	FullName      string
	DefaultBranch string
}

// Commit carries the paths one commit touched.
type Commit struct {
	ID       string
	Message  string
	Added    []string
	Modified []string
	Removed  []string
}

// ChangedPaths returns added, modified and removed paths in that order.
func (c Commit) ChangedPaths() []string {
	paths := make([]string, 0, len(c.Added)+len(c.Modified)+len(c.Removed))
	paths = append(paths, c.Added...)
	paths = append(paths, c.Modified...)
	paths = append(paths, c.Removed...)
	return paths
}

// TargetsDefaultBranch reports whether the pushed ref is the repository's
// configured default branch.
func (e *PushEvent) TargetsDefaultBranch() bool {
	if e.Repository.DefaultBranch == "" {
		return false
	}
	return e.Ref == BranchRefPrefix+e.Repository.DefaultBranch
}

// RepositoryName returns "owner/name", deriving it when the payload carried
// no full name.
func (e *PushEvent) RepositoryName() string {
	if e.Repository.FullName != "" {
		return e.Repository.FullName
	}
	return e.Repository.Owner + "/" + e.Repository.Name
}

// HeadCommit returns the id of the last commit in the push, or After.
func (e *PushEvent) HeadCommit() string {
	if len(e.Commits) > 0 {
		return e.Commits[len(e.Commits)-1].ID
	}
	return e.After
}

// BranchName strips the branch ref prefix.
func BranchName(ref string) string {
	return strings.TrimPrefix(ref, BranchRefPrefix)
}
