package interfaces

import "context"

// Subscriber is a repository whose stored configuration references an
// affected source set.
type Subscriber struct {
	RepoID     int64  `json:"repoId"`
	Repository string `json:"repository"`
}

// PlanEntry records one affected source set within one commit of a push,
// the paths that matched it and the repositories that must receive them.
type PlanEntry struct {
	Group        string       `json:"group"`
	GroupRef     string       `json:"groupRef"`
	CommitID     string       `json:"commitId"`
	MatchedPaths []string     `json:"matchedPaths"`
	Subscribers  []Subscriber `json:"subscribers"`
}

// Plan is the output of classifying a push event.
type Plan struct {
	DeliveryID string      `json:"deliveryId,omitempty"`
	Repository string      `json:"repository"`
	Ref        string      `json:"ref"`
	HeadCommit string      `json:"headCommit"`
	Entries    []PlanEntry `json:"entries"`
}

// Empty reports whether the plan carries no entries.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Entries) == 0
}

// SubscriberNames returns the subscriber repositories of every entry for
// the given group, in plan order, without duplicates.
func (p *Plan) SubscriberNames(group string) []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	for _, entry := range p.Entries {
		if entry.Group != group {
			continue
		}
		for _, sub := range entry.Subscribers {
			if _, ok := seen[sub.Repository]; ok {
				continue
			}
			seen[sub.Repository] = struct{}{}
			names = append(names, sub.Repository)
		}
	}
	return names
}

// PlanExecutor carries out a propagation plan. Cloning, copying and pull
// request submission live behind this seam.
type PlanExecutor interface {
	Execute(ctx context.Context, plan *Plan) error
}
