package httpserver

import (
	"fmt"

	"github.com/google/go-github/v48/github"
	"github.com/ruteri/templatizer-backend/interfaces"
)

// ParsePushEvent decodes a push payload. Fields absent from the payload are
// left at their zero values; only malformed JSON is an error.
func ParsePushEvent(body []byte) (*interfaces.PushEvent, error) {
	parsed, err := github.ParseWebHook("push", body)
	if err != nil {
		return nil, fmt.Errorf("parsing push payload: %w", err)
	}
	payload, ok := parsed.(*github.PushEvent)
	if !ok {
		return nil, fmt.Errorf("parsing push payload: unexpected type %T", parsed)
	}

	repo := payload.GetRepo()
	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		owner = repo.GetOwner().GetName()
	}

	event := &interfaces.PushEvent{
		Ref:    payload.GetRef(),
		Before: payload.GetBefore(),
		After:  payload.GetAfter(),
		Repository: interfaces.Repository{
			ID:            repo.GetID(),
			Owner:         owner,
			Name:          repo.GetName(),
			FullName:      repo.GetFullName(),
			DefaultBranch: repo.GetDefaultBranch(),
		},
		InstallationID: payload.GetInstallation().GetID(),
		Sender:         payload.GetSender().GetLogin(),
		Commits:        make([]interfaces.Commit, 0, len(payload.Commits)),
	}

	for _, c := range payload.Commits {
		if c == nil {
			continue
		}
		event.Commits = append(event.Commits, interfaces.Commit{
			ID:       c.GetID(),
			Message:  c.GetMessage(),
			Added:    c.Added,
			Modified: c.Modified,
			Removed:  c.Removed,
		})
	}
	return event, nil
}
