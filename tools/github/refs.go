package github

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Branch is a branch name with the commit it pointed at.
type Branch struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// Refs are the branches a run compares. Base is nil outside pull requests.
type Refs struct {
	Head        Branch
	Base        *Branch
	PullRequest int
}

// Env is the part of the GitHub Actions environment that identifies refs.
type Env struct {
	EventPath string
	Ref       string
	SHA       string
}

type eventPayload struct {
	PullRequest *struct {
		Number int    `json:"number"`
		Head   Branch `json:"head"`
		Base   Branch `json:"base"`
	} `json:"pull_request"`
}

// ParseRefs determines head and base branches. A pull_request event payload
// supplies both; otherwise the head is the pushed ref and there is no base.
func ParseRefs(env Env) (Refs, error) {
	if env.EventPath != "" {
		data, err := os.ReadFile(env.EventPath)
		if err != nil {
			return Refs{}, fmt.Errorf("failed to read event payload: %w", err)
		}
		var payload eventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Refs{}, fmt.Errorf("failed to parse event payload %s: %w", env.EventPath, err)
		}
		if pr := payload.PullRequest; pr != nil {
			base := shortBranch(pr.Base)
			return Refs{
				Head:        shortBranch(pr.Head),
				Base:        &base,
				PullRequest: pr.Number,
			}, nil
		}
	}
	return Refs{Head: shortBranch(Branch{Ref: env.Ref, SHA: env.SHA})}, nil
}

func shortBranch(b Branch) Branch {
	return Branch{Ref: ShortRef(b.Ref), SHA: b.SHA}
}

// ShortRef turns a fully-formed ref such as refs/heads/main into main.
func ShortRef(ref string) string {
	for _, prefix := range []string{"refs/heads/", "refs/tags/", "refs/remotes/origin/"} {
		if rest, ok := strings.CutPrefix(ref, prefix); ok {
			return rest
		}
	}
	return ref
}
