package devops

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/reviewpilot/reviewpilot/pkg/models"
)

type apiIdentity struct {
	ID                  string `json:"id"`
	DisplayName         string `json:"displayName"`
	ProviderDisplayName string `json:"providerDisplayName"`
	UniqueName          string `json:"uniqueName"`
}

func (i apiIdentity) toModel() models.Identity {
	name := i.DisplayName
	if name == "" {
		name = i.ProviderDisplayName
	}
	return models.Identity{ID: i.ID, DisplayName: name, UniqueName: i.UniqueName}
}

type apiPullRequest struct {
	PullRequestID int         `json:"pullRequestId"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	SourceRefName string      `json:"sourceRefName"`
	TargetRefName string      `json:"targetRefName"`
	Status        string      `json:"status"`
	CreatedBy     apiIdentity `json:"createdBy"`
}

func (p apiPullRequest) toModel() models.PullRequest {
	return models.PullRequest{
		ID:            p.PullRequestID,
		Title:         p.Title,
		Description:   p.Description,
		SourceRefName: p.SourceRefName,
		TargetRefName: p.TargetRefName,
		Status:        p.Status,
		CreatedBy:     p.CreatedBy.toModel(),
	}
}

type apiIteration struct {
	ID              int    `json:"id"`
	Description     string `json:"description"`
	SourceRefCommit struct {
		CommitID string `json:"commitId"`
	} `json:"sourceRefCommit"`
	TargetRefCommit struct {
		CommitID string `json:"commitId"`
	} `json:"targetRefCommit"`
}

// GetPullRequest fetches the detail of one pull request
func (c *Client) GetPullRequest(ctx context.Context, ref models.PullRequestRef) (*models.PullRequest, error) {
	var pr apiPullRequest
	if err := c.do(ctx, http.MethodGet, c.pullRequestURL(ref, "", nil), nil, &pr); err != nil {
		return nil, fmt.Errorf("failed to get pull request %d: %w", ref.ID, err)
	}
	out := pr.toModel()
	return &out, nil
}

// FindPullRequestBySourceBranch pages through active pull requests of the
// repository and stops at the first one whose source branch is branch.
// ref.ID is ignored.
func (c *Client) FindPullRequestBySourceBranch(ctx context.Context, ref models.PullRequestRef, branch string) (*models.PullRequest, error) {
	want := NormalizeBranchRef(branch)
	q := url.Values{}
	q.Set("searchCriteria.status", "active")
	uri := c.repoURL(ref, "/pullrequests", q)

	pr, found, err := Find(ctx, c, uri, DefaultPageSize, func(p apiPullRequest) bool {
		return strings.EqualFold(p.SourceRefName, want)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no active pull request with source branch %s", want)
	}
	out := pr.toModel()
	return &out, nil
}

// LatestIteration returns the newest change iteration of a pull request
func (c *Client) LatestIteration(ctx context.Context, ref models.PullRequestRef) (*models.Iteration, error) {
	var resp listResponse[apiIteration]
	if err := c.do(ctx, http.MethodGet, c.pullRequestURL(ref, "/iterations", nil), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get iterations of pull request %d: %w", ref.ID, err)
	}
	if len(resp.Value) == 0 {
		return nil, fmt.Errorf("pull request %d has no iterations", ref.ID)
	}
	latest := resp.Value[0]
	for _, it := range resp.Value[1:] {
		if it.ID > latest.ID {
			latest = it
		}
	}
	return &models.Iteration{
		ID:             latest.ID,
		Description:    latest.Description,
		SourceCommitID: latest.SourceRefCommit.CommitID,
		TargetCommitID: latest.TargetRefCommit.CommitID,
	}, nil
}

// ListWorkItems returns the work items linked to a pull request
func (c *Client) ListWorkItems(ctx context.Context, ref models.PullRequestRef) ([]models.WorkItemRef, error) {
	type apiWorkItemRef struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	refs, err := Query(ctx, c, c.pullRequestURL(ref, "/workitems", nil), PageOptions[apiWorkItemRef]{})
	if err != nil {
		return nil, err
	}
	out := make([]models.WorkItemRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, models.WorkItemRef{ID: r.ID, URL: r.URL})
	}
	return out, nil
}

// AuthenticatedIdentity returns the identity that owns the client's credential
func (c *Client) AuthenticatedIdentity(ctx context.Context, collectionURI string) (models.Identity, error) {
	var resp struct {
		AuthenticatedUser apiIdentity `json:"authenticatedUser"`
	}
	uri := strings.TrimSuffix(collectionURI, "/") + "/_apis/connectionData"
	if err := c.do(ctx, http.MethodGet, uri, nil, &resp); err != nil {
		return models.Identity{}, fmt.Errorf("failed to resolve authenticated identity: %w", err)
	}
	return resp.AuthenticatedUser.toModel(), nil
}

// NormalizeBranchRef turns "feature/x" into "refs/heads/feature/x"
func NormalizeBranchRef(branch string) string {
	branch = strings.TrimSpace(branch)
	if branch == "" || strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}
