package models

import (
	"fmt"
	"strings"
)

// PullRequestRef identifies one pull request on the review service.
// It is built once at session start and passed to every remote call.
type PullRequestRef struct {
	CollectionURI string `json:"collection_uri"`
	Project       string `json:"project"`
	Repository    string `json:"repository"`
	ID            int    `json:"id"`
}

// String returns a short human-readable form used in logs
func (r PullRequestRef) String() string {
	return fmt.Sprintf("%s/%s/%s!%d", strings.TrimSuffix(r.CollectionURI, "/"), r.Project, r.Repository, r.ID)
}

// Validate reports the first missing field
func (r PullRequestRef) Validate() error {
	switch {
	case r.CollectionURI == "":
		return fmt.Errorf("collection endpoint is required")
	case r.Project == "":
		return fmt.Errorf("project is required")
	case r.Repository == "":
		return fmt.Errorf("repository is required")
	case r.ID <= 0:
		return fmt.Errorf("pull request id is required")
	}
	return nil
}

// ThreadStatus is the status of a review thread as stored by the review service
type ThreadStatus string

const (
	ThreadStatusActive  ThreadStatus = "active"
	ThreadStatusFixed   ThreadStatus = "fixed"
	ThreadStatusWontFix ThreadStatus = "wontFix"
	ThreadStatusClosed  ThreadStatus = "closed"
	ThreadStatusPending ThreadStatus = "pending"
)

var threadStatuses = []ThreadStatus{
	ThreadStatusActive,
	ThreadStatusFixed,
	ThreadStatusWontFix,
	ThreadStatusClosed,
	ThreadStatusPending,
}

// ParseThreadStatus accepts any casing of a known status name
func ParseThreadStatus(s string) (ThreadStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range threadStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown thread status %q (expected one of active, fixed, wontFix, closed, pending)", s)
}

// IsResolved reports whether the status counts as no longer needing attention
func (s ThreadStatus) IsResolved() bool {
	return s == ThreadStatusFixed || s == ThreadStatusWontFix || s == ThreadStatusClosed
}

// FileAnchor pins a thread to a line range of a changed file
type FileAnchor struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Normalize returns the anchor with a leading slash on the path and
// EndLine defaulted to StartLine.
func (a FileAnchor) Normalize() FileAnchor {
	if a.Path != "" && !strings.HasPrefix(a.Path, "/") {
		a.Path = "/" + a.Path
	}
	if a.EndLine < a.StartLine {
		a.EndLine = a.StartLine
	}
	return a
}

// Identity is an author on the review service
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	UniqueName  string `json:"unique_name,omitempty"`
}

// Comment is a single message inside a thread
type Comment struct {
	ID       int      `json:"id"`
	ThreadID int      `json:"thread_id"`
	ParentID int      `json:"parent_id,omitempty"`
	Author   Identity `json:"author"`
	Content  string   `json:"content"`
	Deleted  bool     `json:"deleted,omitempty"`
}

// Thread is a review conversation on a pull request. A nil Anchor means
// the thread is attached to the pull request as a whole.
type Thread struct {
	ID       int          `json:"id"`
	Status   ThreadStatus `json:"status"`
	Comments []Comment    `json:"comments"`
	Anchor   *FileAnchor  `json:"anchor,omitempty"`
}

// FirstComment returns the comment that opened the thread
func (t Thread) FirstComment() (Comment, bool) {
	for _, c := range t.Comments {
		if c.ParentID == 0 && !c.Deleted {
			return c, true
		}
	}
	return Comment{}, false
}

// PullRequest holds the detail fields the session uses
type PullRequest struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	SourceRefName string   `json:"source_ref_name"`
	TargetRefName string   `json:"target_ref_name"`
	Status        string   `json:"status"`
	CreatedBy     Identity `json:"created_by"`
}

// Iteration is one push of changes to a pull request
type Iteration struct {
	ID             int    `json:"id"`
	Description    string `json:"description,omitempty"`
	SourceCommitID string `json:"source_commit_id,omitempty"`
	TargetCommitID string `json:"target_commit_id,omitempty"`
}

// WorkItemRef is a work item linked to a pull request
type WorkItemRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ReviewMode selects how the agent is asked to report its findings
type ReviewMode string

const (
	ReviewModePerFile   ReviewMode = "per-file"
	ReviewModeWholeDiff ReviewMode = "whole-diff"
)

// PromptDocument is the compiled instruction text handed to the agent
type PromptDocument struct {
	Text string     `json:"text"`
	Mode ReviewMode `json:"mode"`
}
