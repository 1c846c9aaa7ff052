package devops

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/reviewpilot/reviewpilot/pkg/models"
)

type apiFilePosition struct {
	Line   int `json:"line"`
	Offset int `json:"offset"`
}

type apiThreadContext struct {
	FilePath       string           `json:"filePath"`
	RightFileStart *apiFilePosition `json:"rightFileStart,omitempty"`
	RightFileEnd   *apiFilePosition `json:"rightFileEnd,omitempty"`
}

type apiIterationContext struct {
	FirstComparingIteration  int `json:"firstComparingIteration"`
	SecondComparingIteration int `json:"secondComparingIteration"`
}

type apiPullRequestThreadContext struct {
	IterationContext apiIterationContext `json:"iterationContext"`
}

type apiComment struct {
	ID              int          `json:"id,omitempty"`
	ParentCommentID int          `json:"parentCommentId"`
	Author          *apiIdentity `json:"author,omitempty"`
	Content         string       `json:"content"`
	CommentType     interface{}  `json:"commentType,omitempty"`
	IsDeleted       bool         `json:"isDeleted,omitempty"`
}

type apiThread struct {
	ID                       int                          `json:"id,omitempty"`
	Status                   string                       `json:"status"`
	Comments                 []apiComment                 `json:"comments"`
	ThreadContext            *apiThreadContext            `json:"threadContext,omitempty"`
	PullRequestThreadContext *apiPullRequestThreadContext `json:"pullRequestThreadContext,omitempty"`
	IsDeleted                bool                         `json:"isDeleted,omitempty"`
}

func (t apiThread) toModel() models.Thread {
	out := models.Thread{
		ID:       t.ID,
		Status:   models.ThreadStatus(t.Status),
		Comments: make([]models.Comment, 0, len(t.Comments)),
	}
	for _, c := range t.Comments {
		var author models.Identity
		if c.Author != nil {
			author = c.Author.toModel()
		}
		out.Comments = append(out.Comments, models.Comment{
			ID:       c.ID,
			ThreadID: t.ID,
			ParentID: c.ParentCommentID,
			Author:   author,
			Content:  c.Content,
			Deleted:  c.IsDeleted,
		})
	}
	if t.ThreadContext != nil && t.ThreadContext.FilePath != "" {
		anchor := &models.FileAnchor{Path: t.ThreadContext.FilePath}
		if t.ThreadContext.RightFileStart != nil {
			anchor.StartLine = t.ThreadContext.RightFileStart.Line
		}
		if t.ThreadContext.RightFileEnd != nil {
			anchor.EndLine = t.ThreadContext.RightFileEnd.Line
		}
		out.Anchor = anchor
	}
	return out
}

// NewThread describes a thread to create
type NewThread struct {
	Content string
	Status  models.ThreadStatus
	// Anchor turns the thread into an inline comment; nil makes it a pull request level thread.
	Anchor *models.FileAnchor
	// IterationID anchors an inline thread to a change iteration; zero omits the iteration context.
	IterationID int
}

func (n NewThread) payload() apiThread {
	body := apiThread{
		Status: string(n.Status),
		Comments: []apiComment{{
			ParentCommentID: 0,
			Content:         n.Content,
			CommentType:     1,
		}},
	}
	if n.Anchor == nil || n.Anchor.Path == "" {
		return body
	}
	a := n.Anchor.Normalize()
	body.ThreadContext = &apiThreadContext{FilePath: a.Path}
	if a.StartLine > 0 {
		body.ThreadContext.RightFileStart = &apiFilePosition{Line: a.StartLine, Offset: 1}
		body.ThreadContext.RightFileEnd = &apiFilePosition{Line: a.EndLine, Offset: 1}
	}
	if n.IterationID > 0 {
		body.PullRequestThreadContext = &apiPullRequestThreadContext{
			IterationContext: apiIterationContext{
				FirstComparingIteration:  1,
				SecondComparingIteration: n.IterationID,
			},
		}
	}
	return body
}

// ListThreads returns every non-deleted thread on the pull request
func (c *Client) ListThreads(ctx context.Context, ref models.PullRequestRef) ([]models.Thread, error) {
	threads, err := Query(ctx, c, c.pullRequestURL(ref, "/threads", nil), PageOptions[apiThread]{})
	if err != nil {
		return nil, err
	}
	out := make([]models.Thread, 0, len(threads))
	for _, t := range threads {
		if t.IsDeleted {
			continue
		}
		out = append(out, t.toModel())
	}
	return out, nil
}

// FindThread stops paging at the first non-deleted thread accepted by match
func (c *Client) FindThread(ctx context.Context, ref models.PullRequestRef, match func(models.Thread) bool) (*models.Thread, error) {
	t, found, err := Find(ctx, c, c.pullRequestURL(ref, "/threads", nil), DefaultPageSize, func(t apiThread) bool {
		return !t.IsDeleted && match(t.toModel())
	})
	if err != nil || !found {
		return nil, err
	}
	out := t.toModel()
	return &out, nil
}

// CreateThread opens a new thread and returns it as created by the service
func (c *Client) CreateThread(ctx context.Context, ref models.PullRequestRef, n NewThread) (*models.Thread, error) {
	if n.Content == "" {
		return nil, fmt.Errorf("thread content cannot be empty")
	}
	var created apiThread
	if err := c.do(ctx, http.MethodPost, c.pullRequestURL(ref, "/threads", nil), n.payload(), &created); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	out := created.toModel()
	return &out, nil
}

// UpdateThreadStatus sets the status of an existing thread
func (c *Client) UpdateThreadStatus(ctx context.Context, ref models.PullRequestRef, threadID int, status models.ThreadStatus) error {
	body := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPatch, c.pullRequestURL(ref, "/threads/"+strconv.Itoa(threadID), nil), body, nil); err != nil {
		return fmt.Errorf("failed to update status of thread %d: %w", threadID, err)
	}
	return nil
}

// UpdateComment replaces the body of one comment
func (c *Client) UpdateComment(ctx context.Context, ref models.PullRequestRef, threadID, commentID int, content string) error {
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPatch, c.commentURL(ref, threadID, commentID), body, nil); err != nil {
		return fmt.Errorf("failed to update comment %d in thread %d: %w", commentID, threadID, err)
	}
	return nil
}

// DeleteComment removes one comment. The thread itself is left in place
// even when this was its last comment.
func (c *Client) DeleteComment(ctx context.Context, ref models.PullRequestRef, threadID, commentID int) error {
	if err := c.do(ctx, http.MethodDelete, c.commentURL(ref, threadID, commentID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete comment %d in thread %d: %w", commentID, threadID, err)
	}
	return nil
}

func (c *Client) commentURL(ref models.PullRequestRef, threadID, commentID int) string {
	return c.pullRequestURL(ref, fmt.Sprintf("/threads/%d/comments/%d", threadID, commentID), nil)
}
