// Package reconcile applies the review agent's thread and comment changes
// to a pull request. Remote rejections never fail the caller; they come
// back as NonFatal outcomes and are logged.
package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/reviewpilot/reviewpilot/internal/devops"
	"github.com/reviewpilot/reviewpilot/internal/verdict"
	"github.com/reviewpilot/reviewpilot/pkg/models"
)

// Remote is the subset of the review service the reconciler writes to
type Remote interface {
	CreateThread(ctx context.Context, ref models.PullRequestRef, n devops.NewThread) (*models.Thread, error)
	UpdateThreadStatus(ctx context.Context, ref models.PullRequestRef, threadID int, status models.ThreadStatus) error
	UpdateComment(ctx context.Context, ref models.PullRequestRef, threadID, commentID int, content string) error
	DeleteComment(ctx context.Context, ref models.PullRequestRef, threadID, commentID int) error
}

// ErrEmptyContent is returned for a create request without comment text
var ErrEmptyContent = errors.New("comment content is empty")

// Scrubber removes secrets from comment text, reporting how many it removed
type Scrubber interface {
	Scrub(text string) (string, int)
}

// Reconciler applies mutations for a single pull request
type Reconciler struct {
	remote   Remote
	ref      models.PullRequestRef
	scrubber Scrubber
}

// New returns a reconciler bound to one pull request
func New(remote Remote, ref models.PullRequestRef) *Reconciler {
	return &Reconciler{remote: remote, ref: ref}
}

// WithScrubber makes every posted comment pass through s first
func (r *Reconciler) WithScrubber(s Scrubber) *Reconciler {
	r.scrubber = s
	return r
}

func (r *Reconciler) scrub(text string) string {
	if r.scrubber == nil {
		return text
	}
	cleaned, n := r.scrubber.Scrub(text)
	if n > 0 {
		log.Warn().Int("secrets", n).Str("pr", r.ref.String()).Msg("Redacted secrets from comment before posting")
	}
	return cleaned
}

// CreateRequest describes a new thread
type CreateRequest struct {
	Content string
	// Status is derived from Content when empty
	Status models.ThreadStatus
	// Anchor makes the thread inline; nil posts on the pull request as a whole
	Anchor      *models.FileAnchor
	IterationID int
}

// CreateThread posts a new thread. Content whose first line is the
// no-issues marker is skipped without contacting the service. The error
// return is reserved for invalid requests.
func (r *Reconciler) CreateThread(ctx context.Context, req CreateRequest) (Outcome, error) {
	if strings.TrimSpace(req.Content) == "" {
		return Outcome{}, ErrEmptyContent
	}
	if verdict.IsNoIssues(req.Content) {
		log.Info().Str("pr", r.ref.String()).Msg("No issues reported, nothing to post")
		return Outcome{Kind: Skipped, Reason: "no issues found"}, nil
	}

	status := req.Status
	if status == "" {
		res := verdict.Classify(req.Content)
		status = res.Verdict.ThreadStatus()
		log.Debug().
			Str("shape", res.Shape.String()).
			Str("verdict", res.Verdict.String()).
			Msg("Derived thread status from content")
	}

	var anchor *models.FileAnchor
	if req.Anchor != nil {
		a := req.Anchor.Normalize()
		anchor = &a
	}

	thread, err := r.remote.CreateThread(ctx, r.ref, devops.NewThread{
		Content:     r.scrub(req.Content),
		Status:      status,
		Anchor:      anchor,
		IterationID: req.IterationID,
	})
	if err != nil {
		out := nonFatal(0, err)
		r.logRejected("create thread", out)
		return out, nil
	}

	ev := log.Info().Int("thread_id", thread.ID).Str("status", string(status))
	if anchor != nil {
		ev = ev.Str("file", anchor.Path).Int("start_line", anchor.StartLine).Int("end_line", anchor.EndLine)
	}
	ev.Msg("Created thread")
	return Outcome{Kind: Applied, ThreadID: thread.ID}, nil
}

// UpdateRequest changes a thread's status, one comment's content, or both.
// When only content is given the status is derived from it.
type UpdateRequest struct {
	ThreadID  int
	Status    models.ThreadStatus
	CommentID int
	Content   string
}

// UpdateThread applies the content change, then the status. The two are
// independent: a rejected content edit does not stop the status change.
// A request carrying neither is a no-op.
func (r *Reconciler) UpdateThread(ctx context.Context, req UpdateRequest) (Outcome, error) {
	if req.ThreadID <= 0 {
		return Outcome{}, errors.New("thread id is required")
	}
	hasContent := req.CommentID > 0 && strings.TrimSpace(req.Content) != ""
	if req.Status == "" && !hasContent {
		return Outcome{Kind: Skipped, ThreadID: req.ThreadID, Reason: "neither status nor content given"}, nil
	}

	out := Outcome{Kind: Applied, ThreadID: req.ThreadID}
	if hasContent {
		if err := r.remote.UpdateComment(ctx, r.ref, req.ThreadID, req.CommentID, r.scrub(req.Content)); err != nil {
			out = nonFatal(req.ThreadID, err)
			r.logRejected("update comment", out)
		} else {
			log.Info().Int("thread_id", req.ThreadID).Int("comment_id", req.CommentID).Msg("Updated comment")
		}
	}

	status := req.Status
	if status == "" {
		status = verdict.Classify(req.Content).Verdict.ThreadStatus()
	}
	if err := r.remote.UpdateThreadStatus(ctx, r.ref, req.ThreadID, status); err != nil {
		rejected := nonFatal(req.ThreadID, err)
		r.logRejected("update thread status", rejected)
		// the first rejection is the one reported
		if out.Kind != NonFatal {
			out = rejected
		}
		return out, nil
	}
	log.Info().Int("thread_id", req.ThreadID).Str("status", string(status)).Msg("Updated thread status")
	return out, nil
}

// DeleteComment removes one comment. The thread stays even when it has
// no comments left.
func (r *Reconciler) DeleteComment(ctx context.Context, threadID, commentID int) (Outcome, error) {
	if threadID <= 0 || commentID <= 0 {
		return Outcome{}, errors.New("thread id and comment id are required")
	}
	if err := r.remote.DeleteComment(ctx, r.ref, threadID, commentID); err != nil {
		out := nonFatal(threadID, err)
		r.logRejected("delete comment", out)
		return out, nil
	}
	log.Info().Int("thread_id", threadID).Int("comment_id", commentID).Msg("Deleted comment")
	return Outcome{Kind: Applied, ThreadID: threadID}, nil
}

func (r *Reconciler) logRejected(op string, out Outcome) {
	ev := log.Warn().Err(out.Err).Str("op", op).Str("pr", r.ref.String())
	if out.ThreadID != 0 {
		ev = ev.Int("thread_id", out.ThreadID)
	}
	if out.StatusCode != 0 {
		ev = ev.Int("status_code", out.StatusCode).Str("body", out.Body)
	}
	ev.Msg("Remote service rejected change, continuing")
}
