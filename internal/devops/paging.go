package devops

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	"github.com/rs/zerolog/log"
)

// PageOptions configures a paged query.
type PageOptions[T any] struct {
	// PageSize is the $top sent with every page; zero selects DefaultPageSize.
	PageSize int
	// MaxResults truncates the accumulated records; zero means unlimited.
	MaxResults int
	// StopWhen ends the query as soon as a record matches it.
	StopWhen func(T) bool
}

type listResponse[T any] struct {
	Value []T `json:"value"`
	Count int `json:"count"`
}

// Query fetches baseURI page by page. Paging stops at the first short page,
// at MaxResults, or as soon as StopWhen matches, in which case the result is
// just the matching record. A failed page aborts the query with a *QueryError;
// no page is requested twice.
//
// Some endpoints ignore $top/$skip and return the whole collection on every
// call. A page longer than $top is taken as the complete result, and a page
// starting with the same record as the previous one ends the query.
func Query[T any](ctx context.Context, c *Client, baseURI string, opts PageOptions[T]) ([]T, error) {
	records, _, err := query(ctx, c, baseURI, opts)
	return records, err
}

// Find runs a paged query for the first record matching match
func Find[T any](ctx context.Context, c *Client, baseURI string, pageSize int, match func(T) bool) (T, bool, error) {
	var zero T
	records, found, err := query(ctx, c, baseURI, PageOptions[T]{PageSize: pageSize, StopWhen: match})
	if err != nil || !found {
		return zero, false, err
	}
	return records[0], true, nil
}

func query[T any](ctx context.Context, c *Client, baseURI string, opts PageOptions[T]) ([]T, bool, error) {
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	var (
		all       []T
		prevFirst T
	)
	for page := 0; ; page++ {
		pageURI, err := withPaging(baseURI, size, page*size)
		if err != nil {
			return nil, false, &QueryError{Page: page, URI: baseURI, Err: err}
		}

		var resp listResponse[T]
		if err := c.do(ctx, http.MethodGet, pageURI, nil, &resp); err != nil {
			return nil, false, &QueryError{Page: page, URI: pageURI, Err: err}
		}

		if page > 0 && len(resp.Value) > 0 && reflect.DeepEqual(resp.Value[0], prevFirst) {
			log.Warn().Str("uri", baseURI).Int("page", page).Msg("Service repeated a page, ignoring paging parameters")
			return limit(all, opts.MaxResults), false, nil
		}

		if opts.StopWhen != nil {
			for _, rec := range resp.Value {
				if opts.StopWhen(rec) {
					log.Debug().Int("page", page).Msg("paged query matched, stopping early")
					return []T{rec}, true, nil
				}
			}
		}

		if len(resp.Value) > size {
			log.Warn().Str("uri", baseURI).Int("records", len(resp.Value)).Int("page_size", size).
				Msg("Service ignored paging parameters, using the single response")
			if page == 0 {
				return limit(resp.Value, opts.MaxResults), false, nil
			}
			return limit(all, opts.MaxResults), false, nil
		}

		all = append(all, resp.Value...)
		if opts.MaxResults > 0 && len(all) >= opts.MaxResults {
			return all[:opts.MaxResults], false, nil
		}
		if len(resp.Value) < size {
			return all, false, nil
		}
		prevFirst = resp.Value[0]
	}
}

func limit[T any](records []T, n int) []T {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}

func withPaging(baseURI string, top, skip int) (string, error) {
	u, err := url.Parse(baseURI)
	if err != nil {
		return "", fmt.Errorf("invalid query uri: %w", err)
	}
	q := u.Query()
	q.Set("$top", strconv.Itoa(top))
	q.Set("$skip", strconv.Itoa(skip))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
