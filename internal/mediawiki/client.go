// Package mediawiki is a typed client for the MediaWiki action API,
// covering the queries a contest run needs: user contributions, revision
// metadata, redirect flags, and category membership edges.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/wikiscore/internal/retry"
)

// Contrib is one edit returned by the user contributions listing.
type Contrib struct {
	RevID     int64
	Title     string
	Timestamp time.Time
}

// RevisionMeta is the metadata of a single revision. Content is only
// populated when the caller requested text.
type RevisionMeta struct {
	RevID    int64
	ParentID int64
	Size     int64
	Title    string
	Content  string
}

// Client is the read interface onto one wiki site.
type Client interface {
	// UserContribs lists all edits by user within [start, end] in the
	// given namespace, following continuation cursors until exhausted.
	UserContribs(ctx context.Context, user string, start, end time.Time, namespace int) ([]Contrib, error)

	// RevisionMeta fetches metadata (and optionally content) for the
	// given revision ids, batched by the site's page limit.
	RevisionMeta(ctx context.Context, ids []int64, withText bool) (map[int64]RevisionMeta, error)

	// Redirects reports, for each title, whether the page currently is
	// a redirect. Batched by the site's page limit.
	Redirects(ctx context.Context, titles []string) (map[string]bool, error)

	// Categories fetches the direct categories of the given titles. It
	// issues a single request; the returned cursor is non-empty when
	// more results remain and must be passed back in until exhausted.
	Categories(ctx context.Context, titles []string, cont string) (map[string][]string, string, error)

	// PageLimit returns the maximum number of titles/ids per request.
	PageLimit() int
}

type httpClient struct {
	client  *http.Client
	baseURL string
	limit   int
	log     *zap.Logger
	backoff retry.Config
}

// NewClient creates a client for the wiki API at baseURL. limit is the
// per-request title/id budget (50 for anonymous clients, 500 for bots).
func NewClient(hc *http.Client, baseURL string, limit int, log *zap.Logger) Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if limit <= 0 {
		limit = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	backoff := retry.DefaultConfig()
	backoff.Logger = log
	return &httpClient{
		client:  hc,
		baseURL: baseURL,
		limit:   limit,
		log:     log,
		backoff: backoff,
	}
}

func (c *httpClient) PageLimit() int {
	return c.limit
}

// apiResponse mirrors the subset of the action API response we consume
// (format=json, formatversion=2).
type apiResponse struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
	Continue map[string]string `json:"continue"`
	Query    struct {
		UserContribs []struct {
			RevID     int64  `json:"revid"`
			Title     string `json:"title"`
			Timestamp string `json:"timestamp"`
		} `json:"usercontribs"`
		Pages []struct {
			Title      string `json:"title"`
			Redirect   bool   `json:"redirect"`
			Missing    bool   `json:"missing"`
			Categories []struct {
				Title string `json:"title"`
			} `json:"categories"`
			Revisions []struct {
				RevID    int64   `json:"revid"`
				ParentID int64   `json:"parentid"`
				Size     int64   `json:"size"`
				Content  *string `json:"content"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// query performs one action=query request with the given parameters,
// retrying transient failures with bounded backoff.
func (c *httpClient) query(ctx context.Context, params url.Values) (*apiResponse, error) {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")

	reqURL := c.baseURL + "?" + params.Encode()

	var out apiResponse
	err := retry.Do(ctx, c.backoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("performing request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("api returned status %d", resp.StatusCode)
		}

		out = apiResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Error != nil {
		return nil, fmt.Errorf("api error %s: %s", out.Error.Code, out.Error.Info)
	}

	return &out, nil
}

// UserContribs lists all edits by user within [start, end], following
// uccontinue cursors until the source signals no further continuation.
func (c *httpClient) UserContribs(ctx context.Context, user string, start, end time.Time, namespace int) ([]Contrib, error) {
	var contribs []Contrib
	cont := ""

	for {
		params := url.Values{}
		params.Set("list", "usercontribs")
		params.Set("ucuser", user)
		params.Set("ucdir", "newer")
		params.Set("ucstart", start.UTC().Format(time.RFC3339))
		params.Set("ucend", end.UTC().Format(time.RFC3339))
		params.Set("ucnamespace", strconv.Itoa(namespace))
		params.Set("ucprop", "ids|title|timestamp")
		params.Set("uclimit", strconv.Itoa(c.limit))
		if cont != "" {
			params.Set("uccontinue", cont)
		}

		resp, err := c.query(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("listing contributions for %s: %w", user, err)
		}

		for _, uc := range resp.Query.UserContribs {
			ts, err := time.Parse(time.RFC3339, uc.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("parsing contribution timestamp %q: %w", uc.Timestamp, err)
			}
			contribs = append(contribs, Contrib{
				RevID:     uc.RevID,
				Title:     uc.Title,
				Timestamp: ts,
			})
		}

		cont = resp.Continue["uccontinue"]
		if cont == "" {
			break
		}
	}

	return contribs, nil
}

// RevisionMeta fetches metadata for the given revision ids, batched by the
// page limit. Ids absent from the result were not returned by the source.
func (c *httpClient) RevisionMeta(ctx context.Context, ids []int64, withText bool) (map[int64]RevisionMeta, error) {
	metas := make(map[int64]RevisionMeta, len(ids))

	props := "ids|size"
	if withText {
		props += "|content"
	}

	for start := 0; start < len(ids); start += c.limit {
		stop := start + c.limit
		if stop > len(ids) {
			stop = len(ids)
		}

		strIDs := make([]string, 0, stop-start)
		for _, id := range ids[start:stop] {
			strIDs = append(strIDs, strconv.FormatInt(id, 10))
		}

		params := url.Values{}
		params.Set("prop", "revisions")
		params.Set("rvprop", props)
		params.Set("revids", strings.Join(strIDs, "|"))

		resp, err := c.query(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetching revision metadata: %w", err)
		}

		for _, page := range resp.Query.Pages {
			for _, rev := range page.Revisions {
				meta := RevisionMeta{
					RevID:    rev.RevID,
					ParentID: rev.ParentID,
					Size:     rev.Size,
					Title:    page.Title,
				}
				if rev.Content != nil {
					meta.Content = *rev.Content
				}
				metas[rev.RevID] = meta
			}
		}
	}

	return metas, nil
}

// Redirects reports the current redirect status of each title.
func (c *httpClient) Redirects(ctx context.Context, titles []string) (map[string]bool, error) {
	flags := make(map[string]bool, len(titles))

	for start := 0; start < len(titles); start += c.limit {
		stop := start + c.limit
		if stop > len(titles) {
			stop = len(titles)
		}

		params := url.Values{}
		params.Set("prop", "info")
		params.Set("titles", strings.Join(titles[start:stop], "|"))

		resp, err := c.query(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetching page info: %w", err)
		}

		for _, page := range resp.Query.Pages {
			if page.Missing {
				continue
			}
			flags[page.Title] = page.Redirect
		}
	}

	return flags, nil
}

// Categories fetches the direct categories of the given titles in a single
// request. The second return value is the continuation cursor; when it is
// non-empty the caller must request again with it until it comes back empty.
func (c *httpClient) Categories(ctx context.Context, titles []string, cont string) (map[string][]string, string, error) {
	params := url.Values{}
	params.Set("prop", "categories")
	params.Set("titles", strings.Join(titles, "|"))
	params.Set("cllimit", strconv.Itoa(c.limit))
	if cont != "" {
		params.Set("clcontinue", cont)
	}

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, "", fmt.Errorf("fetching categories: %w", err)
	}

	edges := make(map[string][]string)
	for _, page := range resp.Query.Pages {
		if page.Missing {
			continue
		}
		for _, cat := range page.Categories {
			edges[page.Title] = append(edges[page.Title], cat.Title)
		}
	}

	return edges, resp.Continue["clcontinue"], nil
}
