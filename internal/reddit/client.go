package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to Reddit's JSON API.
type Client struct {
	baseURL      *url.URL
	http         *http.Client
	userAgent    string
	pageSize     int
	commentLimit int
	moreBatch    int
}

const (
	DefaultBaseURL      = "https://www.reddit.com"
	DefaultUserAgent    = "snoo/0.1 (terminal reddit browser)"
	DefaultPageSize     = 25
	DefaultCommentLimit = 200
	DefaultMoreBatch    = 100

	requestTimeout = 30 * time.Second
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL      string
	UserAgent    string
	PageSize     int
	CommentLimit int
	MoreBatch    int
	HTTPClient   *http.Client
}

// NewClient builds a Client.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	if hc.CheckRedirect == nil {
		hc.CheckRedirect = checkRedirect
	}
	c := &Client{
		baseURL:      base,
		http:         hc,
		userAgent:    strings.TrimSpace(opts.UserAgent),
		pageSize:     opts.PageSize,
		commentLimit: opts.CommentLimit,
		moreBatch:    opts.MoreBatch,
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.commentLimit <= 0 {
		c.commentLimit = DefaultCommentLimit
	}
	if c.moreBatch <= 0 {
		c.moreBatch = DefaultMoreBatch
	}
	return c, nil
}

// FetchSubreddits retrieves a page of the popular subreddit directory.
func (c *Client) FetchSubreddits(ctx context.Context, cursor string) (Page, error) {
	if c == nil {
		return Page{}, fmt.Errorf("client is nil")
	}
	var payload listing
	if err := c.get(ctx, "/subreddits/popular.json", c.pageQuery(cursor), &payload); err != nil {
		return Page{}, err
	}
	page := Page{Next: payload.Data.After}
	for _, th := range payload.Data.Children {
		if th.Kind != "t5" {
			continue
		}
		var d subredditData
		if err := json.Unmarshal(th.Data, &d); err != nil {
			return Page{}, decodeError("/subreddits/popular.json", err)
		}
		page.Subreddits = append(page.Subreddits, d.toSubreddit())
	}
	return page, nil
}

// FetchListing retrieves one page of a subreddit's posts in the given order.
func (c *Client) FetchListing(ctx context.Context, subreddit string, sort Sort, cursor string) (Page, error) {
	if c == nil {
		return Page{}, fmt.Errorf("client is nil")
	}
	name := strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if name == "" {
		return Page{}, &APIError{Kind: KindFatal, Err: errors.New("subreddit name required")}
	}
	path := "/r/" + url.PathEscape(name) + "/" + sort.String() + ".json"
	var payload listing
	if err := c.get(ctx, path, c.pageQuery(cursor), &payload); err != nil {
		return Page{}, err
	}
	page := Page{Next: payload.Data.After}
	for _, th := range payload.Data.Children {
		if th.Kind != "t3" {
			continue
		}
		var d postData
		if err := json.Unmarshal(th.Data, &d); err != nil {
			return Page{}, decodeError(path, err)
		}
		page.Posts = append(page.Posts, d.toPost())
	}
	return page, nil
}

// FetchComments retrieves the root fragment of a post's comment tree when
// token is empty, or the fragment answering a continuation token otherwise.
func (c *Client) FetchComments(ctx context.Context, postID, token string) (CommentFragment, error) {
	if c == nil {
		return CommentFragment{}, fmt.Errorf("client is nil")
	}
	postID = strings.TrimPrefix(strings.TrimSpace(postID), "t3_")
	if postID == "" {
		return CommentFragment{}, &APIError{Kind: KindFatal, Err: errors.New("post id required")}
	}
	if token == "" {
		return c.fetchRootComments(ctx, postID)
	}
	if commentID, ok := threadComment(token); ok {
		return c.fetchThread(ctx, postID, commentID, token)
	}
	return c.fetchMoreChildren(ctx, postID, token)
}

func (c *Client) fetchRootComments(ctx context.Context, postID string) (CommentFragment, error) {
	path := "/comments/" + url.PathEscape(postID) + ".json"
	post, comments, mores, err := c.fetchCommentPage(ctx, path)
	if err != nil {
		return CommentFragment{}, err
	}
	return CommentFragment{PostID: postID, Post: post, Comments: comments, More: mores}, nil
}

// fetchThread answers a "continue this thread" token. The permalink of the
// comment returns it as the root of a fresh listing; its replies become the
// fragment, attached below the comment already in the tree.
func (c *Client) fetchThread(ctx context.Context, postID, commentID, token string) (CommentFragment, error) {
	path := "/comments/" + url.PathEscape(postID) + "/_/" + url.PathEscape(commentID) + ".json"
	_, comments, _, err := c.fetchCommentPage(ctx, path)
	if err != nil {
		return CommentFragment{}, err
	}
	focus, ok := findComment(comments, commentID)
	if !ok {
		return CommentFragment{}, &APIError{Kind: KindNotFound, Status: http.StatusOK, Path: path, Err: fmt.Errorf("comment %s not in thread", commentID)}
	}
	frag := CommentFragment{PostID: postID, Token: token, Comments: focus.Replies}
	if focus.More != nil {
		frag.More = []More{*focus.More}
	}
	return frag, nil
}

// fetchCommentPage fetches the [post, comments] listing pair Reddit serves for
// a post or comment permalink.
func (c *Client) fetchCommentPage(ctx context.Context, path string) (*Post, []Comment, []More, error) {
	values := url.Values{}
	values.Set("raw_json", "1")
	values.Set("limit", strconv.Itoa(c.commentLimit))

	var payload []listing
	if err := c.get(ctx, path, values, &payload); err != nil {
		return nil, nil, nil, err
	}
	if len(payload) < 2 {
		return nil, nil, nil, decodeError(path, fmt.Errorf("expected 2 listings, got %d", len(payload)))
	}

	var post *Post
	for _, th := range payload[0].Data.Children {
		if th.Kind != "t3" {
			continue
		}
		var d postData
		if err := json.Unmarshal(th.Data, &d); err != nil {
			return nil, nil, nil, decodeError(path, err)
		}
		p := d.toPost()
		post = &p
		break
	}
	comments, mores, err := decodeCommentThings(payload[1].Data.Children)
	if err != nil {
		return nil, nil, nil, decodeError(path, err)
	}
	return post, comments, mores, nil
}

func (c *Client) fetchMoreChildren(ctx context.Context, postID, token string) (CommentFragment, error) {
	const path = "/api/morechildren.json"
	parent, ids, err := decodeToken(token)
	if err != nil {
		return CommentFragment{}, &APIError{Kind: KindFatal, Path: path, Err: err}
	}
	batch, rest := ids, []string(nil)
	if len(ids) > c.moreBatch {
		batch, rest = ids[:c.moreBatch], ids[c.moreBatch:]
	}

	values := url.Values{}
	values.Set("api_type", "json")
	values.Set("raw_json", "1")
	values.Set("link_id", "t3_"+postID)
	values.Set("children", strings.Join(batch, ","))
	values.Set("limit_children", "false")

	var payload moreChildrenResponse
	if err := c.get(ctx, path, values, &payload); err != nil {
		return CommentFragment{}, err
	}
	if len(payload.JSON.Errors) > 0 {
		return CommentFragment{}, &APIError{Kind: KindFatal, Path: path, Err: fmt.Errorf("api errors: %v", payload.JSON.Errors)}
	}

	var flat []Comment
	var mores []More
	for _, th := range payload.JSON.Data.Things {
		switch th.Kind {
		case "t1":
			comment, err := decodeComment(th.Data)
			if err != nil {
				return CommentFragment{}, decodeError(path, err)
			}
			flat = append(flat, comment)
		case "more":
			var d moreData
			if err := json.Unmarshal(th.Data, &d); err != nil {
				return CommentFragment{}, decodeError(path, err)
			}
			if m, ok := d.toMore(); ok {
				mores = append(mores, m)
			}
		}
	}
	comments, loose := nest(flat, mores)
	if len(rest) > 0 {
		loose = append(loose, More{ParentID: parent, Count: len(rest), Token: encodeToken(parent, rest)})
	}
	return CommentFragment{
		PostID:   postID,
		Token:    token,
		Comments: comments,
		More:     loose,
	}, nil
}

func (c *Client) pageQuery(cursor string) url.Values {
	values := url.Values{}
	values.Set("raw_json", "1")
	values.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		values.Set("after", cursor)
	}
	return values
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	rel := &url.URL{Path: path, RawQuery: query.Encode()}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return &APIError{Kind: KindFatal, Path: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return &APIError{Kind: KindTransient, Path: path, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return statusError(path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return decodeError(path, err)
	}
	return nil
}

func decodeError(path string, err error) *APIError {
	return &APIError{Kind: KindFatal, Path: path, Err: fmt.Errorf("decode response: %w", err)}
}

// checkRedirect turns Reddit's redirect of unknown subreddits to the search
// page into a NotFound.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if strings.HasPrefix(req.URL.Path, "/subreddits/search") {
		path := ""
		if len(via) > 0 {
			path = via[0].URL.Path
		}
		return &APIError{Kind: KindNotFound, Status: http.StatusFound, Path: path}
	}
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
