package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func listingJSON(after string, children ...string) string {
	next := "null"
	if after != "" {
		next = fmt.Sprintf("%q", after)
	}
	return fmt.Sprintf(`{"kind":"Listing","data":{"after":%s,"children":[%s]}}`, next, strings.Join(children, ","))
}

func postThing(id, title string) string {
	return fmt.Sprintf(`{"kind":"t3","data":{"id":%q,"title":%q,"author":"ferris","subreddit":"rust","selftext":"body of %s","score":10,"num_comments":3,"created_utc":1700000000,"is_self":true}}`, id, title, id)
}

func commentThing(id, parent, body string, replies string) string {
	if replies == "" {
		replies = `""`
	}
	return fmt.Sprintf(`{"kind":"t1","data":{"id":%q,"parent_id":%q,"author":"crab","body":%q,"score":2,"created_utc":1700000100,"replies":%s}}`, id, parent, body, replies)
}

func moreThing(parent string, count int, children ...string) string {
	quoted := make([]string, 0, len(children))
	for _, c := range children {
		quoted = append(quoted, fmt.Sprintf("%q", c))
	}
	return fmt.Sprintf(`{"kind":"more","data":{"parent_id":%q,"count":%d,"children":[%s]}}`, parent, count, strings.Join(quoted, ","))
}

func newTestClient(t *testing.T, router http.Handler, opts Options) *Client {
	t.Helper()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	opts.BaseURL = server.URL
	c, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != DefaultBaseURL {
		t.Fatalf("base = %q, want %q", u.String(), DefaultBaseURL)
	}

	u, err = parseBaseURL("old.reddit.com/r/rust?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" || u.Host != "old.reddit.com" {
		t.Fatalf("base = %q, want https://old.reddit.com", u.String())
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestClient_FetchListingDecodesPostsAndCursor(t *testing.T) {
	t.Parallel()

	var gotSub, gotSort, gotAgent string
	var gotQuery url.Values
	r := chi.NewRouter()
	r.Get("/r/{sub}/{sort}.json", func(w http.ResponseWriter, req *http.Request) {
		gotSub = chi.URLParam(req, "sub")
		gotSort = chi.URLParam(req, "sort")
		gotAgent = req.Header.Get("User-Agent")
		gotQuery = req.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listingJSON("t3_b", postThing("a", "First"), postThing("b", "Second"))))
	})
	c := newTestClient(t, r, Options{PageSize: 2, UserAgent: "snoo-test"})

	page, err := c.FetchListing(testContext(t), "r/rust", SortNew, "t3_prev")
	if err != nil {
		t.Fatalf("FetchListing returned error: %v", err)
	}
	if gotSub != "rust" || gotSort != "new" {
		t.Fatalf("path params = %q/%q, want rust/new", gotSub, gotSort)
	}
	if gotAgent != "snoo-test" {
		t.Fatalf("user agent = %q, want snoo-test", gotAgent)
	}
	if gotQuery.Get("after") != "t3_prev" || gotQuery.Get("limit") != "2" || gotQuery.Get("raw_json") != "1" {
		t.Fatalf("query = %v", gotQuery)
	}
	if page.Next != "t3_b" {
		t.Fatalf("Next = %q, want t3_b", page.Next)
	}
	if len(page.Posts) != 2 || page.Posts[0].ID != "a" || page.Posts[1].Title != "Second" {
		t.Fatalf("posts = %#v", page.Posts)
	}
	if page.Posts[0].Body != "body of a" || page.Posts[0].CreatedAt.Unix() != 1700000000 {
		t.Fatalf("post fields not decoded: %#v", page.Posts[0])
	}
}

func TestClient_FetchListingOmitsAfterOnFirstPage(t *testing.T) {
	t.Parallel()

	var hadAfter bool
	r := chi.NewRouter()
	r.Get("/r/{sub}/{sort}.json", func(w http.ResponseWriter, req *http.Request) {
		_, hadAfter = req.URL.Query()["after"]
		_, _ = w.Write([]byte(listingJSON("")))
	})
	c := newTestClient(t, r, Options{})

	page, err := c.FetchListing(testContext(t), "golang", SortHot, "")
	if err != nil {
		t.Fatalf("FetchListing returned error: %v", err)
	}
	if hadAfter {
		t.Fatalf("first page request carried an after parameter")
	}
	if page.Next != "" || len(page.Posts) != 0 {
		t.Fatalf("page = %#v, want empty final page", page)
	}
}

func TestClient_FetchSubreddits(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/subreddits/popular.json", func(w http.ResponseWriter, req *http.Request) {
		body := listingJSON("t5_next",
			`{"kind":"t5","data":{"display_name":"golang","title":"The Go Programming Language","subscribers":250000}}`,
			`{"kind":"t5","data":{"display_name":"rust","public_description":"crabs","subscribers":300000}}`,
		)
		_, _ = w.Write([]byte(body))
	})
	c := newTestClient(t, r, Options{})

	page, err := c.FetchSubreddits(testContext(t), "")
	if err != nil {
		t.Fatalf("FetchSubreddits returned error: %v", err)
	}
	if page.Next != "t5_next" || len(page.Subreddits) != 2 {
		t.Fatalf("page = %#v", page)
	}
	if page.Subreddits[1].Name != "rust" || page.Subreddits[1].Description != "crabs" {
		t.Fatalf("second subreddit = %#v", page.Subreddits[1])
	}
}

func TestClient_FetchRootComments(t *testing.T) {
	t.Parallel()

	nested := listingJSON("",
		commentThing("c2", "t1_c1", "reply", ""),
		moreThing("t1_c1", 4, "c3", "c4"),
	)
	r := chi.NewRouter()
	r.Get("/comments/{id}.json", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") != "p1" {
			http.NotFound(w, req)
			return
		}
		body := "[" + listingJSON("", postThing("p1", "Post")) + "," + listingJSON("",
			commentThing("c1", "t3_p1", "top", nested),
			commentThing("c5", "t3_p1", "second", ""),
			moreThing("t3_p1", 7, "c6", "c7"),
			moreThing("t1_c5", 0),
		) + "]"
		_, _ = w.Write([]byte(body))
	})
	c := newTestClient(t, r, Options{})

	frag, err := c.FetchComments(testContext(t), "t3_p1", "")
	if err != nil {
		t.Fatalf("FetchComments returned error: %v", err)
	}
	if frag.Post == nil || frag.Post.Title != "Post" {
		t.Fatalf("post = %#v, want decoded post", frag.Post)
	}
	if frag.Token != "" || frag.PostID != "p1" {
		t.Fatalf("fragment identity = %q/%q", frag.PostID, frag.Token)
	}
	if len(frag.Comments) != 2 {
		t.Fatalf("top-level comments = %d, want 2", len(frag.Comments))
	}
	top := frag.Comments[0]
	if top.ParentID != "" || len(top.Replies) != 1 || top.Replies[0].ParentID != "c1" {
		t.Fatalf("top comment = %#v", top)
	}
	if top.More == nil || top.More.Count != 4 || top.More.ParentID != "c1" {
		t.Fatalf("nested more = %#v", top.More)
	}
	if len(frag.More) != 2 || frag.More[0].ParentID != "" || frag.More[0].Count != 7 {
		t.Fatalf("markers = %#v, want post-level marker with count 7 first", frag.More)
	}
	if deep := frag.More[1]; deep.ParentID != "c5" || !IsThreadToken(deep.Token) {
		t.Fatalf("continue-thread marker = %#v, want thread token on c5", deep)
	}
}

func TestClient_ContinueThreadMarkerIsKept(t *testing.T) {
	t.Parallel()

	raw := commentThing("c8", "t1_c7", "deep", listingJSON("",
		`{"kind":"more","data":{"count":0,"children":[],"parent_id":"t1_c9"}}`,
	))
	c, err := decodeComment([]byte(raw))
	if err != nil {
		t.Fatalf("decodeComment returned error: %v", err)
	}
	if c.More == nil {
		t.Fatalf("continue-thread marker dropped; c8 would look like a leaf")
	}
	if c.More.Token != threadToken("c9") || c.More.ParentID != "c9" || c.More.Count != 0 {
		t.Fatalf("marker = %#v", c.More)
	}

	// A post-level link without children has nothing to continue from.
	if _, ok := (moreData{ParentID: "t3_p1"}).toMore(); ok {
		t.Fatalf("post-level empty marker kept")
	}
}

func TestClient_FetchThreadContinuation(t *testing.T) {
	t.Parallel()

	var gotPath string
	r := chi.NewRouter()
	r.Get("/comments/{post}/_/{comment}.json", func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		focus := commentThing("c9", "t1_c8", "deep", listingJSON("",
			commentThing("d1", "t1_c9", "below the limit", listingJSON("",
				commentThing("d2", "t1_d1", "deeper still", ""),
			)),
			moreThing("t1_c9", 2, "d3", "d4"),
		))
		body := "[" + listingJSON("", postThing("p1", "Post")) + "," + listingJSON("", focus) + "]"
		_, _ = w.Write([]byte(body))
	})
	c := newTestClient(t, r, Options{})

	token := threadToken("c9")
	frag, err := c.FetchComments(testContext(t), "p1", token)
	if err != nil {
		t.Fatalf("FetchComments returned error: %v", err)
	}
	if gotPath != "/comments/p1/_/c9.json" {
		t.Fatalf("path = %q", gotPath)
	}
	if frag.Token != token || frag.Post != nil {
		t.Fatalf("fragment = token %q post %#v, want continuation without post", frag.Token, frag.Post)
	}
	if len(frag.Comments) != 1 || frag.Comments[0].ID != "d1" || frag.Comments[0].ParentID != "c9" {
		t.Fatalf("comments = %#v, want d1 under c9", frag.Comments)
	}
	if len(frag.Comments[0].Replies) != 1 || frag.Comments[0].Replies[0].ID != "d2" {
		t.Fatalf("replies of d1 = %#v", frag.Comments[0].Replies)
	}
	if len(frag.More) != 1 || frag.More[0].ParentID != "c9" || frag.More[0].Count != 2 {
		t.Fatalf("markers = %#v, want the batch marker on c9", frag.More)
	}
}

func TestClient_FetchThreadMissingCommentIsNotFound(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/comments/{post}/_/{comment}.json", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("[" + listingJSON("", postThing("p1", "Post")) + "," + listingJSON("") + "]"))
	})
	c := newTestClient(t, r, Options{})

	_, err := c.FetchComments(testContext(t), "p1", threadToken("gone"))
	if got := Classify(err); got != KindNotFound {
		t.Fatalf("Classify = %v, want not found (err %v)", got, err)
	}
}

func TestClient_FetchMoreChildrenBatchesAndNests(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	r := chi.NewRouter()
	r.Get("/api/morechildren.json", func(w http.ResponseWriter, req *http.Request) {
		gotQuery = req.URL.Query()
		body := `{"json":{"errors":[],"data":{"things":[` + strings.Join([]string{
			commentThing("a", "t1_p", "alpha", ""),
			commentThing("b", "t1_p", "beta", ""),
			commentThing("a1", "t1_a", "alpha reply", ""),
			moreThing("t1_b", 3, "b1", "b2"),
		}, ",") + `]}}}`
		_, _ = w.Write([]byte(body))
	})
	c := newTestClient(t, r, Options{MoreBatch: 2})

	token := encodeToken("p", []string{"a", "b", "c"})
	frag, err := c.FetchComments(testContext(t), "post", token)
	if err != nil {
		t.Fatalf("FetchComments returned error: %v", err)
	}
	if gotQuery.Get("children") != "a,b" || gotQuery.Get("link_id") != "t3_post" {
		t.Fatalf("query = %v, want first batch of children for t3_post", gotQuery)
	}
	if frag.Token != token {
		t.Fatalf("Token = %q, want %q", frag.Token, token)
	}
	if len(frag.Comments) != 2 || frag.Comments[0].ID != "a" || frag.Comments[1].ID != "b" {
		t.Fatalf("comments = %#v", frag.Comments)
	}
	if len(frag.Comments[0].Replies) != 1 || frag.Comments[0].Replies[0].ID != "a1" {
		t.Fatalf("replies of a = %#v", frag.Comments[0].Replies)
	}
	if frag.Comments[1].More == nil || frag.Comments[1].More.Count != 3 {
		t.Fatalf("marker on b = %#v", frag.Comments[1].More)
	}
	if len(frag.More) != 1 {
		t.Fatalf("leftover markers = %#v, want 1", frag.More)
	}
	left := frag.More[0]
	if left.ParentID != "p" || left.Count != 1 || left.Token != encodeToken("p", []string{"c"}) {
		t.Fatalf("leftover = %#v", left)
	}
}

func TestClient_MalformedTokenIsFatal(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, chi.NewRouter(), Options{})
	_, err := c.FetchComments(testContext(t), "post", "no-separator")
	if got := Classify(err); got != KindFatal {
		t.Fatalf("Classify = %v, want fatal (err %v)", got, err)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		header     map[string]string
		body       string
		want       ErrorKind
		retryAfter time.Duration
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "2"}, want: KindRateLimited, retryAfter: 2 * time.Second},
		{name: "ratelimit reset header", status: http.StatusTooManyRequests, header: map[string]string{"X-Ratelimit-Reset": "5"}, want: KindRateLimited, retryAfter: 5 * time.Second},
		{name: "not found", status: http.StatusNotFound, want: KindNotFound},
		{name: "private", status: http.StatusForbidden, want: KindNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, want: KindFatal},
		{name: "server error", status: http.StatusServiceUnavailable, want: KindTransient},
		{name: "bad payload", status: http.StatusOK, body: "<html>", want: KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get("/r/{sub}/{sort}.json", func(w http.ResponseWriter, req *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c := newTestClient(t, r, Options{})

			_, err := c.FetchListing(testContext(t), "rust", SortHot, "")
			if err == nil {
				t.Fatalf("FetchListing returned nil error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.Kind != tt.want {
				t.Fatalf("kind = %v, want %v", apiErr.Kind, tt.want)
			}
			if RetryAfter(err) != tt.retryAfter {
				t.Fatalf("RetryAfter = %v, want %v", RetryAfter(err), tt.retryAfter)
			}
		})
	}
}

func TestClient_UnknownSubredditRedirectIsNotFound(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/r/{sub}/{sort}.json", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/subreddits/search.json?q="+chi.URLParam(req, "sub"), http.StatusFound)
	})
	r.Get("/subreddits/search.json", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(listingJSON("")))
	})
	c := newTestClient(t, r, Options{})

	_, err := c.FetchListing(testContext(t), "doesnotexist", SortHot, "")
	if got := Classify(err); got != KindNotFound {
		t.Fatalf("Classify = %v, want not found (err %v)", got, err)
	}
}

func TestClient_CanceledContextIsReported(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/r/{sub}/{sort}.json", func(w http.ResponseWriter, req *http.Request) {
		<-req.Context().Done()
	})
	c := newTestClient(t, r, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchListing(ctx, "rust", SortHot, "")
	if !IsCanceled(err) {
		t.Fatalf("IsCanceled(%v) = false, want true", err)
	}
	if Classify(err) != KindTransient {
		t.Fatalf("Classify = %v, want transient", Classify(err))
	}
}
