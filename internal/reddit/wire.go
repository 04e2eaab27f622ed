package reddit

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// thing is Reddit's {"kind": ..., "data": ...} envelope.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	IsSelf      bool    `json:"is_self"`
	Stickied    bool    `json:"stickied"`
	Over18      bool    `json:"over_18"`
}

type subredditData struct {
	DisplayName       string `json:"display_name"`
	Title             string `json:"title"`
	PublicDescription string `json:"public_description"`
	Subscribers       int    `json:"subscribers"`
	Over18            bool   `json:"over18"`
}

type commentData struct {
	ID         string          `json:"id"`
	ParentID   string          `json:"parent_id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

type moreData struct {
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}

type moreChildrenResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

func unixTime(secs float64) time.Time {
	if secs <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func (d postData) toPost() Post {
	return Post{
		ID:          d.ID,
		Subreddit:   d.Subreddit,
		Author:      d.Author,
		Title:       d.Title,
		Body:        d.Selftext,
		URL:         d.URL,
		Permalink:   d.Permalink,
		Score:       d.Score,
		NumComments: d.NumComments,
		CreatedAt:   unixTime(d.CreatedUTC),
		IsSelf:      d.IsSelf,
		Stickied:    d.Stickied,
		NSFW:        d.Over18,
	}
}

func (d subredditData) toSubreddit() Subreddit {
	return Subreddit{
		Name:        d.DisplayName,
		Title:       d.Title,
		Description: d.PublicDescription,
		Subscribers: d.Subscribers,
		NSFW:        d.Over18,
	}
}

// bareID strips a fullname prefix. Post fullnames map to the empty string
// because top-level comments have no comment parent.
func bareID(fullname string) string {
	if strings.HasPrefix(fullname, "t3_") {
		return ""
	}
	if _, id, ok := strings.Cut(fullname, "_"); ok && strings.HasPrefix(fullname, "t") {
		return id
	}
	return fullname
}

// encodeToken packs the parent and the child ids of a "more" marker into an
// opaque continuation token.
func encodeToken(parentID string, ids []string) string {
	return parentID + ":" + strings.Join(ids, ",")
}

const threadPrefix = "thread/"

// threadToken names the replies hidden behind a "continue this thread" link
// on commentID.
func threadToken(commentID string) string {
	return threadPrefix + commentID
}

// IsThreadToken reports whether token continues a thread below Reddit's depth
// limit rather than naming a batch of child ids.
func IsThreadToken(token string) bool {
	_, ok := threadComment(token)
	return ok
}

func threadComment(token string) (string, bool) {
	id, ok := strings.CutPrefix(token, threadPrefix)
	if !ok || strings.TrimSpace(id) == "" || strings.ContainsAny(id, ":,/") {
		return "", false
	}
	return id, true
}

// findComment looks for id in comments and their replies.
func findComment(comments []Comment, id string) (Comment, bool) {
	for _, c := range comments {
		if c.ID == id {
			return c, true
		}
		if found, ok := findComment(c.Replies, id); ok {
			return found, true
		}
	}
	return Comment{}, false
}

func decodeToken(token string) (string, []string, error) {
	parent, list, ok := strings.Cut(token, ":")
	if !ok || strings.TrimSpace(list) == "" {
		return "", nil, fmt.Errorf("malformed continuation token %q", token)
	}
	var ids []string
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", nil, fmt.Errorf("malformed continuation token %q", token)
	}
	return parent, ids, nil
}

func (d moreData) toMore() (More, bool) {
	parent := bareID(d.ParentID)
	if len(d.Children) == 0 {
		// "continue this thread": the replies sit below Reddit's depth limit
		// and only a thread fetch rooted at the parent returns them.
		if parent == "" {
			return More{}, false
		}
		return More{ParentID: parent, Token: threadToken(parent)}, true
	}
	count := d.Count
	if count < len(d.Children) {
		count = len(d.Children)
	}
	return More{ParentID: parent, Count: count, Token: encodeToken(parent, d.Children)}, true
}

// decodeCommentThings converts a comment listing's children. Top-level "more"
// markers are returned separately; nested ones land on their parent comment.
func decodeCommentThings(things []thing) ([]Comment, []More, error) {
	var comments []Comment
	var mores []More
	for _, th := range things {
		switch th.Kind {
		case "t1":
			c, err := decodeComment(th.Data)
			if err != nil {
				return nil, nil, err
			}
			comments = append(comments, c)
		case "more":
			var d moreData
			if err := json.Unmarshal(th.Data, &d); err != nil {
				return nil, nil, fmt.Errorf("decode more: %w", err)
			}
			if m, ok := d.toMore(); ok {
				mores = append(mores, m)
			}
		}
	}
	return comments, mores, nil
}

func decodeComment(raw json.RawMessage) (Comment, error) {
	var d commentData
	if err := json.Unmarshal(raw, &d); err != nil {
		return Comment{}, fmt.Errorf("decode comment: %w", err)
	}
	c := Comment{
		ID:        d.ID,
		ParentID:  bareID(d.ParentID),
		Author:    d.Author,
		Body:      d.Body,
		Score:     d.Score,
		CreatedAt: unixTime(d.CreatedUTC),
	}
	// replies is "" when there are none, a Listing otherwise.
	trimmed := strings.TrimSpace(string(d.Replies))
	if !strings.HasPrefix(trimmed, "{") {
		return c, nil
	}
	var replies listing
	if err := json.Unmarshal(d.Replies, &replies); err != nil {
		return Comment{}, fmt.Errorf("decode replies of %s: %w", d.ID, err)
	}
	children, mores, err := decodeCommentThings(replies.Data.Children)
	if err != nil {
		return Comment{}, err
	}
	c.Replies = children
	if len(mores) > 0 {
		m := mores[0]
		c.More = &m
	}
	return c, nil
}

// nest rebuilds reply structure from the flat thing list morechildren
// returns. Comments whose parent is not in the list become top-level entries
// of the result, and markers whose parent is not in the list are returned as
// loose markers.
func nest(flat []Comment, mores []More) ([]Comment, []More) {
	index := make(map[string]int, len(flat))
	for i, c := range flat {
		index[c.ID] = i
	}
	children := make(map[string][]int)
	var tops []int
	for i, c := range flat {
		if _, ok := index[c.ParentID]; ok && c.ParentID != c.ID {
			children[c.ParentID] = append(children[c.ParentID], i)
			continue
		}
		tops = append(tops, i)
	}
	moreFor := make(map[string]More)
	var loose []More
	for _, m := range mores {
		if _, ok := index[m.ParentID]; ok {
			moreFor[m.ParentID] = m
			continue
		}
		loose = append(loose, m)
	}

	seen := make(map[int]bool, len(flat))
	var build func(i int) Comment
	build = func(i int) Comment {
		seen[i] = true
		c := flat[i]
		c.Replies = nil
		for _, j := range children[c.ID] {
			if seen[j] {
				continue
			}
			c.Replies = append(c.Replies, build(j))
		}
		if m, ok := moreFor[c.ID]; ok {
			c.More = &m
		}
		return c
	}
	out := make([]Comment, 0, len(tops))
	for _, i := range tops {
		out = append(out, build(i))
	}
	return out, loose
}
