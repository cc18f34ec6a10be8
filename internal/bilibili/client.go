// Package bilibili fetches danmaku and video metadata from the bilibili web API.
package bilibili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultAPIBase     = "https://api.bilibili.com"
	DefaultSegmentBase = "http://api.bilibili.com"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.60 Safari/537.36"
)

// ErrAPI is returned when the API answers with a non-zero code.
var ErrAPI = errors.New("bilibili API error")

// Client talks to the bilibili web API.
type Client struct {
	HTTP        *http.Client
	APIBase     string // JSON endpoints (view, season)
	SegmentBase string // protobuf danmaku segments
	Verbose     bool
}

// NewClient returns a client pointed at the public API.
func NewClient() *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		APIBase:     DefaultAPIBase,
		SegmentBase: DefaultSegmentBase,
	}
}

// apiResponse wraps every JSON reply; video endpoints use data, pgc endpoints use result.
type apiResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
	Result  *T     `json:"result"`
}

func (r *apiResponse[T]) payload() (*T, error) {
	if r.Code != 0 {
		return nil, fmt.Errorf("%w: code = %d, message = %s", ErrAPI, r.Code, r.Message)
	}
	if r.Result != nil {
		return r.Result, nil
	}
	if r.Data != nil {
		return r.Data, nil
	}
	return nil, fmt.Errorf("%w: empty result", ErrAPI)
}

func (c *Client) get(ctx context.Context, base, path string, query url.Values) (*http.Response, error) {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	if c.Verbose {
		log.Printf("[Bilibili] GET %s", u)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", path, err)
	}
	return resp, nil
}

func getJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	resp, err := c.get(ctx, c.APIBase, path, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status = %d, response text = %q", resp.StatusCode, truncate(string(body), 200))
	}

	var r apiResponse[T]
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return r.payload()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Page is one part of a multi-part video.
type Page struct {
	CID      uint64 `json:"cid"`
	Page     int    `json:"page"`
	Part     string `json:"part"`
	Duration uint64 `json:"duration"` // seconds
}

// VideoInfo is the subset of /x/web-interface/view the converter needs.
type VideoInfo struct {
	BVID     string `json:"bvid"`
	AID      uint64 `json:"aid"`
	Title    string `json:"title"`
	Duration uint64 `json:"duration"`
	Pages    []Page `json:"pages"`
}

// SelectPages returns the requested page, or every page when page is 0.
func (v *VideoInfo) SelectPages(page int) ([]Page, error) {
	if page == 0 {
		return v.Pages, nil
	}
	for _, p := range v.Pages {
		if p.Page == page {
			return []Page{p}, nil
		}
	}
	return nil, fmt.Errorf("video %s has no page %d (%d pages)", v.BVID, page, len(v.Pages))
}

// VideoInfo fetches video metadata by BV id.
func (c *Client) VideoInfo(ctx context.Context, bv string) (*VideoInfo, error) {
	info, err := getJSON[VideoInfo](ctx, c, "/x/web-interface/view", url.Values{"bvid": {bv}})
	if err != nil {
		return nil, fmt.Errorf("failed to get video info for %s: %w", bv, err)
	}
	return info, nil
}

// Episode is one episode of a season.
type Episode struct {
	AID        uint64 `json:"aid"`
	BVID       string `json:"bvid"`
	CID        uint64 `json:"cid"`
	ID         uint64 `json:"id"`       // episode id
	DurationMS uint64 `json:"duration"` // milliseconds
	Title      string `json:"title"`
	LongTitle  string `json:"long_title"`
}

// DurationSec rounds the episode length up to whole seconds.
func (e Episode) DurationSec() uint64 {
	return (e.DurationMS + 999) / 1000
}

// Season is the subset of /pgc/view/web/season the converter needs.
type Season struct {
	SeasonID    uint64    `json:"season_id"`
	SeasonTitle string    `json:"season_title"`
	MediaID     uint64    `json:"media_id"`
	Title       string    `json:"title"`
	Cover       string    `json:"cover"`
	Episodes    []Episode `json:"episodes"`
}

// Season fetches a season by season id.
func (c *Client) Season(ctx context.Context, seasonID uint64) (*Season, error) {
	return c.season(ctx, "season_id", seasonID)
}

// SeasonByEpisode fetches the season containing the given episode.
func (c *Client) SeasonByEpisode(ctx context.Context, episodeID uint64) (*Season, error) {
	return c.season(ctx, "ep_id", episodeID)
}

func (c *Client) season(ctx context.Context, key string, id uint64) (*Season, error) {
	s, err := getJSON[Season](ctx, c, "/pgc/view/web/season", url.Values{key: {strconv.FormatUint(id, 10)}})
	if err != nil {
		return nil, fmt.Errorf("failed to get season (%s=%d): %w", key, id, err)
	}
	return s, nil
}

// Episode returns the episode with the given id.
func (s *Season) Episode(id uint64) (Episode, bool) {
	for _, e := range s.Episodes {
		if e.ID == id {
			return e, true
		}
	}
	return Episode{}, false
}
