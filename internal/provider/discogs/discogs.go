package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"mptreasury/internal/catalog"
	"mptreasury/internal/model"
)

const defaultAPIURL = "https://api.discogs.com"

// Discogs appends " (2)" and similar to artist names that are ambiguous.
var artistDisambiguation = regexp.MustCompile(`\s+\(\d+\)$`)

// Client is a Discogs database API client that implements catalog.Searcher.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	token       string
	userAgent   string
	perPage     int
	interval    time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a new Discogs client. perPage bounds the number of releases
// fetched per search page.
func New(token string, perPage int) *Client {
	if perPage <= 0 {
		perPage = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiURL:     defaultAPIURL,
		token:      token,
		userAgent:  "mptreasury/1.0",
		perPage:    perPage,
		interval:   time.Second,
	}
}

func (c *Client) Name() string { return "discogs" }

// Search starts a release search. Releases are resolved lazily, one page at a time.
func (c *Client) Search(ctx context.Context, album, artist string) (catalog.CandidateSource, error) {
	if strings.TrimSpace(album) == "" {
		return catalog.NewStaticSource(), nil
	}
	return catalog.NewPagedSource(func(ctx context.Context, page int) ([]model.CandidateRelease, error) {
		return c.searchPage(ctx, album, artist, page)
	}), nil
}

func (c *Client) searchPage(ctx context.Context, album, artist string, page int) ([]model.CandidateRelease, error) {
	params := url.Values{}
	params.Set("type", "release")
	params.Set("release_title", album)
	if artist != "" {
		params.Set("artist", artist)
	}
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("page", strconv.Itoa(page))

	var resp searchResponse
	if err := c.get(ctx, "/database/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("discogs search failed: %w", err)
	}
	// Discogs answers out-of-range pages with the last page.
	if resp.Pagination.Pages > 0 && page > resp.Pagination.Pages {
		return nil, nil
	}

	candidates := make([]model.CandidateRelease, 0, len(resp.Results))
	for _, result := range resp.Results {
		candidate, err := c.Release(ctx, result.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// Release fetches a single release with its tracklist and master.
func (c *Client) Release(ctx context.Context, id int) (model.CandidateRelease, error) {
	var rel release
	if err := c.get(ctx, fmt.Sprintf("/releases/%d", id), &rel); err != nil {
		return model.CandidateRelease{}, fmt.Errorf("discogs release %d: %w", id, err)
	}

	candidate := parseRelease(rel)
	if rel.MasterID != 0 {
		var m master
		if err := c.get(ctx, fmt.Sprintf("/masters/%d", rel.MasterID), &m); err != nil {
			return model.CandidateRelease{}, fmt.Errorf("discogs master %d: %w", rel.MasterID, err)
		}
		candidate.MasterTitle = m.Title
	}
	return candidate, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	c.rateLimit()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create discogs request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.discogs.v2.discogs+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.token)
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discogs returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode discogs response: %w", err)
	}
	return nil
}

// rateLimit spaces requests by the client interval.
func (c *Client) rateLimit() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	c.mu.Unlock()

	if elapsed < c.interval {
		time.Sleep(c.interval - elapsed)
	}

	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

// doWithRetry executes the request, retrying once on 429 with backoff.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		retryAfter := 2
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, err := strconv.Atoi(ra); err == nil {
				retryAfter = parsed
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(retryAfter) * time.Second):
		}

		c.mu.Lock()
		c.lastRequest = time.Now()
		c.mu.Unlock()
		return c.httpClient.Do(req.Clone(ctx))
	}

	return resp, nil
}

func parseRelease(rel release) model.CandidateRelease {
	candidate := model.CandidateRelease{
		Title:     rel.Title,
		Year:      rel.Year,
		Genres:    rel.Genres,
		ReleaseID: strconv.Itoa(rel.ID),
	}
	if rel.MasterID != 0 {
		candidate.MasterID = strconv.Itoa(rel.MasterID)
	}
	if len(rel.Artists) > 0 {
		candidate.ArtistID = strconv.Itoa(rel.Artists[0].ID)
		candidate.ArtistName = artistDisambiguation.ReplaceAllString(rel.Artists[0].Name, "")
	}

	for _, t := range rel.Tracklist {
		trackType := t.Type
		if trackType == "" {
			trackType = model.TrackTypeTrack
		}
		candidate.Tracks = append(candidate.Tracks, model.CatalogTrack{Title: t.Title, Type: trackType})
	}
	return candidate
}

// Discogs API response types

type searchResponse struct {
	Pagination pagination     `json:"pagination"`
	Results    []searchResult `json:"results"`
}

type pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type searchResult struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	MasterID int    `json:"master_id"`
}

type release struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	Year      int      `json:"year"`
	Genres    []string `json:"genres"`
	MasterID  int      `json:"master_id"`
	Artists   []artist `json:"artists"`
	Tracklist []track  `json:"tracklist"`
}

type artist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type track struct {
	Position string `json:"position"`
	Type     string `json:"type_"`
	Title    string `json:"title"`
}

type master struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}
