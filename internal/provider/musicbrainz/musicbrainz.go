package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"mptreasury/internal/catalog"
	"mptreasury/internal/model"
)

// Client is a MusicBrainz Web API client that implements catalog.Searcher.
// Release groups play the role of masters.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	limit       int
	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a new MusicBrainz client returning up to limit releases per page.
func New(limit int) *Client {
	if limit <= 0 {
		limit = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://musicbrainz.org/ws/2",
		limit:      limit,
	}
}

func (c *Client) Name() string { return "musicbrainz" }

// Search queries the MusicBrainz release search API.
func (c *Client) Search(ctx context.Context, album, artist string) (catalog.CandidateSource, error) {
	q := buildQuery(album, artist)
	if q == "" {
		return catalog.NewStaticSource(), nil
	}
	return catalog.NewPagedSource(func(ctx context.Context, page int) ([]model.CandidateRelease, error) {
		return c.searchPage(ctx, q, page)
	}), nil
}

func (c *Client) searchPage(ctx context.Context, q string, page int) ([]model.CandidateRelease, error) {
	offset := (page - 1) * c.limit
	reqURL := fmt.Sprintf("%s/release?query=%s&fmt=json&limit=%d&offset=%d", c.apiURL, url.QueryEscape(q), c.limit, offset)

	var searchResp searchResponse
	if err := c.get(ctx, reqURL, &searchResp); err != nil {
		return nil, fmt.Errorf("musicbrainz search failed: %w", err)
	}

	candidates := make([]model.CandidateRelease, 0, len(searchResp.Releases))
	for _, hit := range searchResp.Releases {
		rel, err := c.Release(ctx, hit.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, rel)
	}
	return candidates, nil
}

// Release looks up one release with its recordings, credits and release group.
func (c *Client) Release(ctx context.Context, id string) (model.CandidateRelease, error) {
	reqURL := fmt.Sprintf("%s/release/%s?inc=recordings+artist-credits+genres+release-groups&fmt=json", c.apiURL, url.PathEscape(id))

	var rel release
	if err := c.get(ctx, reqURL, &rel); err != nil {
		return model.CandidateRelease{}, fmt.Errorf("musicbrainz release %s: %w", id, err)
	}
	return parseRelease(rel), nil
}

func (c *Client) get(ctx context.Context, reqURL string, out interface{}) error {
	c.rateLimit()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", "mptreasury/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("musicbrainz returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode musicbrainz response: %w", err)
	}
	return nil
}

// rateLimit enforces MusicBrainz's 1 request/second limit.
func (c *Client) rateLimit() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	c.mu.Unlock()

	if elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}

	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

// doWithRetry executes the request, retrying on 429/503 with backoff.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
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
		retry := req.Clone(ctx)
		return c.httpClient.Do(retry)
	}

	return resp, nil
}

func buildQuery(album, artist string) string {
	var parts []string
	if album = strings.TrimSpace(album); album != "" {
		parts = append(parts, fmt.Sprintf("release:%q", album))
	}
	if len(parts) == 0 {
		return ""
	}
	if artist = strings.TrimSpace(artist); artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", artist))
	}
	return strings.Join(parts, " AND ")
}

func parseRelease(rel release) model.CandidateRelease {
	candidate := model.CandidateRelease{
		Title:       rel.Title,
		Year:        parseYear(rel.Date),
		ArtistName:  joinArtistCredits(rel.ArtistCredit),
		ReleaseID:   rel.ID,
		MasterTitle: rel.ReleaseGroup.Title,
		MasterID:    rel.ReleaseGroup.ID,
	}
	if candidate.Year == 0 {
		candidate.Year = parseYear(rel.ReleaseGroup.FirstReleaseDate)
	}
	if len(rel.ArtistCredit) > 0 {
		candidate.ArtistID = rel.ArtistCredit[0].Artist.ID
	}

	genres := rel.Genres
	if len(genres) == 0 {
		genres = rel.ReleaseGroup.Genres
	}
	for _, g := range genres {
		candidate.Genres = append(candidate.Genres, g.Name)
	}

	// Multi-disc releases get a heading per medium, like Discogs tracklists.
	multiDisc := len(rel.Media) > 1
	for i, m := range rel.Media {
		if multiDisc {
			heading := m.Title
			if heading == "" {
				heading = fmt.Sprintf("%s %d", nonEmpty(m.Format, "Disc"), i+1)
			}
			candidate.Tracks = append(candidate.Tracks, model.CatalogTrack{Title: heading, Type: "heading"})
		}
		for _, t := range m.Tracks {
			candidate.Tracks = append(candidate.Tracks, model.CatalogTrack{Title: t.Title, Type: model.TrackTypeTrack})
		}
	}
	return candidate
}

func joinArtistCredits(credits []artistCredit) string {
	var b strings.Builder
	for _, ac := range credits {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(ac.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

func parseYear(date string) int {
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// MusicBrainz API response types

type searchResponse struct {
	Count    int          `json:"count"`
	Releases []releaseHit `json:"releases"`
}

type releaseHit struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
	Title string `json:"title"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Date         string         `json:"date"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup releaseGroup   `json:"release-group"`
	Genres       []genre        `json:"genres"`
	Media        []media        `json:"media"`
}

type artistCredit struct {
	Name       string     `json:"name"`
	JoinPhrase string     `json:"joinphrase"`
	Artist     artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type releaseGroup struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	FirstReleaseDate string  `json:"first-release-date"`
	Genres           []genre `json:"genres"`
}

type genre struct {
	Name string `json:"name"`
}

type media struct {
	Title  string  `json:"title"`
	Format string  `json:"format"`
	Tracks []track `json:"tracks"`
}

type track struct {
	Number string `json:"number"`
	Title  string `json:"title"`
}
