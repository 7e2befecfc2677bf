package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mptreasury/internal/catalog"
	"mptreasury/internal/model"
)

// ReleasePrefix keeps Deezer album ids apart from other catalogs' release ids.
const ReleasePrefix = "deezer:"

// Client is a Deezer API client that implements catalog.Searcher. Deezer has
// no master releases, so candidates are deduplicated by album id.
type Client struct {
	httpClient *http.Client
	apiURL     string
	limit      int
}

// New creates a new Deezer client. limit bounds the albums fetched per page.
func New(limit int) *Client {
	if limit <= 0 {
		limit = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://api.deezer.com",
		limit:      limit,
	}
}

func (c *Client) Name() string { return "deezer" }

// Search queries the Deezer album search. Albums are resolved one page at a
// time, since each needs its own request for the track listing.
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
	reqURL := fmt.Sprintf("%s/search/album?q=%s&index=%d&limit=%d",
		c.apiURL, url.QueryEscape(q), (page-1)*c.limit, c.limit)

	var resp searchResponse
	if err := c.get(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("deezer search failed: %w", err)
	}

	candidates := make([]model.CandidateRelease, 0, len(resp.Data))
	for _, hit := range resp.Data {
		candidate, err := c.Album(ctx, hit.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// Album fetches one album with its track listing.
func (c *Client) Album(ctx context.Context, id int) (model.CandidateRelease, error) {
	var a album
	if err := c.get(ctx, fmt.Sprintf("%s/album/%d", c.apiURL, id), &a); err != nil {
		return model.CandidateRelease{}, fmt.Errorf("deezer album %d: %w", id, err)
	}
	return parseAlbum(a), nil
}

func (c *Client) get(ctx context.Context, reqURL string, out interface{ apiErr() *apiError }) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create deezer request: %w", err)
	}
	req.Header.Set("User-Agent", "mptreasury/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deezer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("deezer returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode deezer response: %w", err)
	}

	// Deezer reports errors, quota included, with a 200 status.
	if e := out.apiErr(); e != nil {
		return fmt.Errorf("deezer API error %d: %s", e.Code, e.Message)
	}
	return nil
}

func buildQuery(album, artist string) string {
	escape := func(s string) string {
		return strings.TrimSpace(strings.ReplaceAll(s, "\"", ""))
	}
	album, artist = escape(album), escape(artist)
	if album == "" {
		return ""
	}
	if artist == "" {
		return "album:\"" + album + "\""
	}
	return "artist:\"" + artist + "\" album:\"" + album + "\""
}

func parseAlbum(a album) model.CandidateRelease {
	candidate := model.CandidateRelease{
		Title:      a.Title,
		ArtistName: a.Artist.Name,
		ReleaseID:  ReleasePrefix + strconv.Itoa(a.ID),
	}
	if a.Artist.ID != 0 {
		candidate.ArtistID = strconv.Itoa(a.Artist.ID)
	}
	if len(a.ReleaseDate) >= 4 {
		if year, err := strconv.Atoi(a.ReleaseDate[:4]); err == nil {
			candidate.Year = year
		}
	}
	for _, g := range a.Genres.Data {
		candidate.Genres = append(candidate.Genres, g.Name)
	}

	disc := 0
	multiDisc := false
	for _, t := range a.Tracks.Data {
		if t.DiskNumber > 1 {
			multiDisc = true
		}
	}
	for _, t := range a.Tracks.Data {
		if multiDisc && t.DiskNumber != disc {
			disc = t.DiskNumber
			candidate.Tracks = append(candidate.Tracks, model.CatalogTrack{Title: fmt.Sprintf("Disc %d", disc), Type: "heading"})
		}
		title := t.TitleShort
		if title == "" {
			title = t.Title
		}
		candidate.Tracks = append(candidate.Tracks, model.CatalogTrack{Title: title, Type: model.TrackTypeTrack})
	}
	return candidate
}

// Deezer API response types

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type searchResponse struct {
	Data  []albumHit `json:"data"`
	Total int        `json:"total"`
	Error *apiError  `json:"error,omitempty"`
}

func (r *searchResponse) apiErr() *apiError { return r.Error }

type albumHit struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type album struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	ReleaseDate string    `json:"release_date"`
	Artist      artist    `json:"artist"`
	Genres      genreList `json:"genres"`
	Tracks      trackList `json:"tracks"`
	Error       *apiError `json:"error,omitempty"`
}

func (a *album) apiErr() *apiError { return a.Error }

type artist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type genreList struct {
	Data []struct {
		Name string `json:"name"`
	} `json:"data"`
}

type trackList struct {
	Data []track `json:"data"`
}

type track struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	TitleShort string `json:"title_short"`
	DiskNumber int    `json:"disk_number"`
}
