package subtitles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const opensubtitlesDefaultBaseURL = "https://api.opensubtitles.com/api/v1"

// OpenSubtitlesScraper queries the OpenSubtitles REST API for Bulgarian
// subtitles. Download goes through the API's per-file download endpoint.
type OpenSubtitlesScraper struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenSubtitlesScraper constructs a scraper with sane defaults.
func NewOpenSubtitlesScraper(client *http.Client, baseURL, apiKey, name string) *OpenSubtitlesScraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = opensubtitlesDefaultBaseURL
	}
	return &OpenSubtitlesScraper{
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: client,
	}
}

func (o *OpenSubtitlesScraper) Name() string {
	if o.name != "" {
		return o.name
	}
	return "opensubtitles"
}

type osSearchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Language      string  `json:"language"`
			DownloadCount int     `json:"download_count"`
			Ratings       float64 `json:"ratings"`
			FPS           float64 `json:"fps"`
			Release       string  `json:"release"`
			Year          int     `json:"year"`
			Files         []struct {
				FileID   int    `json:"file_id"`
				FileName string `json:"file_name"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

func (o *OpenSubtitlesScraper) Search(ctx context.Context, req SearchRequest) ([]Candidate, error) {
	params := url.Values{}
	params.Set("languages", "bg")
	if req.IMDBID != "" {
		params.Set("imdb_id", strings.TrimPrefix(req.IMDBID, "tt"))
	} else {
		params.Set("query", req.Query)
		if req.Year > 0 {
			params.Set("year", strconv.Itoa(req.Year))
		}
	}
	if req.Season > 0 {
		params.Set("season_number", strconv.Itoa(req.Season))
		params.Set("episode_number", strconv.Itoa(req.Episode))
	}

	endpoint := fmt.Sprintf("%s/subtitles?%s", o.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles request: %w", err)
	}
	httpReq.Header.Set("Api-Key", o.apiKey)
	httpReq.Header.Set("User-Agent", "subrelay")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: opensubtitles status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: opensubtitles status %d", ErrParse, resp.StatusCode)
	}

	var payload osSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: opensubtitles body: %v", ErrParse, err)
	}

	candidates := make([]Candidate, 0, len(payload.Data))
	for _, item := range payload.Data {
		if len(item.Attributes.Files) == 0 {
			continue
		}
		file := item.Attributes.Files[0]
		candidates = append(candidates, Candidate{
			Source:    o.Name(),
			Ref:       strconv.Itoa(file.FileID),
			Label:     "OS",
			Summary:   item.Attributes.Release,
			FileName:  file.FileName,
			Format:    "srt",
			Year:      item.Attributes.Year,
			Info:      item.Attributes.Release,
			FPS:       item.Attributes.FPS,
			Downloads: item.Attributes.DownloadCount,
			Rating:    item.Attributes.Ratings,
		})
	}
	log.Printf("[opensubtitles] query=%q results=%d", req.Query, len(candidates))
	return candidates, nil
}

type osDownloadResponse struct {
	Link string `json:"link"`
}

// Download exchanges a file id for a temporary link, then fetches the bytes.
func (o *OpenSubtitlesScraper) Download(ctx context.Context, ref string, params map[string]string) (*Payload, error) {
	body := strings.NewReader(fmt.Sprintf(`{"file_id":%s}`, ref))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/download", body)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles download request: %w", err)
	}
	httpReq.Header.Set("Api-Key", o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "subrelay")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensubtitles download status %d", resp.StatusCode)
	}

	var link osDownloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return nil, fmt.Errorf("%w: opensubtitles download body: %v", ErrParse, err)
	}
	if link.Link == "" {
		return nil, fmt.Errorf("%w: opensubtitles returned no link", ErrNotFound)
	}

	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, link.Link, nil)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles file request: %w", err)
	}
	fileResp, err := o.httpClient.Do(fileReq)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles file fetch: %w", err)
	}
	defer fileResp.Body.Close()
	if fileResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensubtitles file status %d", fileResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(fileResp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("opensubtitles file read: %w", err)
	}
	return &Payload{Data: data, ContentType: fileResp.Header.Get("Content-Type")}, nil
}
