package subtitles

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const subsunacsDefaultBaseURL = "https://subsunacs.net"

// SubsunacsScraper scrapes subsunacs.net search results. The site serves
// rar/zip archives with windows-1251 text inside.
type SubsunacsScraper struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewSubsunacsScraper constructs a scraper with sane defaults.
func NewSubsunacsScraper(client *http.Client, baseURL, name string) *SubsunacsScraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = subsunacsDefaultBaseURL
	}
	return &SubsunacsScraper{
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

func (s *SubsunacsScraper) Name() string {
	if s.name != "" {
		return s.name
	}
	return "subsunacs"
}

func (s *SubsunacsScraper) Search(ctx context.Context, req SearchRequest) ([]Candidate, error) {
	query := req.Query
	if req.Season > 0 && req.Episode > 0 {
		query = fmt.Sprintf("%s s%02de%02d", query, req.Season, req.Episode)
	}

	form := url.Values{}
	form.Set("m", query)
	form.Set("l", "0") // Bulgarian section
	if req.Year > 0 && req.Season == 0 {
		form.Set("y", strconv.Itoa(req.Year))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search.php", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("subsunacs request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("subsunacs search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: subsunacs status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: subsunacs status %d", ErrParse, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: subsunacs html: %v", ErrParse, err)
	}

	var candidates []Candidate
	doc.Find("td.tdMovie a.tooltip").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		row := sel.Closest("tr")
		title := strings.TrimSpace(sel.Text())
		info, _ := sel.Attr("title")
		downloads := 0
		if txt := strings.TrimSpace(row.Find("td").Eq(5).Text()); txt != "" {
			downloads, _ = strconv.Atoi(strings.ReplaceAll(txt, " ", ""))
		}
		fpsVal := 0.0
		if txt := strings.TrimSpace(row.Find("td").Eq(3).Text()); txt != "" {
			fpsVal, _ = strconv.ParseFloat(txt, 64)
		}
		candidates = append(candidates, Candidate{
			Source:    s.Name(),
			Ref:       s.absoluteURL(href),
			Label:     "UNACS",
			Summary:   title,
			FileName:  title,
			Year:      req.Year,
			Info:      stripTags(info),
			FPS:       fpsVal,
			Downloads: downloads,
		})
	})
	log.Printf("[subsunacs] query=%q results=%d", query, len(candidates))
	return candidates, nil
}

// Download fetches the archive behind a result page link.
func (s *SubsunacsScraper) Download(ctx context.Context, ref string, params map[string]string) (*Payload, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("subsunacs download request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0")
	httpReq.Header.Set("Referer", s.baseURL+"/")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("subsunacs download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subsunacs download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("subsunacs download read: %w", err)
	}
	filename := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	return &Payload{Data: data, ContentType: resp.Header.Get("Content-Type"), Filename: filename}, nil
}

func (s *SubsunacsScraper) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return s.baseURL + "/" + strings.TrimPrefix(href, "/")
}

var tagReplacer = strings.NewReplacer("<br>", " ", "<br/>", " ", "<b>", "", "</b>", "", "<i>", "", "</i>", "")

func stripTags(s string) string {
	return strings.TrimSpace(tagReplacer.Replace(s))
}

func filenameFromDisposition(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "filename=") {
			return strings.Trim(strings.TrimPrefix(part, "filename="), `"`)
		}
	}
	return ""
}
