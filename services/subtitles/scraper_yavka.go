package subtitles

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const yavkaDefaultBaseURL = "https://yavka.net"

// YavkaScraper scrapes yavka.net. Downloads need the numeric subtitle id
// posted back to the page, carried through candidate params.
type YavkaScraper struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewYavkaScraper constructs a scraper with sane defaults.
func NewYavkaScraper(client *http.Client, baseURL, name string) *YavkaScraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = yavkaDefaultBaseURL
	}
	return &YavkaScraper{
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

func (y *YavkaScraper) Name() string {
	if y.name != "" {
		return y.name
	}
	return "yavka"
}

var yavkaIDRE = regexp.MustCompile(`/subs/(\d+)`)

func (y *YavkaScraper) Search(ctx context.Context, req SearchRequest) ([]Candidate, error) {
	params := url.Values{}
	params.Set("s", req.Query)
	params.Set("l", "BG")
	if req.Year > 0 {
		params.Set("y", strconv.Itoa(req.Year))
	}
	if req.Season > 0 {
		params.Set("se", strconv.Itoa(req.Season))
		params.Set("ep", strconv.Itoa(req.Episode))
	}

	endpoint := fmt.Sprintf("%s/subtitles?%s", y.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("yavka request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("yavka search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: yavka status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: yavka status %d", ErrParse, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: yavka html: %v", ErrParse, err)
	}

	var candidates []Candidate
	doc.Find("a.balon, a.selector").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		m := yavkaIDRE.FindStringSubmatch(href)
		if m == nil {
			return
		}
		row := sel.Closest("tr")
		title := strings.TrimSpace(sel.Text())
		info, _ := sel.Attr("content")
		fpsVal := 0.0
		if txt := strings.TrimSpace(row.Find("td.fps").Text()); txt != "" {
			fpsVal, _ = strconv.ParseFloat(txt, 64)
		}
		downloads := 0
		if txt := strings.TrimSpace(row.Find("td.downloads").Text()); txt != "" {
			downloads, _ = strconv.Atoi(txt)
		}
		candidates = append(candidates, Candidate{
			Source:    y.Name(),
			Ref:       y.baseURL + "/" + strings.TrimPrefix(href, "/"),
			Label:     "YAVKA",
			Summary:   title,
			FileName:  title,
			Year:      req.Year,
			Info:      stripTags(info),
			FPS:       fpsVal,
			Downloads: downloads,
			Params:    map[string]string{"id": m[1]},
		})
	})
	log.Printf("[yavka] query=%q results=%d", req.Query, len(candidates))
	return candidates, nil
}

// Download posts the subtitle id back to its page, which answers with the
// archive.
func (y *YavkaScraper) Download(ctx context.Context, ref string, params map[string]string) (*Payload, error) {
	form := url.Values{}
	if id := params["id"]; id != "" {
		form.Set("id", id)
	}
	form.Set("lng", "BG")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ref, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("yavka download request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", "Mozilla/5.0")
	httpReq.Header.Set("Referer", ref)

	resp, err := y.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("yavka download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yavka download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("yavka download read: %w", err)
	}
	filename := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	return &Payload{Data: data, ContentType: resp.Header.Get("Content-Type"), Filename: filename}, nil
}
