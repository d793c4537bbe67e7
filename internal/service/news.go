package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
)

// NewsService searches recent articles on NewsAPI.
type NewsService struct {
	apiKey     string
	baseURL    string
	limit      int
	httpClient *http.Client
}

func NewNewsService(apiKey, baseURL string) *NewsService {
	return &NewsService{
		apiKey:     apiKey,
		baseURL:    baseURL,
		limit:      config.MaxNewsArticles,
		httpClient: &http.Client{Timeout: config.DataRequestTimeout},
	}
}

func (s *NewsService) GetNews(ctx context.Context, query string) ([]domain.Article, error) {
	params := url.Values{
		"q":        {query},
		"pageSize": {strconv.Itoa(s.limit)},
		"sortBy":   {"publishedAt"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request: %w: %w", domain.ErrExternalDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news service returned %d: %w", resp.StatusCode, domain.ErrExternalDataUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", domain.ErrExternalDataUnavailable, err)
	}

	var result struct {
		Articles []struct {
			Title  string `json:"title"`
			URL    string `json:"url"`
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse news: %w: %w", domain.ErrExternalDataUnavailable, err)
	}

	articles := make([]domain.Article, 0, min(len(result.Articles), s.limit))
	for _, a := range result.Articles {
		if len(articles) == s.limit {
			break
		}
		title := plainText(a.Title)
		if title == "" || title == "[Removed]" {
			continue
		}
		articles = append(articles, domain.Article{
			Title:  title,
			Source: plainText(a.Source.Name),
			URL:    a.URL,
		})
	}
	return articles, nil
}

// plainText strips markup and entities some feeds leave in titles.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
