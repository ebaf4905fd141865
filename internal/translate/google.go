package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/technews/internal/news"
)

const googleTranslateURL = "https://translate.googleapis.com/translate_a/single"

// maxGoogleChars keeps the query string within what the free endpoint
// accepts.
const maxGoogleChars = 4000

// Google uses the free Google Translate endpoint. It only translates; the
// summary is the first sentence of the translated text.
type Google struct {
	baseURL string
	http    *http.Client
}

func NewGoogle(baseURL string, hc *http.Client) *Google {
	if baseURL == "" {
		baseURL = googleTranslateURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Google{baseURL: baseURL, http: hc}
}

func (g *Google) Name() string { return "google" }

func (g *Google) Enrich(ctx context.Context, title, content string) (*Result, error) {
	tTitle, err := g.Translate(ctx, title, "auto", "bg")
	if err != nil {
		return nil, err
	}

	content = strings.Join(strings.Fields(content), " ")
	if len(content) > maxGoogleChars {
		content = strings.ToValidUTF8(content[:maxGoogleChars], "") + "..."
	}
	tContent, err := g.Translate(ctx, content, "auto", "bg")
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:   tTitle,
		Summary: news.Truncate(tContent, news.CardSentences),
		Content: tContent,
	}, nil
}

// Translate translates text between two language codes ("auto" detects the
// source).
func (g *Google) Translate(ctx context.Context, text, from, to string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", to)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("google translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}
	translation, err := parseGoogleTranslateResponse(body)
	if err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if translation == "" {
		return "", errors.New("empty translation")
	}
	return translation, nil
}

// parseGoogleTranslateResponse reads the nested array format of the free
// endpoint; the first element holds [translated, original, ...] segments.
func parseGoogleTranslateResponse(body []byte) (string, error) {
	var response []interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if translationArray, ok := translation.([]interface{}); ok && len(translationArray) > 0 {
			if translatedText, ok := translationArray[0].(string); ok {
				result.WriteString(translatedText)
			}
		}
	}
	return result.String(), nil
}
