// Package kbbi talks to the remote KBBI dictionary API used by the
// word-chain minigame. The API is the single authority on whether a
// word exists; the bot does no spell-checking of its own.
//
// Endpoints:
//
//	GET {base}/api/word/{word}  -> 200 {"valid":true,"lemma":"...","score":N}
//	                               404 when the word is not in the dictionary
//	GET {base}/api/word/random  -> 200 {"lemma":"...","score":N}
package kbbi

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
)

// LookupResult answers "is this a real word?".
// Lemma is the dictionary's canonical form (e.g. stripped of affix markers).
type LookupResult struct {
	Valid  bool
	Lemma  string
	Points int
}

type RandomResult struct {
	Word   string
	Points int
}

// Client is what the game engine depends on. Tests substitute a fake.
type Client interface {
	Lookup(ctx context.Context, word string) (LookupResult, error)
	Random(ctx context.Context) (RandomResult, error)
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type wordResponse struct {
	Valid bool   `json:"valid"`
	Lemma string `json:"lemma"`
	Score int    `json:"score"`
}

// Lookup queries the dictionary for a word. A 404 means "not a word" and is
// reported as Valid=false with a nil error; any other non-200 is an error the
// caller may retry.
func (c *HTTPClient) Lookup(ctx context.Context, word string) (LookupResult, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return LookupResult{Valid: false}, nil
	}

	u := c.baseURL + "/api/word/" + url.PathEscape(word)
	body, status, err := c.get(ctx, u)
	if err != nil {
		return LookupResult{}, err
	}
	if status == http.StatusNotFound {
		return LookupResult{Valid: false}, nil
	}
	if status != http.StatusOK {
		return LookupResult{}, fmt.Errorf("kbbi: lookup %q: unexpected status %d", word, status)
	}

	var wr wordResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return LookupResult{}, fmt.Errorf("kbbi: lookup %q: bad response: %w", word, err)
	}
	return LookupResult{Valid: wr.Valid, Lemma: wr.Lemma, Points: wr.Score}, nil
}

func (c *HTTPClient) Random(ctx context.Context) (RandomResult, error) {
	body, status, err := c.get(ctx, c.baseURL+"/api/word/random")
	if err != nil {
		return RandomResult{}, err
	}
	if status != http.StatusOK {
		return RandomResult{}, fmt.Errorf("kbbi: random: unexpected status %d", status)
	}

	var wr wordResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return RandomResult{}, fmt.Errorf("kbbi: random: bad response: %w", err)
	}
	if strings.TrimSpace(wr.Lemma) == "" {
		return RandomResult{}, errors.New("kbbi: random: empty word")
	}
	return RandomResult{Word: wr.Lemma, Points: wr.Score}, nil
}

func (c *HTTPClient) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
