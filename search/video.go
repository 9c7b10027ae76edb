package search

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// VideoResult is one video hit with the identifier extracted from its URL.
type VideoResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	VideoID string `json:"video_id"`
}

// videoURLPattern matches YouTube watch, share, shorts and embed URLs and
// captures the video identifier.
var videoURLPattern = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:[^\s&]*&)*v=|shorts/|embed/)|youtu\.be/)([A-Za-z0-9_-]{6,})`)

// VideoClient narrows a search client to a known video host and keeps only
// results whose URLs carry an extractable video identifier.
type VideoClient struct {
	client *Client
	scope  string
}

// NewVideoClient wraps the given search client.
func NewVideoClient(client *Client) *VideoClient {
	return &VideoClient{client: client, scope: "site:youtube.com"}
}

// Search restricts the query to the video host and discards results that do
// not resolve to a playable video.
func (v *VideoClient) Search(ctx context.Context, query string, maxResults int) ([]VideoResult, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("search: video client is nil")
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}

	raw, err := v.client.Search(ctx, trimmed+" "+v.scope, maxResults)
	if err != nil {
		return nil, err
	}

	videos := make([]VideoResult, 0, len(raw))
	for _, item := range raw {
		id := ExtractVideoID(item.URL)
		if id == "" {
			continue
		}
		videos = append(videos, VideoResult{
			Title:   item.Title,
			URL:     item.URL,
			Snippet: item.Snippet,
			VideoID: id,
		})
	}
	return videos, nil
}

// ExtractVideoID returns the video identifier embedded in a YouTube URL, or
// "" when the URL does not belong to a known video host.
func ExtractVideoID(url string) string {
	match := videoURLPattern.FindStringSubmatch(url)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
