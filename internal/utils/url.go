package utils

import (
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid", "si"}

var youtubeHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

var ErrNotYouTube = errors.New("not a youtube link")

func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

func NormalizeURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	host := strings.ToLower(parsed.Hostname())
	asciiHost, err := idna.ToASCII(host)
	if err == nil {
		host = asciiHost
	}
	if host == "" {
		return "", "", errors.New("missing host")
	}

	parsed.Host = host
	parsed.Fragment = ""
	parsed.User = nil

	query := parsed.Query()
	for _, key := range trackingParams {
		query.Del(key)
	}
	parsed.RawQuery = normalizeQuery(query)

	return parsed.String(), host, nil
}

func normalizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := url.Values{}
	for _, key := range keys {
		clean[key] = values[key]
	}
	return clean.Encode()
}

// IsYouTubeURL reports whether raw points at a youtube video host.
func IsYouTubeURL(raw string) bool {
	_, err := YouTubeSource(raw)
	return err == nil
}

// YouTubeSource normalizes raw and rejects anything that is not a youtube video link.
func YouTubeSource(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrNotYouTube
	}
	normalized, host, err := NormalizeURL(raw)
	if err != nil {
		return "", ErrNotYouTube
	}
	if _, ok := youtubeHosts[host]; !ok {
		return "", ErrNotYouTube
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", ErrNotYouTube
	}
	if host == "youtu.be" {
		if strings.Trim(parsed.Path, "/") == "" {
			return "", ErrNotYouTube
		}
		return normalized, nil
	}
	if parsed.Query().Get("v") == "" && !strings.HasPrefix(parsed.Path, "/shorts/") && !strings.HasPrefix(parsed.Path, "/live/") {
		return "", ErrNotYouTube
	}
	return normalized, nil
}
