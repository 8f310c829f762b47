// Package agent – tools_web.go registers web_fetch. Fetches are
// outbound-only GET requests with bounded response size, and the body
// is sanitized like any other tool output.
package agent

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// maxFetchBytes caps how much of a response body is returned.
	maxFetchBytes = 512 * 1024

	fetchTimeout = 30 * time.Second
)

func (a *Assistant) registerWebTool() {
	a.tools.Register(MakeToolDefinition("web_fetch",
		"Fetch a public web page over HTTP GET and return its body as text.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "The http(s) URL to fetch"},
			},
			"required": []string{"url"},
		}), a.toolWebFetch)
}

func (a *Assistant) toolWebFetch(ctx context.Context, args map[string]any) (any, error) {
	rawURL := getString(args, "url")
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, BlockedErrorf("only http and https URLs can be fetched")
	}
	if isPrivateHost(u.Hostname()) {
		return nil, BlockedErrorf("requests to internal addresses are not allowed")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "chatclaw/1.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	truncated := false
	if len(body) > maxFetchBytes {
		body = body[:maxFetchBytes]
		truncated = true
	}

	clean, _ := a.sanitizer.Process(string(body))

	out := map[string]any{
		"success":      resp.StatusCode < 400,
		"status":       resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"body":         clean,
	}
	if truncated {
		out["note"] = fmt.Sprintf("body truncated to %d bytes", maxFetchBytes)
	}
	return out, nil
}

// isPrivateHost rejects loopback, link-local, and RFC1918 targets so
// web_fetch cannot probe the host or its network.
func isPrivateHost(host string) bool {
	if host == "" || strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		// Hostnames resolve at dial time; block the obvious internal
		// suffixes and let DNS handle the rest.
		return strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal")
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
