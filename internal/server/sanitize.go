package server

import (
	"net/url"
	"strings"

	"mvdan.cc/xurls/v2"
)

var urlPattern = xurls.Strict()

// collapseURLs replaces every bare URL in the selection with just its
// host. Full links are noise to the summarization prompt; the host keeps
// enough context to mention the source.
func collapseURLs(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(match string) string {
		u, err := url.Parse(match)
		if err != nil || u.Host == "" {
			return match
		}
		return strings.TrimPrefix(u.Host, "www.")
	})
}
