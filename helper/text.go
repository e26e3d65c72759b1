package helper

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// QueryHash returns the md5 hex digest of the lower-cased, trimmed query.
// It is used as response cache key and as question node id.
func QueryHash(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// StripCodeFence removes a markdown code fence and its language tag around
// model output. Unfenced content is only trimmed.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")

	// Everything before the first newline or JSON delimiter is a language tag
	if i := strings.IndexAny(content, "{[\n"); i >= 0 {
		if content[i] == '\n' {
			i++
		}
		content = content[i:]
	}
	return strings.TrimSpace(content)
}
