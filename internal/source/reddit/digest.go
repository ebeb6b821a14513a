package reddit

import (
	"fmt"
	"strings"
	"time"

	"podcaster/internal/domain"
)

const selfTextLimit = 500

// FormatDigest renders the day's posts as a markdown document for the
// knowledge corpus.
func (s *Source) FormatDigest(subreddit string, posts []domain.Post, date string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Reddit /r/%s - %s\n\n", subreddit, date)
	sb.WriteString("Top posts from the last 24 hours:\n\n")

	for _, post := range posts {
		fmt.Fprintf(&sb, "## %s\n\n", post.Title)
		fmt.Fprintf(&sb, "- **Author**: u/%s\n", post.Author)
		fmt.Fprintf(&sb, "- **Score**: %d | **Comments**: %d\n", post.Score, post.NumComments)
		fmt.Fprintf(&sb, "- **URL**: https://reddit.com%s\n", post.Permalink)
		fmt.Fprintf(&sb, "- **Posted**: %s\n\n", post.PostedAt.UTC().Format(time.RFC3339))

		if post.SelfText != "" {
			text := post.SelfText
			if len(text) > selfTextLimit {
				text = text[:selfTextLimit] + "..."
			}
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}

		if post.URL != "" && !strings.Contains(post.URL, "reddit.com") {
			fmt.Fprintf(&sb, "**Link**: %s\n\n", post.URL)
		}

		sb.WriteString("---\n\n")
	}

	return sb.String()
}
