package script

import (
	"fmt"

	"podcaster/internal/domain"
)

const teaserPromptTemplate = `Based on the knowledge base, create a short, exciting teaser about the MOST IMPORTANT recent AI story.

PRIORITIZATION (in order):
1. First, look for groundbreaking news from %s (today)
2. If nothing significant from today, look at yesterday's news
3. Only go back further if needed - always use the most recent date available

Choose the single most impactful story - look for:
- Major model releases or breakthroughs
- Significant research findings
- Important industry announcements
- Game-changing developments

RETURN YOUR RESPONSE AS VALID JSON with this exact structure:
{
  "title": "A short, catchy title (5-10 words)",
  "script": "Your exciting teaser script here - keep it punchy!"
}

IMPORTANT:
- The "title" should be brief and attention-grabbing
- The "script" field contains ONLY the text to be read aloud
- Keep the script short (10-15 seconds max)
- Make it exciting and engaging
- NO labels or markers in the script

Return ONLY valid JSON.`

const fullPromptTemplate = `Based on the knowledge base, summarize the MOST IMPORTANT recent AI news and discussions.

PRIORITIZATION (in order):
1. First, look for major news from %s (today)
2. If nothing significant from today, look at yesterday's news
3. Only go back further if absolutely necessary - always prioritize the most recent date available

STORY SELECTION - Choose only the TOP 3-5 most important stories based on:
- Impact on the AI field (major breakthroughs, model releases, research findings)
- Industry significance (funding rounds, company announcements, policy changes)
- Practical implications (new capabilities, tools, or applications)
- Community buzz (highly discussed topics)

RETURN YOUR RESPONSE AS VALID, COMPLETE JSON with this exact structure:
{
  "title": "A catchy episode title",
  "script": "ONLY the spoken narration - no labels or markers",
  "topics": ["Topic 1", "Topic 2", "Topic 3"],
  "sources": [{"type": "news", "title": "Short Title", "url": "https://..."}]
}

IMPORTANT: Keep the response concise to avoid truncation. Limit script to 2-3 minutes of content. Use short source titles.

CRITICAL - THE SCRIPT FIELD:
- Contains ONLY the text to be read aloud by text-to-speech
- NO labels like "intro:", "script:", "story 1:"
- Just a continuous, natural-sounding narrative
- For EACH story include what happened, why it matters, and what makes it significant

IMPORTANT: If using news from a day or two ago (not %s), don't mention exact dates in the script. Say "this week in AI" or "recent developments".

Return ONLY valid JSON - be selective and engaging!`

// buildPrompt returns the mode-specific instruction set for the given
// calendar date (YYYY-MM-DD).
func buildPrompt(date string, mode domain.Mode) string {
	if mode == domain.ModeTeaser {
		return fmt.Sprintf(teaserPromptTemplate, date)
	}
	return fmt.Sprintf(fullPromptTemplate, date, date)
}
