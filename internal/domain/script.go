package domain

// ScriptPayload is the normalized output of the script backend.
// Title, Topics and Sources are only expected for full episodes;
// a prose-only response leaves them empty.
type ScriptPayload struct {
	Title   string     `json:"title"`
	Script  string     `json:"script"`
	Topics  []string   `json:"topics"`
	Sources []Citation `json:"sources"`
}

// HasMetadata reports whether the backend returned anything beyond
// bare narration text.
func (p *ScriptPayload) HasMetadata() bool {
	return p.Title != "" || len(p.Topics) > 0 || len(p.Sources) > 0
}
