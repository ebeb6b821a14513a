package reddit

// listingResponse is the shape of /r/<subreddit>/top.json.
type listingResponse struct {
	Data struct {
		Children []struct {
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	Name        string  `json:"name"` // fullname, e.g. "t3_abc123"
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	SelfText    string  `json:"selftext"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
}
