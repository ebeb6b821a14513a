package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"podcaster/internal/domain"
)

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

// UpsertBatch inserts the posts, refreshing score and comment counts
// for posts already seen on a previous run.
func (s *PostStore) UpsertBatch(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO posts (
		subreddit, external_id, title, author, url, permalink,
		self_text, score, num_comments, posted_at
	) VALUES `)

	const cols = 10
	args := make([]interface{}, 0, len(posts)*cols)
	for i, p := range posts {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*cols+j+1)
		}
		sb.WriteString(")")
		args = append(args,
			p.Subreddit, p.ExternalID, p.Title, p.Author, p.URL,
			p.Permalink, p.SelfText, p.Score, p.NumComments, p.PostedAt,
		)
	}
	sb.WriteString(` ON CONFLICT (subreddit, external_id) DO UPDATE SET
		title = EXCLUDED.title,
		score = EXCLUDED.score,
		num_comments = EXCLUDED.num_comments`)

	ex := GetExecutor(ctx, s.db)
	_, err := ex.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetExistingExternalIDs returns which of the given external ids are
// already stored for the subreddit.
func (s *PostStore) GetExistingExternalIDs(ctx context.Context, subreddit string, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(ids) == 0 {
		return existing, nil
	}

	query := `SELECT external_id FROM posts WHERE subreddit = $1 AND external_id = ANY($2)`

	rows, err := s.db.QueryContext(ctx, query, subreddit, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}

	return existing, rows.Err()
}
