package store

import (
	"context"
	"strings"

	"github.com/synapsegraph/synapse/pkg/errs"
)

// MatchFTS returns the set of memory ids, scoped to userID, whose content
// matches an FTS5 MATCH query for token. It accelerates the sparse-score
// token-membership test in the retrieval pipeline against the FTS5 shadow
// table instead of scanning raw content strings per candidate. It is an
// acceleration path only: the per-token-match scoring contract is computed
// identically by callers whether or not this is consulted.
func (s *Store) MatchFTS(ctx context.Context, userID, token string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id FROM memories_fts fts
		JOIN memories m ON m.id = fts.id
		WHERE memories_fts MATCH ? AND m.user_id = ?
	`, escapeFTS5Query(token), userID)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "MatchFTS", err)
	}
	defer rows.Close()

	matched := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.New(errs.StoreUnavailable, "MatchFTS", err)
		}
		matched[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.StoreUnavailable, "MatchFTS", err)
	}
	return matched, nil
}

// escapeFTS5Query escapes characters that would otherwise be interpreted by
// FTS5's query syntax.
func escapeFTS5Query(query string) string {
	replacer := strings.NewReplacer(`"`, `""`)
	return `"` + replacer.Replace(query) + `"`
}
