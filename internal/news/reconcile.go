package news

import "github.com/deusflow/newsledger/internal/titlekey"

// KeyUpdate rewrites the dedup-key cell of one ledger row.
type KeyUpdate struct {
	Row int
	Key string
}

// ExistingURLs is the identity key set of a ledger.
func ExistingURLs(rows []LedgerRow) map[string]struct{} {
	set := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r.URL != "" {
			set[r.URL] = struct{}{}
		}
	}
	return set
}

// SelectNew keeps the candidates whose URL is neither recorded nor already
// taken by an earlier candidate, preserving order.
func SelectNew(cands []Candidate, existing map[string]struct{}) []Candidate {
	seen := make(map[string]struct{}, len(cands))
	var out []Candidate
	for _, c := range cands {
		if _, ok := existing[c.URL]; ok {
			continue
		}
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// RecomputeKeys returns a rewrite for every row whose stored key is not the
// key of its title. Applying the result and running it again yields nothing.
func RecomputeKeys(rows []LedgerRow, keys titlekey.Strategy) []KeyUpdate {
	var out []KeyUpdate
	for _, r := range rows {
		want := keys.Key(r.Title)
		if want != r.DedupKey {
			out = append(out, KeyUpdate{Row: r.Number, Key: want})
		}
	}
	return out
}
