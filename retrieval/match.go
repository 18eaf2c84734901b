package retrieval

// Match is the winning candidate of a scan together with its score.
type Match[T any] struct {
	Item  T
	Score float64
}

// BestMatch scans candidates left to right and keeps the one with the highest
// cosine similarity to query. Ties keep the first-seen candidate, which makes
// answers reproducible for identical inputs. Returns nil for an empty
// candidate set. Candidates without a vector are skipped.
func BestMatch[T any](dim int, query []float32, candidates []T, vector func(T) []float32) (*Match[T], error) {
	var best *Match[T]
	for i := range candidates {
		vec := vector(candidates[i])
		if vec == nil {
			continue
		}
		score, err := CosineSimilarity(query, vec, dim)
		if err != nil {
			return nil, err
		}
		if best == nil || score > best.Score {
			best = &Match[T]{Item: candidates[i], Score: score}
		}
	}
	return best, nil
}

// BestOfTwo runs BestMatch independently against two candidate collections
// and reports whether the secondary collection's winner should be surfaced.
// The secondary wins only with a strictly greater score; an exact tie keeps
// the primary collection. Either match may be nil when its collection is
// empty.
func BestOfTwo[P, S any](
	dim int,
	query []float32,
	primary []P, primaryVector func(P) []float32,
	secondary []S, secondaryVector func(S) []float32,
) (*Match[P], *Match[S], bool, error) {
	pm, err := BestMatch(dim, query, primary, primaryVector)
	if err != nil {
		return nil, nil, false, err
	}
	sm, err := BestMatch(dim, query, secondary, secondaryVector)
	if err != nil {
		return nil, nil, false, err
	}

	switch {
	case pm == nil && sm == nil:
		return nil, nil, false, nil
	case pm == nil:
		return nil, sm, true, nil
	case sm == nil:
		return pm, nil, false, nil
	default:
		return pm, sm, sm.Score > pm.Score, nil
	}
}
