package retrieval

import (
	"safeplan/internal/models"
	"safeplan/internal/util"
)

// JaccardMMR is the default diversity re-ranker: greedy maximal marginal
// relevance over token sets, trading retrieval score against similarity to
// chunks already selected.
type JaccardMMR struct {
	// Lambda weighs relevance against diversity; 0.7 favors relevance.
	Lambda float64
}

func (m JaccardMMR) Rerank(query string, candidates []models.ChunkResult, topK int) []models.ChunkResult {
	lambda := m.Lambda
	if lambda <= 0 || lambda > 1 {
		lambda = 0.7
	}
	if topK >= len(candidates) {
		return candidates
	}

	remaining := append([]models.ChunkResult(nil), candidates...)
	selected := make([]models.ChunkResult, 0, topK)
	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0
		for i, c := range remaining {
			rel := c.Score
			if rel == 0 {
				rel = util.JaccardSimilarity(query, c.ChunkText)
			}
			maxSim := 0.0
			for _, s := range selected {
				if sim := util.JaccardSimilarity(c.ChunkText, s.ChunkText); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*rel - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}
