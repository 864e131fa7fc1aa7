package reasoning

import "github.com/brunobiangulo/goknow/graph"

// Weights of the relevance blend.
const (
	maxWeight = 0.7
	avgWeight = 0.3
)

// maxAnswerConfidence caps the confidence reported for any template answer.
const maxAnswerConfidence = 0.9

// EvaluateRelevance blends the best and the mean relevance of results into
// one score in [0, 1]. The query is accepted for interface stability and is
// not used.
func EvaluateRelevance(results []graph.Result, query string) float64 {
	if len(results) == 0 {
		return 0
	}
	best, sum := results[0].Relevance, 0.0
	for _, r := range results {
		sum += r.Relevance
		if r.Relevance > best {
			best = r.Relevance
		}
	}
	avg := sum / float64(len(results))
	return maxWeight*best + avgWeight*avg
}

// answerConfidence is the top relevance, capped.
func answerConfidence(top float64) float64 {
	if top > maxAnswerConfidence {
		return maxAnswerConfidence
	}
	return top
}
