package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Vectorizer is a trained TF-IDF vectorizer. The vocabulary and IDF weights
// are produced offline by the training pipeline and loaded here as-is.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// LoadVectorizer reads a vectorizer artifact from disk.
func LoadVectorizer(path string) (*Vectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vectorizer artifact: %w", err)
	}

	var v Vectorizer
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vectorizer artifact: %w", err)
	}

	for word, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return nil, fmt.Errorf("vectorizer vocabulary entry %q has index %d outside IDF table of size %d", word, idx, len(v.IDF))
		}
	}

	return &v, nil
}

// Transform converts raw text into an L2-normalized TF-IDF feature vector.
// The text is normalized with the shared Normalize transform first.
// Out-of-vocabulary tokens are ignored; empty text yields a zero vector.
func (v *Vectorizer) Transform(text string) []float64 {
	features := make([]float64, len(v.IDF))

	for _, token := range Tokenize(text) {
		if idx, ok := v.Vocabulary[token]; ok {
			features[idx] += v.IDF[idx]
		}
	}

	var norm float64
	for _, f := range features {
		norm += f * f
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range features {
			features[i] /= norm
		}
	}

	return features
}

// NaiveBayes is a trained multinomial naive Bayes classifier over TF-IDF
// features. Labels are opaque strings defined by whatever model was trained.
type NaiveBayes struct {
	Classes        []string    `json:"classes"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
}

// LoadNaiveBayes reads a classifier artifact from disk.
func LoadNaiveBayes(path string) (*NaiveBayes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier artifact: %w", err)
	}

	var m NaiveBayes
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse classifier artifact: %w", err)
	}

	if len(m.Classes) == 0 {
		return nil, fmt.Errorf("classifier artifact has no classes")
	}
	if len(m.ClassLogPrior) != len(m.Classes) || len(m.FeatureLogProb) != len(m.Classes) {
		return nil, fmt.Errorf("classifier artifact is inconsistent: %d classes, %d priors, %d likelihood rows",
			len(m.Classes), len(m.ClassLogPrior), len(m.FeatureLogProb))
	}

	return &m, nil
}

// Predict returns the label with the highest posterior log-probability.
// Ties break toward the lowest class index, so prediction is deterministic.
func (m *NaiveBayes) Predict(features []float64) string {
	best := 0
	bestScore := math.Inf(-1)

	for i := range m.Classes {
		score := m.ClassLogPrior[i]
		row := m.FeatureLogProb[i]
		for j, f := range features {
			if f != 0 && j < len(row) {
				score += f * row[j]
			}
		}
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	return m.Classes[best]
}
