package classifier

import "strings"

// Predictor assigns a category label to a message. Handlers depend on this
// interface so tests can substitute a fake.
type Predictor interface {
	Classify(subject, body string) string
}

// Classifier pairs a trained vectorizer with a trained model behind a single
// classify operation.
type Classifier struct {
	vectorizer *Vectorizer
	model      *NaiveBayes
}

// New builds a classifier from already-loaded artifacts.
func New(vectorizer *Vectorizer, model *NaiveBayes) *Classifier {
	return &Classifier{vectorizer: vectorizer, model: model}
}

// Load reads the vectorizer and classifier artifacts from their configured
// paths. Called once at startup; the artifacts are immutable afterwards.
func Load(vectorizerPath, modelPath string) (*Classifier, error) {
	vectorizer, err := LoadVectorizer(vectorizerPath)
	if err != nil {
		return nil, err
	}

	model, err := LoadNaiveBayes(modelPath)
	if err != nil {
		return nil, err
	}

	return New(vectorizer, model), nil
}

// Classify predicts a category for a message from its subject and body.
// Either part may be empty; with no usable text at all the model still
// returns its best-effort label from the class priors.
func (c *Classifier) Classify(subject, body string) string {
	text := strings.TrimSpace(subject + " " + body)
	return c.model.Predict(c.vectorizer.Transform(text))
}
