package model

// Classifier is a binary probabilistic model over encoded records.
type Classifier interface {
	// PredictMaliciousProbability returns the probability in [0,1] that the record is malicious.
	PredictMaliciousProbability(rec EncodedRecord) (float64, error)
}
