package ml

import "errors"

var (
	// ErrModelUnavailable means no backing model could be loaded; scoring runs on the heuristic.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInferenceFailure wraps any failure raised while a model was predicting.
	ErrInferenceFailure = errors.New("inference failure")

	// ErrInferenceTimeout means the model did not answer within its budget.
	ErrInferenceTimeout = errors.New("inference timed out")

	// ErrInvalidModel means a model file parsed but its contents are unusable.
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidFeatures means the feature vector could not be fed to a model.
	ErrInvalidFeatures = errors.New("invalid feature vector")
)
