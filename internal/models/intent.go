// internal/models/intent.go
package models

// Intent is the inferred prediction domain of a user query.
type Intent string

const (
	IntentCovid   Intent = "covid"
	IntentChurn   Intent = "churn"
	IntentUnknown Intent = "unknown"
)

// Valid reports whether the intent is one of the three known values.
func (i Intent) Valid() bool {
	switch i {
	case IntentCovid, IntentChurn, IntentUnknown:
		return true
	}
	return false
}

// Routable reports whether the intent maps to a prediction service.
func (i Intent) Routable() bool {
	return i == IntentCovid || i == IntentChurn
}

// ModelLabel returns the human-readable label of the model serving the intent.
func (i Intent) ModelLabel() string {
	switch i {
	case IntentCovid:
		return "COVID-19 Prediction Model"
	case IntentChurn:
		return "Churn Prediction Model"
	}
	return ""
}
