// internal/models/prediction.go
package models

// Field names shared by the extractor, the orchestrator and the prediction services.
const (
	FieldCountryName         = "country_name"
	FieldConfirmedCases      = "confirmed_cases"
	FieldDeaths              = "deaths"
	FieldRecovered           = "recovered"
	FieldPopulation          = "population"
	FieldVaccinationRate     = "vaccination_rate"
	FieldTestingRate         = "testing_rate"
	FieldCustomerID          = "customer_id"
	FieldAge                 = "age"
	FieldTenureMonths        = "tenure_months"
	FieldMonthlyCharges      = "monthly_charges"
	FieldTotalCharges        = "total_charges"
	FieldContractType        = "contract_type"
	FieldInternetServiceType = "internet_service_type"
	FieldTechSupport         = "tech_support"
	FieldOnlineSecurity      = "online_security"
	FieldSupportTicketsCount = "support_tickets_count"

	// PredictionErrorKey marks a PredictionResult as an upstream failure.
	PredictionErrorKey = "error"
)

// CovidFields lists the covid ParameterSet fields in prompt order.
var CovidFields = []string{
	FieldCountryName, FieldConfirmedCases, FieldDeaths, FieldRecovered,
	FieldPopulation, FieldVaccinationRate, FieldTestingRate,
}

// ChurnFields lists the churn ParameterSet fields in prompt order.
var ChurnFields = []string{
	FieldCustomerID, FieldAge, FieldTenureMonths, FieldMonthlyCharges, FieldTotalCharges,
	FieldContractType, FieldInternetServiceType, FieldTechSupport, FieldOnlineSecurity,
	FieldSupportTicketsCount,
}

// ParameterSet maps field names to string, number, boolean or nil values.
type ParameterSet map[string]interface{}

// Has reports whether key is present with a non-nil value.
func (p ParameterSet) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Clone returns a shallow copy so callers can add defaults without mutating the input.
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// PredictionResult is the raw JSON object returned by a prediction service.
type PredictionResult map[string]interface{}

// ErrorMessage returns the upstream error message, if the result carries one.
func (r PredictionResult) ErrorMessage() (string, bool) {
	v, ok := r[PredictionErrorKey]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return "", true
}

// NewPredictionError builds a PredictionResult carrying only an error message.
func NewPredictionError(message string) PredictionResult {
	return PredictionResult{PredictionErrorKey: message}
}
