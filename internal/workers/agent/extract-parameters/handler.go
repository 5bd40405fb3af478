// internal/workers/agent/extract-parameters/handler.go
package extractparameters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mlops-agent/internal/common/camunda"
	"mlops-agent/internal/common/completion"
	apperrors "mlops-agent/internal/common/errors"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/common/metrics"
	"mlops-agent/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "extract-parameters"
)

var (
	ErrNotAnObject = errors.New("completion output is not a JSON object")

	tenurePattern = regexp.MustCompile(`(?i)(\d+)\s*(months?|mos?)\b`)
	dollarPattern = regexp.MustCompile(`\$\s?(\d+(?:\.\d+)?)`)
	// decimalPattern only accepts numbers with a fractional part; a bare
	// integer without a currency sign is too ambiguous to be a charge.
	decimalPattern = regexp.MustCompile(`\b(\d+\.\d+)\b`)

	countryPatterns = compileCountryPatterns(CountryAliases)
)

const systemInstruction = "You extract structured parameters for machine learning prediction services. " +
	"Respond with a single JSON object and nothing else. Use null for any value the user did not state."

type Handler struct {
	config     *Config
	completion completion.Client
	logger     logger.Logger
}

func NewHandler(config *Config, client completion.Client, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:     config,
		completion: client,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidQueryError(fmt.Sprintf("parse input: %v", err)), h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		camunda.FailJob(client, job, err, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, h.logger)
}

// Execute extracts a ParameterSet for a covid or churn query. Completion and
// parse failures are absorbed by the pattern fallback; the only error is a
// non-routable intent.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !input.Intent.Routable() {
		return nil, apperrors.NewInvalidQueryError(fmt.Sprintf("cannot extract parameters for intent %q", input.Intent))
	}

	out := &Output{Parameters: models.ParameterSet{}}

	params, err := h.extractWithCompletion(ctx, input)
	if err != nil {
		h.logger.Warn("completion extraction failed, using fallback", map[string]interface{}{
			"intent": input.Intent,
			"error":  err,
		})
	} else {
		out.Parameters = params
		out.CompletionUsed = true
	}

	out.FallbackFields = applyFallback(input.Intent, input.Query, out.Parameters)
	for _, field := range out.FallbackFields {
		metrics.ExtractionFallbacks.WithLabelValues(string(input.Intent), field).Inc()
	}

	h.logger.Info("parameters extracted", map[string]interface{}{
		"intent":         input.Intent,
		"fieldCount":     len(out.Parameters),
		"fallbackFields": out.FallbackFields,
		"completionUsed": out.CompletionUsed,
	})
	return out, nil
}

func (h *Handler) extractWithCompletion(ctx context.Context, input *Input) (models.ParameterSet, error) {
	if h.completion == nil {
		return nil, completion.ErrCompletionFailed
	}

	text, err := h.completion.Complete(ctx, []completion.Message{
		completion.SystemMessage(systemInstruction),
		completion.UserMessage(buildPrompt(input.Query, input.Intent)),
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("completion output", map[string]interface{}{"text": text})

	params, err := ParseParameters(text)
	if err != nil {
		return nil, apperrors.NewExtractionParseFailedError(err)
	}
	return params, nil
}

// ParseParameters decodes completion output into a ParameterSet. A fenced
// code block around the JSON is tolerated and null values are dropped.
func ParseParameters(text string) (models.ParameterSet, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &raw); err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, ErrNotAnObject
	}

	params := make(models.ParameterSet, len(obj))
	for k, v := range obj {
		if v == nil {
			continue
		}
		params[k] = v
	}
	return params, nil
}

// StripCodeFence removes a leading ``` or ```json marker and a trailing ```.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// applyFallback fills the fields the completion service did not provide and
// returns the names of the fields it set.
func applyFallback(intent models.Intent, query string, params models.ParameterSet) []string {
	var filled []string

	switch intent {
	case models.IntentCovid:
		if !params.Has(models.FieldCountryName) {
			if country, ok := matchCountry(query); ok {
				params[models.FieldCountryName] = country
				filled = append(filled, models.FieldCountryName)
			}
		}

	case models.IntentChurn:
		if !params.Has(models.FieldTenureMonths) {
			if m := tenurePattern.FindStringSubmatch(query); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					params[models.FieldTenureMonths] = n
					filled = append(filled, models.FieldTenureMonths)
				}
			}
		}
		if !params.Has(models.FieldMonthlyCharges) {
			if charge, ok := matchCharge(query); ok {
				params[models.FieldMonthlyCharges] = charge
				filled = append(filled, models.FieldMonthlyCharges)
			}
		}
	}

	return filled
}

func matchCountry(query string) (string, bool) {
	for i, re := range countryPatterns {
		if re.MatchString(query) {
			return CountryAliases[i].Country, true
		}
	}
	return "", false
}

// matchCharge prefers a $-prefixed amount, then a number with a fractional
// part. A bare integer such as "pays 85 per month" is not taken, since in
// "24 months ... $85" style queries integers are usually tenure or counts.
func matchCharge(query string) (float64, bool) {
	for _, re := range []*regexp.Regexp{dollarPattern, decimalPattern} {
		if m := re.FindStringSubmatch(query); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func compileCountryPatterns(aliases []CountryAlias) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(aliases))
	for i, a := range aliases {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(a.Alias) + `\b`)
	}
	return out
}

func buildPrompt(query string, intent models.Intent) string {
	var parts []string

	switch intent {
	case models.IntentCovid:
		parts = append(parts, fmt.Sprintf("Extract COVID-19 prediction parameters from this query: %q", query))
		parts = append(parts, "\nReturn a JSON object with these fields (use null for missing values):")
		parts = append(parts, `{
  "country_name": "country name",
  "confirmed_cases": "number of confirmed cases",
  "deaths": "number of deaths",
  "recovered": "number of recovered cases",
  "population": "country population",
  "vaccination_rate": "vaccination rate as decimal (0-1)",
  "testing_rate": "testing rate per 1M population"
}`)
		parts = append(parts, "\nExample:")
		parts = append(parts, `Query: "How risky is COVID in Italy with 20000 cases and 300 deaths?"`)
		parts = append(parts, `{"country_name": "Italy", "confirmed_cases": 20000, "deaths": 300, "recovered": null, "population": null, "vaccination_rate": null, "testing_rate": null}`)

	case models.IntentChurn:
		parts = append(parts, fmt.Sprintf("Extract telco customer churn prediction parameters from this query: %q", query))
		parts = append(parts, "\nReturn a JSON object with these fields (use null for missing values):")
		parts = append(parts, `{
  "customer_id": "unique customer identifier",
  "age": "customer age",
  "tenure_months": "months as customer",
  "monthly_charges": "monthly charge amount",
  "total_charges": "total charges to date",
  "contract_type": "contract type (Month-to-month, One year, Two year)",
  "internet_service_type": "internet service (DSL, Fiber optic, No)",
  "tech_support": "has tech support (true/false)",
  "online_security": "has online security (true/false)",
  "support_tickets_count": "number of support tickets"
}`)
		parts = append(parts, "\nExample:")
		parts = append(parts, `Query: "Will customer C-778 on a two year contract with fiber churn? 12 months, $70.25 a month."`)
		parts = append(parts, `{"customer_id": "C-778", "age": null, "tenure_months": 12, "monthly_charges": 70.25, "total_charges": null, "contract_type": "Two year", "internet_service_type": "Fiber optic", "tech_support": null, "online_security": null, "support_tickets_count": null}`)
	}

	parts = append(parts, "\nOnly return the JSON object, no other text.")
	return strings.Join(parts, "\n")
}
