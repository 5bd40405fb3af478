// internal/workers/agent/classify-intent/config.go
package classifyintent

// CovidKeywords and ChurnKeywords are matched as lower-case substrings.
var (
	CovidKeywords = []string{
		"covid", "coronavirus", "pandemic", "virus", "infection",
		"cases", "deaths", "vaccination", "testing", "outbreak",
		"epidemic", "disease", "health", "country", "spread",
	}

	ChurnKeywords = []string{
		"churn", "customer", "leave", "cancel", "subscription",
		"billing", "service", "complaint", "support", "contract",
		"retention", "loyalty", "telecom", "internet", "phone",
	}
)

type Config struct {
	CovidKeywords []string
	ChurnKeywords []string
}

func LoadConfig() *Config {
	return &Config{
		CovidKeywords: CovidKeywords,
		ChurnKeywords: ChurnKeywords,
	}
}
