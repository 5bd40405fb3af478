// internal/workers/agent/extract-parameters/config.go
package extractparameters

import "time"

type Config struct {
	// Timeout bounds a whole job when run as a workflow task. The completion
	// client applies its own per-call timeout.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}

// CountryAlias maps a spelling found in free text to the country_name sent
// to the covid service.
type CountryAlias struct {
	Alias   string
	Country string
}

// CountryAliases is scanned in order; the first alias found in the query wins.
var CountryAliases = []CountryAlias{
	{"United States", "USA"},
	{"USA", "USA"},
	{"United Kingdom", "UK"},
	{"UK", "UK"},
	{"Britain", "UK"},
	{"England", "UK"},
	{"India", "India"},
	{"Brazil", "Brazil"},
	{"France", "France"},
	{"Germany", "Germany"},
	{"Italy", "Italy"},
	{"Spain", "Spain"},
	{"Russia", "Russia"},
	{"China", "China"},
	{"Japan", "Japan"},
	{"South Korea", "South Korea"},
	{"Korea", "South Korea"},
	{"Canada", "Canada"},
	{"Mexico", "Mexico"},
	{"Argentina", "Argentina"},
	{"Colombia", "Colombia"},
	{"Peru", "Peru"},
	{"Chile", "Chile"},
	{"South Africa", "South Africa"},
	{"Nigeria", "Nigeria"},
	{"Egypt", "Egypt"},
	{"Turkey", "Turkey"},
	{"Iran", "Iran"},
	{"Indonesia", "Indonesia"},
	{"Pakistan", "Pakistan"},
	{"Bangladesh", "Bangladesh"},
	{"Philippines", "Philippines"},
	{"Vietnam", "Vietnam"},
	{"Australia", "Australia"},
	{"New Zealand", "New Zealand"},
	{"Netherlands", "Netherlands"},
	{"Belgium", "Belgium"},
	{"Sweden", "Sweden"},
	{"Norway", "Norway"},
	{"Poland", "Poland"},
	{"Portugal", "Portugal"},
	{"Ireland", "Ireland"},
	{"Israel", "Israel"},
}
