package service

import (
	"fmt"
	"regexp"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// DefaultEUMembers is the EU membership table used for EU_OTHER classification.
var DefaultEUMembers = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU", "IE",
	"IT", "LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE",
}

// GeographicClassifier assigns exposures to a region relative to the home country.
type GeographicClassifier struct {
	home valueobject.CountryCode
	eu   map[valueobject.CountryCode]struct{}
}

// NewGeographicClassifier creates a classifier. A nil members list uses DefaultEUMembers.
func NewGeographicClassifier(home valueobject.CountryCode, members []string) (GeographicClassifier, error) {
	if home.IsZero() {
		return GeographicClassifier{}, fmt.Errorf("home country is required")
	}
	if members == nil {
		members = DefaultEUMembers
	}
	eu := make(map[valueobject.CountryCode]struct{}, len(members))
	for _, m := range members {
		code, err := valueobject.NewCountryCode(m)
		if err != nil {
			return GeographicClassifier{}, fmt.Errorf("invalid EU member: %w", err)
		}
		eu[code] = struct{}{}
	}
	return GeographicClassifier{home: home, eu: eu}, nil
}

// Classify returns ITALY for the home country, EU_OTHER for other EU members and
// NON_EUROPEAN for everything else.
func (c GeographicClassifier) Classify(country valueobject.CountryCode) valueobject.GeographicRegion {
	if country.Equal(c.home) {
		return valueobject.RegionItaly
	}
	if _, ok := c.eu[country]; ok {
		return valueobject.RegionEUOther
	}
	return valueobject.RegionNonEuropean
}

// SectorRule maps product codes matching Pattern to Sector.
type SectorRule struct {
	Pattern string
	Sector  string
}

// DefaultSectorRules is the built-in ordered rule table.
func DefaultSectorRules() []SectorRule {
	return []SectorRule{
		{Pattern: "MORTGAGE", Sector: "RETAIL_MORTGAGE"},
		{Pattern: "RETAIL", Sector: "RETAIL_MORTGAGE"},
		{Pattern: "SOVEREIGN|GOVERNMENT|TREASURY|CENTRAL_BANK", Sector: "SOVEREIGN"},
		{Pattern: "BANK|INTERBANK", Sector: "BANKING"},
		{Pattern: "CORPORATE|COMMERCIAL|BUSINESS|SME", Sector: "CORPORATE"},
	}
}

type compiledRule struct {
	re     *regexp.Regexp
	sector valueobject.EconomicSector
}

// SectorClassifier maps product and instrument codes to an economic sector using
// an ordered rule table; the first matching rule wins.
type SectorClassifier struct {
	rules []compiledRule
}

// NewSectorClassifier compiles rules. It fails on an invalid pattern or sector.
func NewSectorClassifier(rules []SectorRule) (*SectorClassifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sector rule %d: invalid pattern %q: %w", i, r.Pattern, err)
		}
		sector, err := valueobject.NewEconomicSector(r.Sector)
		if err != nil {
			return nil, fmt.Errorf("sector rule %d: %w", i, err)
		}
		compiled = append(compiled, compiledRule{re: re, sector: sector})
	}
	return &SectorClassifier{rules: compiled}, nil
}

// Classify matches the normalized product type first, then the instrument type,
// and falls back to OTHER.
func (c *SectorClassifier) Classify(productType string, instrumentType valueobject.InstrumentType) valueobject.EconomicSector {
	if s, ok := c.match(valueobject.NormalizeCode(productType)); ok {
		return s
	}
	if s, ok := c.match(instrumentType.String()); ok {
		return s
	}
	return valueobject.SectorOther
}

func (c *SectorClassifier) match(code string) (valueobject.EconomicSector, bool) {
	if code == "" {
		return valueobject.EconomicSector{}, false
	}
	for _, r := range c.rules {
		if r.re.MatchString(code) {
			return r.sector, true
		}
	}
	return valueobject.EconomicSector{}, false
}
