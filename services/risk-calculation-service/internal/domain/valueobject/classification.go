package valueobject

import "fmt"

// GeographicRegion is the regional bucket of an exposure's country.
type GeographicRegion struct {
	value string
}

var (
	RegionItaly       = GeographicRegion{value: "ITALY"}
	RegionEUOther     = GeographicRegion{value: "EU_OTHER"}
	RegionNonEuropean = GeographicRegion{value: "NON_EUROPEAN"}
)

var validRegions = map[string]GeographicRegion{
	RegionItaly.value:       RegionItaly,
	RegionEUOther.value:     RegionEUOther,
	RegionNonEuropean.value: RegionNonEuropean,
}

// AllRegions lists regions in reporting order.
func AllRegions() []GeographicRegion {
	return []GeographicRegion{RegionItaly, RegionEUOther, RegionNonEuropean}
}

// NewGeographicRegion creates a GeographicRegion from its name.
func NewGeographicRegion(s string) (GeographicRegion, error) {
	r, ok := validRegions[s]
	if !ok {
		return GeographicRegion{}, fmt.Errorf("invalid geographic region: %q", s)
	}
	return r, nil
}

func (r GeographicRegion) String() string { return r.value }
func (r GeographicRegion) IsZero() bool   { return r.value == "" }

// EconomicSector is the sector bucket of an exposure.
type EconomicSector struct {
	value string
}

var (
	SectorRetailMortgage = EconomicSector{value: "RETAIL_MORTGAGE"}
	SectorSovereign      = EconomicSector{value: "SOVEREIGN"}
	SectorCorporate      = EconomicSector{value: "CORPORATE"}
	SectorBanking        = EconomicSector{value: "BANKING"}
	SectorOther          = EconomicSector{value: "OTHER"}
)

var validSectors = map[string]EconomicSector{
	SectorRetailMortgage.value: SectorRetailMortgage,
	SectorSovereign.value:      SectorSovereign,
	SectorCorporate.value:      SectorCorporate,
	SectorBanking.value:        SectorBanking,
	SectorOther.value:          SectorOther,
}

// AllSectors lists sectors in reporting order.
func AllSectors() []EconomicSector {
	return []EconomicSector{SectorRetailMortgage, SectorSovereign, SectorCorporate, SectorBanking, SectorOther}
}

// NewEconomicSector creates an EconomicSector from its name.
func NewEconomicSector(s string) (EconomicSector, error) {
	sec, ok := validSectors[s]
	if !ok {
		return EconomicSector{}, fmt.Errorf("invalid economic sector: %q", s)
	}
	return sec, nil
}

func (s EconomicSector) String() string { return s.value }
func (s EconomicSector) IsZero() bool   { return s.value == "" }

// MitigationType is the kind of credit risk mitigation.
type MitigationType struct {
	value string
}

var (
	MitigationFinancialCollateral = MitigationType{value: "FINANCIAL_COLLATERAL"}
	MitigationGuarantee           = MitigationType{value: "GUARANTEE"}
	MitigationPhysicalAsset       = MitigationType{value: "PHYSICAL_ASSET"}
	MitigationRealEstate          = MitigationType{value: "REAL_ESTATE"}
)

var validMitigationTypes = map[string]MitigationType{
	MitigationFinancialCollateral.value: MitigationFinancialCollateral,
	MitigationGuarantee.value:           MitigationGuarantee,
	MitigationPhysicalAsset.value:       MitigationPhysicalAsset,
	MitigationRealEstate.value:          MitigationRealEstate,
}

// NewMitigationType normalizes and validates a mitigation type.
func NewMitigationType(s string) (MitigationType, error) {
	mt, ok := validMitigationTypes[normalizeCode(s)]
	if !ok {
		return MitigationType{}, fmt.Errorf("invalid mitigation type: %q", s)
	}
	return mt, nil
}

func (m MitigationType) String() string { return m.value }
