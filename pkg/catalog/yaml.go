package catalog

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Version string           `yaml:"version"`
	Quotas  map[Tier]int64   `yaml:"quotas"`
	Prices  map[string]price `yaml:"prices"`
}

type price struct {
	Tier   Tier          `yaml:"tier"`
	Period BillingPeriod `yaml:"period"`
}

// ParseYAML builds a catalog from a versioned YAML table. Quotas are
// optional; omitted tiers fall back to the defaults.
func ParseYAML(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Join(ErrParseFailed, err)
	}

	quotas := DefaultQuotas()
	for tier, quota := range file.Quotas {
		quotas[tier] = quota
	}

	prices := make(map[string]PlanPrice, len(file.Prices))
	for ref, p := range file.Prices {
		prices[ref] = PlanPrice{Tier: p.Tier, Period: p.Period}
	}

	return NewWithQuotas(file.Version, prices, quotas)
}

// LoadFile reads and parses a catalog YAML file from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrParseFailed, err)
	}
	return ParseYAML(data)
}
