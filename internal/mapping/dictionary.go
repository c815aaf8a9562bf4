// Package mapping resolves a file's header row onto canonical metric and
// dimension columns using a per-platform synonym dictionary.
package mapping

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/marketlens/internal/model"
)

//go:embed mappings.yaml
var defaultMappings []byte

// MetricRule lists the header synonyms for one canonical metric, in priority order.
type MetricRule struct {
	Metric   string   `yaml:"metric"`
	Synonyms []string `yaml:"synonyms"`
}

// Dictionary maps platform → report type → ordered metric rules.
type Dictionary map[model.Platform]map[model.ReportType][]MetricRule

// Default returns the built-in dictionary.
func Default() Dictionary {
	d, err := Parse(defaultMappings)
	if err != nil {
		panic(err)
	}
	return d
}

// Load reads a dictionary from a YAML file. An empty path returns Default.
func Load(path string) (Dictionary, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mapping: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML dictionary document.
func Parse(data []byte) (Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrap(err, "mapping: decode dictionary")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate rejects rules without a metric name or synonyms and duplicate metrics.
func (d Dictionary) Validate() error {
	for platform, byType := range d {
		for reportType, rules := range byType {
			seen := make(map[string]bool, len(rules))
			for _, r := range rules {
				if r.Metric == "" {
					return eris.Errorf("mapping: %s/%s: rule without metric", platform, reportType)
				}
				if len(r.Synonyms) == 0 {
					return eris.Errorf("mapping: %s/%s: metric %q has no synonyms", platform, reportType, r.Metric)
				}
				if seen[r.Metric] {
					return eris.Errorf("mapping: %s/%s: duplicate metric %q", platform, reportType, r.Metric)
				}
				seen[r.Metric] = true
			}
		}
	}
	return nil
}

// Rules returns the metric rules for a platform/report type pair.
func (d Dictionary) Rules(platform model.Platform, reportType model.ReportType) ([]MetricRule, bool) {
	rules, ok := d[platform][reportType]
	return rules, ok && len(rules) > 0
}
