package mapping

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/normalize"
)

// ErrNoMappingTable is returned when the dictionary has no rules for a
// platform/report type pair.
var ErrNoMappingTable = errors.New("no mapping table for platform and report type")

// Column binds a canonical name to a column of the source file.
type Column struct {
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Header string `json:"header"`
}

// Mapping is the resolved column layout of one file.
type Mapping struct {
	Platform   model.Platform   `json:"platform"`
	ReportType model.ReportType `json:"report_type"`
	Metrics    []Column         `json:"metrics"`
	Dimensions []Column         `json:"dimensions"`
}

// Dimension returns the column bound to a dimension, if any.
func (m *Mapping) Dimension(name string) (Column, bool) {
	for _, c := range m.Dimensions {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

type dimensionRule struct {
	Name       string
	Candidates []string
}

// dimensionTable lists dimension candidates in priority order. Candidates
// are normalized header forms.
var dimensionTable = []dimensionRule{
	{model.DimDate, []string{"date", "tanggal", "waktu", "time", "day"}},
	{model.DimSKU, []string{"sku", "product_id", "nomor_referensi_sku", "seller_sku"}},
	{model.DimCampaignID, []string{"campaign_id", "id_kampanye", "campaign", "kampanye"}},
	{model.DimAdGroup, []string{"ad_group", "grup_iklan", "adgroup"}},
	{model.DimCreativeID, []string{"creative_id", "video_id", "id_iklan", "creative"}},
	{model.DimProductName, []string{"product_name", "nama_produk", "produk", "product"}},
}

// Resolve maps headers onto the dictionary rules for (platform, reportType).
// Metrics without a matching header are omitted. Columns bound to a metric
// are never bound to a dimension.
func (d Dictionary) Resolve(headers []string, platform model.Platform, reportType model.ReportType) (*Mapping, error) {
	rules, ok := d.Rules(platform, reportType)
	if !ok {
		return nil, eris.Wrapf(ErrNoMappingTable, "mapping: %s/%s", platform, reportType)
	}

	normalized := normalize.Headers(headers)
	index := make(map[string]int, len(normalized))
	for i, h := range normalized {
		if h == "" {
			continue
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	m := &Mapping{Platform: platform, ReportType: reportType}
	claimed := make(map[int]bool)
	for _, rule := range rules {
		for _, syn := range rule.Synonyms {
			if i, hit := index[normalize.Header(syn)]; hit {
				m.Metrics = append(m.Metrics, Column{Name: rule.Metric, Index: i, Header: headers[i]})
				claimed[i] = true
				break
			}
		}
	}

	for _, rule := range dimensionTable {
		if i, hit := findDimension(normalized, index, claimed, rule.Candidates); hit {
			m.Dimensions = append(m.Dimensions, Column{Name: rule.Name, Index: i, Header: headers[i]})
			claimed[i] = true
		}
	}
	return m, nil
}

// findDimension tries an exact match on every candidate before falling back
// to the first header containing a candidate.
func findDimension(normalized []string, index map[string]int, claimed map[int]bool, candidates []string) (int, bool) {
	for _, c := range candidates {
		if i, ok := index[c]; ok && !claimed[i] {
			return i, true
		}
	}
	for _, c := range candidates {
		for i, h := range normalized {
			if h != "" && !claimed[i] && strings.Contains(h, c) {
				return i, true
			}
		}
	}
	return -1, false
}
