// Package classify guesses the platform, report type and granularity of a
// marketplace export from its header row alone.
package classify

import (
	"strings"

	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/normalize"
)

// Observation is the header-derived surface every rule table evaluates.
type Observation struct {
	Headers      []string // normalized
	ColumnCount  int
	HasDate      bool
	HasSpend     bool
	HasCampaign  bool
	LanguageHint model.LanguageHint
}

var (
	dateKeywords     = keywords("date", "tanggal", "day", "waktu", "time")
	spendKeywords    = keywords("spend", "cost", "budget", "biaya")
	campaignKeywords = keywords("campaign", "ad group", "kampanye")

	idKeywords = keywords("pesanan", "tanggal", "biaya", "produk")
	enKeywords = keywords("order", "date", "cost", "product")
)

// Observe builds the observation surface for a raw header row.
func Observe(rawHeaders []string) Observation {
	headers := normalize.Headers(rawHeaders)
	obs := Observation{
		Headers:     headers,
		ColumnCount: len(headers),
		HasDate:     anyContains(headers, dateKeywords),
		HasSpend:    anyContains(headers, spendKeywords),
		HasCampaign: anyContains(headers, campaignKeywords),
	}

	var idCount, enCount int
	for _, h := range headers {
		if containsAny(h, idKeywords) {
			idCount++
		}
		if containsAny(h, enKeywords) {
			enCount++
		}
	}
	switch {
	case idCount > enCount:
		obs.LanguageHint = model.LanguageID
	case enCount > idCount:
		obs.LanguageHint = model.LanguageEN
	default:
		obs.LanguageHint = model.LanguageMixed
	}
	return obs
}

func (o Observation) hasAnyHeader() bool {
	for _, h := range o.Headers {
		if h != "" {
			return true
		}
	}
	return false
}

// has reports whether any header contains one of the keywords.
func (o Observation) has(kw []string) bool {
	return anyContains(o.Headers, kw)
}

// keywords normalizes keyword literals the same way headers are normalized,
// so "ad group" matches both "Ad Group" and "ad_group".
func keywords(raw ...string) []string {
	return normalize.Headers(raw)
}

func anyContains(headers, kw []string) bool {
	for _, h := range headers {
		if containsAny(h, kw) {
			return true
		}
	}
	return false
}

func containsAny(h string, kw []string) bool {
	for _, k := range kw {
		if strings.Contains(h, k) {
			return true
		}
	}
	return false
}
