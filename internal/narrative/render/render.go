// Package render composes Indonesian narrative text from a prepared
// narrative.Input. It branches on field presence and confidence only; every
// number it prints was computed upstream.
package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/marketlens/internal/narrative"
)

var printer = message.NewPrinter(language.Indonesian)

// Render turns a prepared input into narrative output.
func Render(in narrative.Input) narrative.Output {
	return narrative.Output{
		Locale:             narrative.Locale,
		Period:             in.Period,
		ExecutiveSummary:   executiveSummary(in),
		InsightDetails:     insightDetails(in.Insights),
		DataConfidenceNote: confidenceNote(in.Executive.Confidence),
	}
}

// NoData is the fixed narrative for a window without executive snapshots.
func NoData(period string) narrative.Output {
	return narrative.Output{
		Locale:           narrative.Locale,
		Period:           period,
		ExecutiveSummary: "Tidak ada data yang tersedia untuk periode ini.",
		InsightDetails:   []string{},
	}
}

func executiveSummary(in narrative.Input) string {
	ex := in.Executive
	lines := []string{
		"Periode: " + in.Period + ".",
		"Total pendapatan tercatat sebesar " + currency(ex.Revenue) +
			" dengan total belanja iklan " + currency(ex.Spend) +
			" dan " + printer.Sprintf("%.0f", ex.Orders) + " pesanan.",
	}

	if ex.ROAS != nil {
		lines = append(lines, "ROAS iklan: "+printer.Sprintf("%.2f", *ex.ROAS)+".")
	}

	if ex.Previous != nil {
		switch ex.Previous.RevenueTrend {
		case narrative.TrendUp:
			lines = append(lines, "Pendapatan naik dibanding periode sebelumnya.")
		case narrative.TrendDown:
			lines = append(lines, "Pendapatan turun dibanding periode sebelumnya.")
		default:
			lines = append(lines, "Pendapatan relatif stabil dibanding periode sebelumnya.")
		}
		switch ex.Previous.SpendTrend {
		case narrative.TrendUp:
			lines = append(lines, "Belanja iklan naik dibanding periode sebelumnya.")
		case narrative.TrendDown:
			lines = append(lines, "Belanja iklan turun dibanding periode sebelumnya.")
		}
	}

	if len(in.Channels) > 0 {
		names := make([]string, len(in.Channels))
		for i, c := range in.Channels {
			names[i] = c.Platform
		}
		lines = append(lines, "Channel aktif: "+strings.Join(names, ", ")+".")
	}

	if len(in.Insights) > 0 {
		top := in.Insights[0]
		lines = append(lines, "Faktor utama yang teridentifikasi: "+cause(top)+".")
	} else {
		lines = append(lines, "Tidak ditemukan anomali signifikan pada periode ini.")
	}

	return strings.Join(lines, " ")
}

func insightDetails(insights []narrative.InsightIn) []string {
	if len(insights) == 0 {
		return []string{"Periode ini menunjukkan stabilitas. Tidak ada perubahan signifikan yang terdeteksi."}
	}

	out := make([]string, len(insights))
	for i, in := range insights {
		parts := []string{
			printer.Sprintf("%d. [%s] %s %s.", in.Index, typeLabel(in.Type), strings.ToUpper(in.Metric), directionLabel(in.Direction)),
		}
		if in.PercentagePoints != nil {
			parts = append(parts, "Perubahan: "+printer.Sprintf("%.1f", *in.PercentagePoints)+"%.")
		}
		parts = append(parts, cause(in)+".")
		if rec := action(in); rec != "" {
			parts = append(parts, "Rekomendasi: "+rec+".")
		}
		out[i] = strings.Join(parts, " ")
	}
	return out
}

func confidenceNote(confidence string) string {
	switch confidence {
	case "HIGH":
		return ""
	case "MEDIUM":
		return "Catatan: Sebagian data pada periode ini memiliki tingkat kepercayaan sedang. " +
			"Beberapa metrik mungkin belum sepenuhnya terverifikasi. " +
			"Perlu dicermati lebih lanjut sebelum mengambil keputusan besar."
	default:
		return "Peringatan: Data pada periode ini memiliki tingkat kepercayaan rendah. " +
			"Sumber data mungkin tidak lengkap atau ambigu. " +
			"Belum dapat disimpulkan dengan tingkat kepercayaan tinggi. " +
			"Disarankan untuk memverifikasi langsung dari platform terkait sebelum mengambil tindakan."
	}
}

var typeLabels = map[string]string{
	"performance": "Performa",
	"efficiency":  "Efisiensi",
	"risk":        "Risiko",
	"opportunity": "Peluang",
}

func typeLabel(t string) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return t
}

var directionLabels = map[string]string{
	"up":   "mengalami kenaikan",
	"down": "mengalami penurunan",
	"flat": "relatif stabil",
}

func directionLabel(d string) string {
	if l, ok := directionLabels[d]; ok {
		return l
	}
	return d
}

var causes = map[string]string{
	"efficiency":  "peningkatan belanja pada channel atau kampanye dengan efisiensi rendah",
	"risk":        "penurunan permintaan atau volume trafik, sementara efisiensi tetap stabil",
	"opportunity": "efisiensi tinggi dengan potensi untuk ditingkatkan skalanya",
}

var actions = map[string]string{
	"efficiency":  "Tinjau perubahan skalasi kampanye atau perubahan targeting yang terlalu luas",
	"risk":        "Periksa ketersediaan stok atau tren permintaan musiman",
	"opportunity": "Pertimbangkan untuk meningkatkan anggaran pada kampanye dengan performa terbaik",
}

// cause translates an insight's cause and wraps it in confidence-aware phrasing.
func cause(in narrative.InsightIn) string {
	text := in.LikelyCause
	if in.Type == "performance" && in.Platform != "" {
		text = "regresi performa yang terisolasi pada " + in.Platform
	} else if t, ok := causes[in.Type]; ok {
		text = t
	}

	switch in.Confidence {
	case "high":
		return "Penyebab: " + text
	case "medium":
		return "Kemungkinan besar dipengaruhi oleh: " + text
	default:
		return "Menunjukkan indikasi: " + text + ". Namun, belum dapat disimpulkan dengan tingkat kepercayaan tinggi"
	}
}

func action(in narrative.InsightIn) string {
	if in.RecommendedAction == "" {
		return ""
	}
	if in.Type == "performance" && in.Platform != "" {
		return "Lakukan analisis mendalam pada performa kampanye " + in.Platform
	}
	if a, ok := actions[in.Type]; ok {
		return a
	}
	return in.RecommendedAction
}

func currency(v float64) string {
	return "Rp" + printer.Sprintf("%.0f", v)
}
