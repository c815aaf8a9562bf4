package insight

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketlens/internal/model"
)

// ErrInvalidWindow is returned when a window ends before it starts.
var ErrInvalidWindow = eris.New("insight: window end before start")

// Window is an inclusive span of calendar days.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days in the window.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Windows returns the current window and the equal-length window that ends
// the day before it starts. The two never overlap.
func Windows(start, end time.Time) (current, previous Window, err error) {
	s, e := truncateDay(start), truncateDay(end)
	if e.Before(s) {
		return Window{}, Window{}, eris.Wrapf(ErrInvalidWindow, "%s > %s", s.Format(time.DateOnly), e.Format(time.DateOnly))
	}
	current = Window{Start: s, End: e}
	prevEnd := s.AddDate(0, 0, -1)
	previous = Window{Start: prevEnd.AddDate(0, 0, -(current.Days() - 1)), End: prevEnd}
	return current, previous, nil
}

// Totals aggregates executive snapshots over a window.
type Totals struct {
	Revenue    float64
	AdsRevenue float64
	Spend      float64
	Orders     float64
	// ROAS is ads revenue over spend, 0 when there is no spend.
	ROAS       float64
	Confidence model.Confidence
	Snapshots  int
}

// Summarize folds executive snapshots into window totals. Confidence is the
// worst confidence of any snapshot.
func Summarize(snaps []model.ExecutiveSnapshot) Totals {
	t := Totals{Snapshots: len(snaps)}
	confs := make([]model.Confidence, 0, len(snaps))
	for _, s := range snaps {
		t.Revenue += s.Revenue
		t.AdsRevenue += s.AdsRevenue
		t.Spend += s.Spend
		t.Orders += s.Orders
		confs = append(confs, s.Confidence)
	}
	t.Confidence = model.Worst(confs...)
	if t.Spend > 0 {
		t.ROAS = t.AdsRevenue / t.Spend
	}
	return t
}

// ChannelTotals is one platform's aggregate over a window.
type ChannelTotals struct {
	Platform   model.Platform
	Revenue    float64
	AdsRevenue float64
	Spend      float64
	Orders     float64
}

// SummarizeChannels folds channel snapshots per platform, ordered by platform.
func SummarizeChannels(snaps []model.ChannelSnapshot) []ChannelTotals {
	byPlatform := make(map[model.Platform]*ChannelTotals)
	for _, s := range snaps {
		c, ok := byPlatform[s.Platform]
		if !ok {
			c = &ChannelTotals{Platform: s.Platform}
			byPlatform[s.Platform] = c
		}
		c.Revenue += s.Revenue
		c.AdsRevenue += s.AdsRevenue
		c.Spend += s.Spend
		c.Orders += s.Orders
	}

	out := make([]ChannelTotals, 0, len(byPlatform))
	for _, c := range byPlatform {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
