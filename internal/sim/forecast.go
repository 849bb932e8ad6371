package sim

import (
	"fmt"
	"math"

	"citypulse/internal/models"
)

const (
	ForecastHorizon = 3

	forecastAlpha       = 0.3
	forecastBaseWeight  = 0.6
	forecastTrendWeight = 0.4
	forecastCeiling     = 1.2

	districtAlertThreshold = 0.85
	lineAlertThreshold     = 0.80
	districtBand           = 0.12
	lineBand               = 0.10
)

// EntityForecast is the +1..+3 hour outlook for one district or line.
type EntityForecast struct {
	Values [ForecastHorizon]float64 `json:"values"`
	Peak   float64                  `json:"peak"`
	Lower  float64                  `json:"lower"`
	Upper  float64                  `json:"upper"`
	Trend  float64                  `json:"trend"`
}

type ForecastAlert struct {
	Scope      models.ActionScope `json:"type"`
	Target     string             `json:"target"`
	HoursAhead int                `json:"hours_ahead"`
	Value      float64            `json:"value"`
	Message    string             `json:"message"`
}

type Forecast struct {
	Hour      int                       `json:"hour"`
	Districts map[string]EntityForecast `json:"districts"`
	Lines     map[string]EntityForecast `json:"lines"`
	Alerts    []ForecastAlert           `json:"alerts"`
}

// District returns the forecast for a district, or a zero forecast when unknown.
func (f Forecast) District(name string) EntityForecast { return f.Districts[name] }

func (f Forecast) Line(id string) EntityForecast { return f.Lines[id] }

// Forecaster keeps one exponential moving average per district and per line.
// The trend is updated at most once per simulated hour no matter how often Forecast is called.
type Forecaster struct {
	alpha     float64
	districts map[string]float64
	lines     map[string]float64
	lastT     int
}

func NewForecaster() *Forecaster {
	return &Forecaster{
		alpha:     forecastAlpha,
		districts: make(map[string]float64),
		lines:     make(map[string]float64),
		lastT:     -1,
	}
}

func (f *Forecaster) observe(c *models.CityState) {
	if c.T == f.lastT {
		return
	}
	f.lastT = c.T
	for _, d := range c.Districts {
		obs := (d.BusLoad + d.RailLoad + d.StationCrowding) / 3
		f.districts[d.Name] = f.ema(f.districts, d.Name, obs)
	}
	for _, l := range c.Lines {
		f.lines[l.ID] = f.ema(f.lines, l.ID, l.Load)
	}
}

func (f *Forecaster) ema(m map[string]float64, key string, obs float64) float64 {
	prev, ok := m[key]
	if !ok {
		return obs
	}
	return f.alpha*obs + (1-f.alpha)*prev
}

// Forecast produces the three-hour outlook for every district and line.
func (f *Forecaster) Forecast(c *models.CityState) Forecast {
	f.observe(c)
	out := Forecast{
		Hour:      c.HourOfDay,
		Districts: make(map[string]EntityForecast, len(c.Districts)),
		Lines:     make(map[string]EntityForecast, len(c.Lines)),
		Alerts:    []ForecastAlert{},
	}
	boost := c.Weather.ForecastBoost()

	for _, d := range c.Districts {
		trend := f.districts[d.Name]
		mult := c.DistrictEventMult(d.Name)
		var fc EntityForecast
		for off := 1; off <= ForecastHorizon; off++ {
			hour := (c.HourOfDay + off) % 24
			if models.IsNoService(hour) {
				continue
			}
			v := forecastBaseWeight*Wave(hour) + forecastTrendWeight*trend + boost
			if off <= 2 {
				v *= mult
			}
			fc.Values[off-1] = round3(models.Clamp(v, 0, forecastCeiling))
		}
		fc.finish(trend, districtBand)
		out.Districts[d.Name] = fc
		if a, ok := firstCrossing(fc, districtAlertThreshold); ok {
			a.Scope = models.ScopeDistrict
			a.Target = d.Name
			a.Message = fmt.Sprintf("%s demand forecast %.0f%% in %dh", d.Name, a.Value*100, a.HoursAhead)
			out.Alerts = append(out.Alerts, a)
		}
	}

	for _, l := range c.Lines {
		trend := f.lines[l.ID]
		mult := c.LineEventMult(l.ID)
		var fc EntityForecast
		for off := 1; off <= ForecastHorizon; off++ {
			hour := (c.HourOfDay + off) % 24
			if models.IsNoService(hour) {
				continue
			}
			v := forecastBaseWeight*LineWave(hour) + forecastTrendWeight*trend + boost*0.5
			if l.Disruption > 0.1 {
				v *= 1 + l.Disruption*0.2
			}
			if off <= 2 {
				v *= mult
			}
			fc.Values[off-1] = round3(models.Clamp(v, 0, forecastCeiling))
		}
		fc.finish(trend, lineBand)
		out.Lines[l.ID] = fc
		if a, ok := firstCrossing(fc, lineAlertThreshold); ok {
			a.Scope = models.ScopeRailLine
			a.Target = l.ID
			a.Message = fmt.Sprintf("%s load forecast %.0f%% in %dh", l.Name, a.Value*100, a.HoursAhead)
			out.Alerts = append(out.Alerts, a)
		}
	}
	return out
}

func (fc *EntityForecast) finish(trend, band float64) {
	for _, v := range fc.Values {
		fc.Peak = math.Max(fc.Peak, v)
	}
	fc.Trend = round3(trend)
	fc.Lower = round3(models.Clamp(fc.Peak-band, 0, forecastCeiling))
	fc.Upper = round3(models.Clamp(fc.Peak+band, 0, forecastCeiling))
}

// firstCrossing reports the earliest forecast hour above the threshold.
func firstCrossing(fc EntityForecast, threshold float64) (ForecastAlert, bool) {
	for i, v := range fc.Values {
		if v > threshold {
			return ForecastAlert{HoursAhead: i + 1, Value: v}, true
		}
	}
	return ForecastAlert{}, false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
