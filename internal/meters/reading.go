// Package meters polls the gateway's meter reports and hands every reading
// to a set of sinks.
package meters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcncl/enphase-api/internal/store"
)

// Line is the reading of one phase.
type Line struct {
	ActPower   float64 `json:"actPower"`
	ReactPwr   float64 `json:"reactPwr"`
	ApprntPwr  float64 `json:"apprntPwr"`
	RMSVoltage float64 `json:"rmsVoltage"`
	RMSCurrent float64 `json:"rmsCurrent"`
	PwrFactor  float64 `json:"pwrFactor"`
	FreqHz     float64 `json:"freqHz"`
}

// Report is one meter's part of a reading.
type Report struct {
	ReportType string `json:"reportType"`
	Lines      []Line `json:"lines"`
}

// Reading is one poll of /ivp/meters/reports.
type Reading struct {
	Timestamp time.Time
	// Raw is the response as the gateway sent it.
	Raw     json.RawMessage
	Reports []Report
}

// ParseReading decodes a meter reports response taken at ts.
func ParseReading(ts time.Time, body []byte) (Reading, error) {
	var reports []Report
	if err := json.Unmarshal(body, &reports); err != nil {
		return Reading{}, fmt.Errorf("unexpected meter reports: %w", err)
	}
	return Reading{
		Timestamp: ts,
		Raw:       json.RawMessage(body),
		Reports:   reports,
	}, nil
}

// Results lays the reading out by report type and phase, the way it is
// stored. Unknown report types and more than store.MaxPhases phases are
// errors.
func (r Reading) Results() ([9]*store.MeterResult, error) {
	var results [9]*store.MeterResult
	for _, report := range r.Reports {
		offset := reportOffset(report.ReportType)
		if offset < 0 {
			return results, fmt.Errorf("unexpected meter reading report type %q", report.ReportType)
		}
		for phase, line := range report.Lines {
			if phase >= store.MaxPhases {
				return results, fmt.Errorf("unexpected phase #%d in %q report", phase, report.ReportType)
			}
			results[offset*store.MaxPhases+phase] = &store.MeterResult{
				P:  line.ActPower,
				Q:  line.ReactPwr,
				S:  line.ApprntPwr,
				V:  line.RMSVoltage,
				I:  line.RMSCurrent,
				PF: line.PwrFactor,
				F:  line.FreqHz,
			}
		}
	}
	return results, nil
}

func reportOffset(reportType string) int {
	for i, t := range store.ReportTypes {
		if t == reportType {
			return i
		}
	}
	return -1
}

// phaseName returns "A", "B" or "C".
func phaseName(phase int) string {
	return string(rune('A' + phase))
}
