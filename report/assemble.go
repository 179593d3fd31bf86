// Package report aggregates pipeline outputs and renders them as documents.
package report

import "github.com/mrsingh-rishi/meeting-report/model"

// Assemble combines a transcript with its analyses. A later result of the
// same kind replaces an earlier one.
func Assemble(t model.Transcript, analyses []model.AnalysisResult) model.Report {
	r := model.Report{
		Transcript: t,
		Analyses:   make(map[model.AnalysisKind]model.AnalysisResult, len(analyses)),
	}
	for _, a := range analyses {
		r.Analyses[a.Kind] = a
	}
	return r
}
