package flow

import (
	"context"
	"fmt"
	"strings"

	"scopegate/internal/action"
	"scopegate/internal/oauth"
	"scopegate/pkg/logging"
)

const (
	reportFileName    = "scopegate-report.txt"
	reportDirectory   = "reports"
	reportContentType = "text/plain"
)

// execute runs a continuation with the token that was just obtained for it.
func (m *Machine) execute(ctx context.Context, token *oauth.Token, cont action.Continuation) (*Result, error) {
	if err := cont.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to run continuation: %w", err)
	}

	switch cont.Kind {
	case action.KindCreateAnalysis:
		return m.createAnalysis(ctx, token.AccessToken.Value(), cont)
	case action.KindSetAnalysisStatus:
		return m.setAnalysisStatus(ctx, token.AccessToken.Value(), cont)
	default:
		// Validate rejects unknown kinds.
		return nil, fmt.Errorf("unhandled continuation kind %q", cont.Kind)
	}
}

func (m *Machine) createAnalysis(ctx context.Context, token string, cont action.Continuation) (*Result, error) {
	op := cont.CreateAnalysis

	analysis, err := m.api.CreateAnalysis(ctx, token, op.ProjectID, op.Name, op.Description)
	if err != nil {
		return nil, upstreamError("create analysis", "", err)
	}
	logging.Info("Flow", "Created analysis %s in project %s", analysis.ID, op.ProjectID)

	file, err := m.api.UploadFile(ctx, token, analysis.ID, reportFileName, reportDirectory,
		reportContentType, []byte(m.report(cont)))
	if err != nil {
		// Flag the half-built analysis so it does not sit in Running forever.
		if _, statusErr := m.api.SetAnalysisStatus(ctx, token, analysis.ID,
			action.StatusNeedsAttention, "report upload failed"); statusErr != nil {
			logging.Error("Flow", statusErr, "Failed to flag analysis %s after upload failure", analysis.ID)
		}
		return nil, upstreamError("upload report", "", err)
	}

	analysis, err = m.api.SetAnalysisStatus(ctx, token, analysis.ID, action.StatusComplete, "Report uploaded")
	if err != nil {
		return nil, upstreamError("set analysis status", "", err)
	}

	return &Result{Continuation: cont, Analysis: analysis, File: file}, nil
}

func (m *Machine) setAnalysisStatus(ctx context.Context, token string, cont action.Continuation) (*Result, error) {
	op := cont.SetAnalysisStatus

	analysis, err := m.api.SetAnalysisStatus(ctx, token, op.AnalysisID, op.Status, op.Summary)
	if err != nil {
		return nil, upstreamError("set analysis status", "", err)
	}
	logging.Info("Flow", "Set analysis %s to %s", op.AnalysisID, op.Status)

	return &Result{Continuation: cont, Analysis: analysis}, nil
}

// report is the text uploaded into a newly created analysis.
func (m *Machine) report(cont action.Continuation) string {
	op := cont.CreateAnalysis

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis:  %s\n", op.Name)
	fmt.Fprintf(&b, "Project:   %s\n", op.ProjectID)
	fmt.Fprintf(&b, "Requested: %s\n", cont.CreatedAt.UTC().Format(timeFormat))
	fmt.Fprintf(&b, "Completed: %s\n", m.now().UTC().Format(timeFormat))
	if op.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", op.Description)
	}
	return b.String()
}

const timeFormat = "2006-01-02T15:04:05Z"
