package server

import (
	"net/http"

	"scopegate/internal/action"
	"scopegate/internal/flow"
	"scopegate/internal/view"
)

func (s *HTTPServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, badRequest(err))
		return
	}

	req := flow.TriggerRequest{
		Action:           r.Form.Get("action"),
		ActionURI:        r.Form.Get("actionuri"),
		ReturnURI:        r.Form.Get("returnuri"),
		Error:            r.Form.Get("error"),
		ErrorDescription: r.Form.Get("error_description"),
		State:            r.Form.Get("state"),
		Code:             r.Form.Get("code"),
	}

	out, err := s.flow.Trigger(r.Context(), req)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderOutcome(w, r, out)
}

func (s *HTTPServer) handleResource(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, body, err := s.flow.FetchResource(r.Context(), q.Get("userId"), q.Get("resource"))
	if err != nil {
		writeResourceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *HTTPServer) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, badRequest(err))
		return
	}

	out, err := s.flow.CreateAnalysis(r.Context(),
		r.PostForm.Get("userId"),
		r.PostForm.Get("stateKey"),
		r.PostForm.Get("projectId"),
		r.PostForm.Get("name"),
	)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderOutcome(w, r, out)
}

func (s *HTTPServer) handleSetAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, badRequest(err))
		return
	}

	op := action.SetAnalysisStatus{
		ProjectID:  r.PostForm.Get("projectId"),
		AnalysisID: r.PostForm.Get("analysisId"),
		Status:     r.PostForm.Get("status"),
		Summary:    r.PostForm.Get("summary"),
	}
	out, err := s.flow.SetAnalysisStatus(r.Context(), r.PostForm.Get("userId"), r.PostForm.Get("stateKey"), op)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderOutcome(w, r, out)
}

// renderOutcome turns a successful flow step into a redirect or a page.
func (s *HTTPServer) renderOutcome(w http.ResponseWriter, r *http.Request, out flow.Outcome) {
	switch {
	case out.IsRedirect():
		view.SetSecurityHeaders(w)
		http.Redirect(w, r, out.RedirectURL, http.StatusFound)
	case out.Result != nil:
		s.views.Result(w, http.StatusOK, view.ResultPage{
			Title:    resultTitle(out.Result.Continuation.Kind),
			UserID:   out.Result.UserID,
			Analysis: out.Result.Analysis,
			File:     out.Result.File,
			Context:  out.Context,
		})
	case out.Context != nil:
		s.views.Context(w, http.StatusOK, view.ContextPage{Context: out.Context})
	default:
		s.renderError(w, r, errNoOutcome)
	}
}

func resultTitle(kind action.Kind) string {
	switch kind {
	case action.KindCreateAnalysis:
		return "Analysis created"
	case action.KindSetAnalysisStatus:
		return "Analysis status updated"
	default:
		return "Done"
	}
}
