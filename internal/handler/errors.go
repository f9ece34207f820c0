package handler

import (
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/comunizika/internal/i18n"
	"github.com/pavelanni/comunizika/internal/progress"
)

// fieldProblem describes one offending request field.
type fieldProblem struct {
	Name    string `json:"name"`
	Problem string `json:"problem"`
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Name       string         `json:"name"`
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Extra      []fieldProblem `json:"extra,omitempty"`
}

// domainErrors maps progress kinds to a response status and error name.
// The localized message ID is "Err" + name.
var domainErrors = []struct {
	kind   error
	status int
	name   string
}{
	{progress.ErrShapeMismatch, http.StatusBadRequest, "ShapeMismatch"},
	{progress.ErrInvalidAnswerLength, http.StatusBadRequest, "InvalidAnswerLength"},
	{progress.ErrLearnerNotFound, http.StatusNotFound, "LearnerNotFound"},
	{progress.ErrPositionNotFound, http.StatusNotFound, "PositionNotFound"},
	{progress.ErrNoActiveBox, http.StatusConflict, "NoActiveBox"},
	{progress.ErrConcurrentUpdate, http.StatusConflict, "ConcurrentUpdate"},
	{progress.ErrLearnerLocked, http.StatusConflict, "LearnerLocked"},
	{progress.ErrPoolExhausted, http.StatusInternalServerError, "PoolExhausted"},
	{progress.ErrDuplicateActivity, http.StatusInternalServerError, "DuplicateActivity"},
}

// writeError translates err into a localized JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	for _, d := range domainErrors {
		if !errors.Is(err, d.kind) {
			continue
		}
		body := errorBody{Name: d.name, StatusCode: d.status}
		msgID := "Err" + d.name
		pe, ok := progress.AsError(err)
		switch {
		case !ok:
			body.Message = appI18n.T(ctx, msgID)
		case d.kind == progress.ErrPoolExhausted:
			body.Message = appI18n.Tp(ctx, msgID, pe.Actual)
		default:
			body.Message = appI18n.Td(ctx, msgID, map[string]any{
				"Field":    pe.Field,
				"Expected": pe.Expected,
				"Actual":   pe.Actual,
			})
		}
		if ok && pe.Field != "" {
			body.Extra = []fieldProblem{{Name: pe.Field, Problem: string(pe.Problem)}}
		}
		if d.status >= http.StatusInternalServerError {
			slog.Error("request failed", "path", r.URL.Path, "error", err)
		} else {
			slog.Debug("request rejected", "path", r.URL.Path, "error", err)
		}
		writeJSON(w, d.status, body)
		return
	}

	slog.Error("request failed", "path", r.URL.Path, "error", err)
	writeAPIError(w, r, http.StatusInternalServerError, "Internal")
}

// writeAPIError writes an error that has no domain kind.
func writeAPIError(w http.ResponseWriter, r *http.Request, status int, name string, extra ...fieldProblem) {
	writeJSON(w, status, errorBody{
		Name:       name,
		StatusCode: status,
		Message:    appI18n.T(r.Context(), "Err"+name),
		Extra:      extra,
	})
}
