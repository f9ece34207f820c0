package handler

import (
	"errors"
	"net/http"

	appI18n "github.com/pavelanni/comunizika/internal/i18n"
	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
)

type evaluateRequest struct {
	Answers [][]bool `json:"answers"`
}

type evaluateResponse struct {
	Status  model.Outcome `json:"status"`
	Grade   float64       `json:"grade"`
	Attempt int           `json:"attempt"`
	Message string        `json:"message"`
}

type boxResponse struct {
	*model.BoxView
	Message string `json:"message,omitempty"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	data, err := h.store.LearnerData(r.Context(), *learner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleCurrentBox(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	cur, err := h.game.CurrentBox(r.Context(), learner.ID)
	if errors.Is(err, progress.ErrLearnerNotFound) {
		// Registration stored the learner but enrollment failed.
		if _, err = h.game.Enroll(r.Context(), learner.ID); err == nil {
			cur, err = h.game.CurrentBox(r.Context(), learner.ID)
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeBox(w, r, cur)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}

	ev, err := h.game.Evaluate(r.Context(), learner.ID, req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgID := "EvaluationReproved"
	if ev.Approved() {
		msgID = "EvaluationApproved"
	}
	writeJSON(w, http.StatusOK, evaluateResponse{
		Status:  ev.Outcome,
		Grade:   ev.Grade,
		Attempt: ev.Attempt,
		Message: appI18n.T(r.Context(), msgID),
	})
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	if _, err := h.game.Restart(r.Context(), learner.ID); err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := h.game.CurrentBox(r.Context(), learner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeBox(w, r, cur)
}

func (h *Handler) writeBox(w http.ResponseWriter, r *http.Request, cur *progress.Current) {
	view, err := h.store.BoxView(r.Context(), cur.Position.ModuleID, cur.Position.StageID, cur.Box, cur.Final)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := boxResponse{BoxView: view}
	if cur.Final {
		resp.Message = appI18n.T(r.Context(), "FinalStage")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	history, err := h.game.History(r.Context(), learner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := h.store.HistoryViews(r.Context(), history)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	outline, err := h.store.Outline(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if outline == nil {
		outline = []model.ModuleOutline{}
	}
	writeJSON(w, http.StatusOK, outline)
}
