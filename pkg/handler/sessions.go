package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/common"
	"github.com/pocketbudget/entitlement-engine/pkg/restriction"
	"github.com/pocketbudget/entitlement-engine/pkg/session"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
)

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Check(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, codeUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.manager.Len(),
	})
}

// CreateSession handles POST /v1/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.CreateSession")
	defer scope.Finish()

	var req CreateSessionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	acct, err := h.account(r, req.Account)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s, err := h.manager.Create(scope.Ctx, session.CreateRequest{
		Account:        acct,
		Usage:          req.Usage,
		InstallationID: req.InstallationID,
	})
	if err != nil {
		scope.TraceError(err)
		writeEngineError(w, err)
		return
	}
	scope.WithSession(s.ID())
	h.refreshUsage(scope, s)

	eval := h.evaluate(scope, s)
	h.manager.Save(scope.Ctx, s)
	scope.Log.Infof("session opened for %s account", eval.AccountClass)
	writeJSON(w, http.StatusCreated, eval)
}

// GetSession handles GET /v1/sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.GetSession")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	h.refreshUsage(scope, s)
	writeJSON(w, http.StatusOK, h.evaluate(scope, s))
}

// DeleteSession handles DELETE /v1/sessions/{sessionID}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.DeleteSession")
	defer scope.Finish()

	if err := h.manager.Close(scope.Ctx, chi.URLParam(r, "sessionID")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateAccount handles PUT /v1/sessions/{sessionID}/account.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.UpdateAccount")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	var req account.State
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	acct, err := h.account(r, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.UpdateAccount(scope.Ctx, acct)
	h.refreshUsage(scope, s)
	eval := h.evaluate(scope, s)
	h.manager.Save(scope.Ctx, s)
	writeJSON(w, http.StatusOK, eval)
}

// UpdateUsage handles PUT /v1/sessions/{sessionID}/usage.
func (h *Handler) UpdateUsage(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.UpdateUsage")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	var req usage.Counts
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	s.UpdateUsage(req)
	eval := h.evaluate(scope, s)
	h.manager.Save(scope.Ctx, s)
	writeJSON(w, http.StatusOK, eval)
}

// Check handles POST /v1/sessions/{sessionID}/checks.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.Check")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	var req CheckRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	child := scope.NewChildScope("session.Check")
	decision := s.Check(restriction.Action(req.Action), req.Usage)
	child.SetAttributes("allowed", decision.Allowed)
	if !decision.Allowed {
		child.TraceEvent(decision.Reason)
	}
	child.Finish()
	writeJSON(w, http.StatusOK, decision)
}

// TrackRestrictionHit handles POST /v1/sessions/{sessionID}/restriction-hits.
func (h *Handler) TrackRestrictionHit(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.TrackRestrictionHit")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	var req RestrictionHitRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	count := s.TrackRestrictionHit(scope.Ctx, restriction.Action(req.Action))
	h.manager.Save(scope.Ctx, s)
	writeJSON(w, http.StatusOK, map[string]interface{}{"interactionCount": count})
}

// RecordInteraction handles POST /v1/sessions/{sessionID}/interactions.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.RecordInteraction")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	var req InteractionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	recorded := s.RecordInteraction(scope.Ctx, req.Type, req.Details)
	if recorded {
		h.manager.Save(scope.Ctx, s)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recorded": recorded})
}

// NextTrigger handles POST /v1/sessions/{sessionID}/triggers/next. It answers
// 204 when no trigger is pending.
func (h *Handler) NextTrigger(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.NextTrigger")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	trigger, ok := s.ConsumeTrigger()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.manager.Save(scope.Ctx, s)
	writeJSON(w, http.StatusOK, map[string]interface{}{"trigger": trigger})
}

// DismissBanner handles POST /v1/sessions/{sessionID}/banners/{bannerID}/dismiss.
func (h *Handler) DismissBanner(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.DismissBanner")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	if err := s.DismissBanner(scope.Ctx, chi.URLParam(r, "bannerID")); err != nil {
		writeEngineError(w, err)
		return
	}
	eval := h.evaluate(scope, s)
	h.manager.Save(scope.Ctx, s)
	writeJSON(w, http.StatusOK, eval)
}

// ClickBanner handles POST /v1/sessions/{sessionID}/banners/{bannerID}/click.
func (h *Handler) ClickBanner(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.ClickBanner")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	cta, err := s.ClickBanner(scope.Ctx, chi.URLParam(r, "bannerID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cta": cta})
}

// GetVariant handles GET /v1/sessions/{sessionID}/experiments/{testID}.
func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.GetVariant")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	testID := chi.URLParam(r, "testID")
	v, ok := s.Assign(scope.Ctx, testID)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotAssigned, "no active experiment "+testID)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// TrackConversion handles POST /v1/sessions/{sessionID}/experiments/{testID}/conversions.
func (h *Handler) TrackConversion(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.TrackConversion")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	var req ConversionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	tracked := s.TrackConversion(scope.Ctx, chi.URLParam(r, "testID"), req.Type, req.Value)
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracked": tracked})
}

// TrackExperimentInteraction handles POST /v1/sessions/{sessionID}/experiments/{testID}/interactions.
func (h *Handler) TrackExperimentInteraction(w http.ResponseWriter, r *http.Request) {
	scope := common.NewScope(r.Context(), "handler.TrackExperimentInteraction")
	defer scope.Finish()

	s, ok := h.session(w, r, scope)
	if !ok {
		return
	}
	var req InteractionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	tracked := s.TrackExperimentInteraction(scope.Ctx, chi.URLParam(r, "testID"), req.Type, req.Details)
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracked": tracked})
}

// session looks up the path session and writes the error response when missing.
func (h *Handler) session(w http.ResponseWriter, r *http.Request, scope *common.Scope) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	scope.WithSession(id)

	s, err := h.manager.Get(scope.Ctx, id)
	if err != nil {
		scope.TraceError(err)
		writeEngineError(w, err)
		return nil, false
	}
	return s, true
}

// account applies bearer claims over the client-reported account. With token
// handling enabled, a request without a token is treated as anonymous.
func (h *Handler) account(r *http.Request, reported account.State) (account.State, error) {
	claims, err := h.claims.FromRequest(r)
	if err != nil {
		return account.State{}, err
	}
	if h.claims != nil && claims == nil {
		return Anonymous(reported), nil
	}
	return claims.Apply(reported), nil
}

// evaluate runs the session evaluation in a child span.
func (h *Handler) evaluate(scope *common.Scope, s *session.Session) session.Evaluation {
	child := scope.NewChildScope("session.Evaluate")
	defer child.Finish()

	eval := s.Evaluate()
	child.SetAttributes("account.class", string(eval.AccountClass))
	if eval.ActiveTier != "" {
		child.SetAttributes("policy.tier", eval.ActiveTier)
	}
	if eval.Banner != nil {
		child.TraceEvent("banner selected: " + eval.Banner.ID)
	}
	return eval
}

// refreshUsage replaces client-reported counts with data-store counts when the
// account is known. Lookup failures keep the previous counts.
func (h *Handler) refreshUsage(scope *common.Scope, s *session.Session) {
	if h.usage == nil {
		return
	}
	userID := s.Account().UserID
	if userID == "" {
		return
	}
	counts, err := h.usage.Counts(scope.Ctx, userID)
	if err != nil {
		scope.Log.Warnf("failed to refresh usage counts: %v", err)
		return
	}
	s.UpdateUsage(counts)
}
