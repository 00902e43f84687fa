package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/scenario"
)

// UsersPrefix is where the user routes are mounted.
const UsersPrefix = "/api/users"

// OperationHandler is an endpoint bound to a named entry operation. The name
// lets the composed routing table be analysed statically.
type OperationHandler struct {
	Name string
	fn   http.HandlerFunc
}

// Operation binds fn to the entry operation name.
func Operation(name string, fn http.HandlerFunc) *OperationHandler {
	return &OperationHandler{Name: name, fn: fn}
}

// OperationName returns the bound entry operation.
func (h *OperationHandler) OperationName() string { return h.Name }

func (h *OperationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	AddLogField(r.Context(), "operation", h.Name)
	h.fn(w, r)
}

// Handlers adapts HTTP requests to entry operations.
type Handlers struct {
	svc *scenario.Service
}

// NewHandlers creates the handlers for svc.
func NewHandlers(svc *scenario.Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterUserRoutes mounts the user routes under UsersPrefix.
func RegisterUserRoutes(r chi.Router, h *Handlers) {
	r.Route(UsersPrefix, func(r chi.Router) {
		r.Method(http.MethodGet, "/name/{username}", Operation(scenario.OpFetchByName, h.getUser))
		r.Method(http.MethodGet, "/search/{term}", Operation(scenario.OpSearchByTerm, h.searchUser))
		r.Method(http.MethodPost, "/", Operation(scenario.OpCreateUser, h.createUser))
		r.Method(http.MethodPost, "/comment/bad", Operation(scenario.OpCommentBad, h.commentBad))
		r.Method(http.MethodPost, "/comment/bad2", Operation(scenario.OpCommentBadDirect, h.commentBadDirect))
		r.Method(http.MethodPost, "/comment/good", Operation(scenario.OpCommentGood, h.commentGood))
	})
}

// RegisterAdminRoutes adds the administrative delete route. The runtime
// never calls it.
func RegisterAdminRoutes(r chi.Router, h *Handlers) {
	r.Method(http.MethodDelete, "/admin/delete/{id}", Operation(scenario.OpDeadDelete, h.deleteUser))
}

type createUserRequest struct {
	Username any `json:"username"`
	Email    any `json:"email"`
}

type commentRequest struct {
	Comment any `json:"comment"`
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.FetchByName(r.Context(), domain.Tainted(pathParam(r, "username")))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	logOutcome(r, out)
	writeJSON(w, http.StatusOK, map[string]any{"user": records(out)})
}

func (h *Handlers) searchUser(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.SearchByTerm(r.Context(), domain.Tainted(pathParam(r, "term")))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	logOutcome(r, out)
	writeJSON(w, http.StatusOK, map[string]any{"results": records(out)})
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.svc.CreateUser(r.Context(), domain.Tainted(req.Username), domain.Tainted(req.Email))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	logOutcome(r, out)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) commentBad(w http.ResponseWriter, r *http.Request) {
	h.comment(w, r, h.svc.CommentBad)
}

func (h *Handlers) commentBadDirect(w http.ResponseWriter, r *http.Request) {
	h.comment(w, r, h.svc.CommentBadDirect)
}

func (h *Handlers) commentGood(w http.ResponseWriter, r *http.Request) {
	h.comment(w, r, h.svc.CommentGood)
}

func (h *Handlers) comment(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.Value) (scenario.Outcome, error)) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := op(r.Context(), domain.Tainted(req.Comment))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	logOutcome(r, out)
	writeHTML(w, http.StatusOK, out.Markup)
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.DeadDelete(r.Context(), domain.Tainted(pathParam(r, "id")))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	logOutcome(r, out)
	w.WriteHeader(http.StatusNoContent)
}

// pathParam returns the decoded URL parameter. chi matches on the raw path
// when one is present, so the parameter may still be escaped.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// decodeBody reads a JSON body. An empty body decodes to the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	AddError(r.Context(), err)
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": http.StatusText(http.StatusBadRequest)})
	return false
}

func records(out scenario.Outcome) []domain.Record {
	if out.Result.Records == nil {
		return []domain.Record{}
	}
	return out.Result.Records
}

func logOutcome(r *http.Request, out scenario.Outcome) {
	AddLogField(r.Context(), "sink", string(out.Result.Sink))
	AddLogField(r.Context(), "exposure", string(out.Exposure))
}

// writeFailure converts any pipeline failure into a generic 500. The real
// error only reaches the request log.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, status int, markup string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, markup)
}
