package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/rendis/actionwait/internal/artifact"
	"github.com/rendis/actionwait/internal/catalog"
	"github.com/rendis/actionwait/internal/store"
	"github.com/rendis/actionwait/internal/wait"
	"github.com/rendis/actionwait/pkg/schema"
)

// handleCallback resumes the wait owning the token. path, actionClicked and
// actorName come from the query string, a form body or a JSON body and are
// passed on verbatim; absent fields stay absent.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := r.PathValue("correlation_id")

	signal, err := readSignal(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation, err.Error())
		return
	}

	d, err := s.deps.Host.Deliver(ctx, correlationID, signal)
	if err != nil {
		status := errStatus(err)
		if status >= http.StatusInternalServerError {
			s.deps.Logger.ErrorContext(ctx, "callback failed",
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)
		}
		writeOpcodeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// readSignal starts from the query string, which carries the path and label a
// minted callback URL was built with, and lets the body fill in or override
// the fields it actually contains.
func readSignal(r *http.Request) (schema.ResumeSignal, error) {
	query := r.URL.Query()
	sig := schema.ResumeSignal{
		Path:          valueOf(query, "path"),
		ActionClicked: valueOf(query, "actionClicked"),
		ActorName:     valueOf(query, "actorName"),
	}
	if r.Method != http.MethodPost {
		return sig, nil
	}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var body schema.ResumeSignal
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return sig, fmt.Errorf("invalid JSON: %v", err)
		}
		overlay(&sig, body)
		return sig, nil
	}

	if err := r.ParseForm(); err != nil {
		return sig, fmt.Errorf("invalid form: %v", err)
	}
	overlay(&sig, schema.ResumeSignal{
		Path:          valueOf(r.PostForm, "path"),
		ActionClicked: valueOf(r.PostForm, "actionClicked"),
		ActorName:     valueOf(r.PostForm, "actorName"),
	})
	return sig, nil
}

// overlay copies the fields present in body onto sig.
func overlay(sig *schema.ResumeSignal, body schema.ResumeSignal) {
	if body.Path != nil {
		sig.Path = body.Path
	}
	if body.ActionClicked != nil {
		sig.ActionClicked = body.ActionClicked
	}
	if body.ActorName != nil {
		sig.ActorName = body.ActorName
	}
}

// valueOf distinguishes an absent field from an empty one.
func valueOf(vals url.Values, key string) *string {
	vs, ok := vals[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

type createWaitRequest struct {
	RunID          string         `json:"run_id"`
	Path           string         `json:"path"`
	Blocks         []schema.Block `json:"blocks"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

type createWaitResponse struct {
	Record    schema.WaitRecord `json:"record"`
	Callbacks map[string]string `json:"callbacks"`
}

// handleCreateWait posts an in-memory artifact and begins a wait on it.
func (s *Server) handleCreateWait(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createWaitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.RunID == "" {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation, "run_id is required")
		return
	}

	timeout := s.deps.DefaultTimeout
	if body.TimeoutSeconds > 0 {
		timeout = time.Duration(body.TimeoutSeconds) * time.Second
	}

	handle := artifact.NewMemoryHandle(body.Blocks)
	step := wait.NewStep(wait.StepConfig{Blocks: body.Blocks, Timeout: timeout}, wait.StepDeps{
		Store:     store.ForRun(s.deps.Store, body.RunID),
		Engine:    s.deps.Host.Engine(body.RunID),
		Artifact:  handle,
		Validator: s.deps.Validator,
		Logger:    s.deps.Logger,
	})

	res, err := s.deps.Host.BeginStep(ctx, body.RunID, body.Path, step, s.deps.Now())
	if err != nil {
		writeOpcodeError(w, errStatus(err), err)
		return
	}
	rec := res.Suspend.Record

	actions, err := catalog.ExtractActions(ctx, body.Blocks)
	if err != nil {
		writeOpcodeError(w, http.StatusInternalServerError, err)
		return
	}
	callbacks := make(map[string]string, len(actions))
	for _, a := range actions {
		callbacks[a.Label] = s.deps.Host.CallbackURL(rec.CorrelationID, rec.Path, a.Value)
	}

	s.deps.Artifacts.Put(rec.CorrelationID, handle)

	writeJSON(w, http.StatusCreated, createWaitResponse{Record: rec, Callbacks: callbacks})
}

func (s *Server) handleListWaits(w http.ResponseWriter, r *http.Request) {
	filter := store.SuspensionFilter{
		RunID:  r.URL.Query().Get("run_id"),
		Status: schema.SuspensionStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 100),
	}
	list, err := s.deps.Host.List(r.Context(), filter)
	if err != nil {
		writeOpcodeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []*store.Suspension{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleArtifact serves the live artifact of a parked wait, or the final body
// recorded with a resolved one.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	correlationID := r.PathValue("correlation_id")
	if h, ok := s.deps.Artifacts.Get(correlationID); ok {
		writeJSON(w, http.StatusOK, h.Body())
		return
	}

	sp, err := s.deps.Store.GetSuspension(r.Context(), correlationID)
	if err != nil {
		writeOpcodeError(w, errStatus(err), err)
		return
	}
	var outcome struct {
		Artifact []schema.Block `json:"artifact"`
	}
	if len(sp.Outcome) > 0 {
		if err := json.Unmarshal(sp.Outcome, &outcome); err != nil {
			writeError(w, http.StatusInternalServerError, schema.ErrCodeStore, fmt.Sprintf("decode outcome: %v", err))
			return
		}
	}
	if outcome.Artifact == nil {
		writeError(w, http.StatusNotFound, schema.ErrCodeNotFound, "no artifact for this wait")
		return
	}
	writeJSON(w, http.StatusOK, outcome.Artifact)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.Host.History(r.Context(), r.PathValue("run_id"))
	if err != nil {
		writeOpcodeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleForgetRun(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Host.ForgetRun(r.Context(), r.PathValue("run_id")); err != nil {
		writeOpcodeError(w, errStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
