package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/assignment"
	"github.com/dennisdiepolder/callcrm/backend/internal/auth"
	"github.com/dennisdiepolder/callcrm/backend/internal/lease"
	"github.com/dennisdiepolder/callcrm/backend/internal/pool"
	"github.com/dennisdiepolder/callcrm/backend/internal/progress"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type testEnv struct {
	router      *chi.Mux
	pool        *pool.Pool
	leases      *lease.Manager
	distributor *assignment.Distributor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	env := &testEnv{
		pool:   pool.NewPool(5*time.Second, nil, zerolog.Nop()),
		leases: lease.NewManager(20*time.Minute, zerolog.Nop()),
	}
	tracker := progress.NewTracker(loc, nil, zerolog.Nop())
	env.distributor = assignment.NewDistributor(env.pool, env.leases, tracker, nil, zerolog.Nop())

	recordsHandler := NewRecordsHandler(env.pool, zerolog.Nop())
	leasesHandler := NewLeasesHandler(env.leases, zerolog.Nop())
	assignmentsHandler := NewAssignmentsHandler(env.distributor, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/records", func(r chi.Router) {
			r.Get("/available", recordsHandler.FetchAvailable)
			r.Get("/counts", recordsHandler.Counts)
			r.Route("/{recordId}/lease", func(r chi.Router) {
				r.Post("/", leasesHandler.Acquire)
				r.Put("/", leasesHandler.Renew)
				r.Delete("/", leasesHandler.Release)
				r.Get("/", leasesHandler.ClaimInfo)
			})
			r.With(RequireManager).Post("/import", recordsHandler.Import)
		})
		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", assignmentsHandler.ListMine)
			r.With(RequireManager).Post("/", assignmentsHandler.Distribute)
			r.Route("/{assignmentId}", func(r chi.Router) {
				r.Get("/", assignmentsHandler.Get)
				r.Post("/claim", assignmentsHandler.Claim)
				r.Post("/complete", assignmentsHandler.Complete)
			})
		})
	})
	env.router = r
	return env
}

// do executes a request with the given caller identity injected
func (env *testEnv) do(method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if claims != nil {
		req = req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func agentClaims(agentID string) *auth.Claims {
	return &auth.Claims{AgentID: agentID, Name: agentID, Role: "agent"}
}

func managerClaims() *auth.Claims {
	return &auth.Claims{AgentID: "manager-1", Name: "Manager", Role: "manager"}
}

func TestImportRequiresManager(t *testing.T) {
	env := newTestEnv(t)

	body := ImportRequest{
		Category: types.CategoryProspect,
		Records:  []types.RecordInput{{Phone: "+491700000001"}},
	}

	rec := env.do(http.MethodPost, "/api/records/import", body, agentClaims("alice"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for agent, got %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/records/import", body, managerClaims())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for manager, got %d: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Imported int      `json:"imported"`
		IDs      []string `json:"ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Imported != 1 || len(response.IDs) != 1 {
		t.Errorf("unexpected import response: %+v", response)
	}
}

func TestImportValidationStatus(t *testing.T) {
	env := newTestEnv(t)

	body := ImportRequest{Category: types.Category("bogus"), Records: []types.RecordInput{{Phone: "+491700000001"}}}
	rec := env.do(http.MethodPost, "/api/records/import", body, managerClaims())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestLeaseLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	ids, _ := env.pool.Import(types.CategoryProspect, []types.RecordInput{{Phone: "+491700000001"}})
	leasePath := "/api/records/" + ids[0] + "/lease"

	rec := env.do(http.MethodPost, leasePath, nil, agentClaims("alice"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on acquire, got %d: %s", rec.Code, rec.Body.String())
	}

	// Contending agent sees 409
	rec = env.do(http.MethodPost, leasePath, nil, agentClaims("bob"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for contender, got %d", rec.Code)
	}

	// Claim info differs per caller
	rec = env.do(http.MethodGet, leasePath, nil, agentClaims("alice"))
	var mine struct {
		Claimed     bool `json:"claimed"`
		ClaimedByMe bool `json:"claimedByMe"`
	}
	json.Unmarshal(rec.Body.Bytes(), &mine)
	if !mine.Claimed || !mine.ClaimedByMe {
		t.Errorf("expected holder view claimed/claimedByMe, got %+v", mine)
	}

	rec = env.do(http.MethodGet, leasePath, nil, agentClaims("bob"))
	var theirs struct {
		Claimed     bool `json:"claimed"`
		ClaimedByMe bool `json:"claimedByMe"`
	}
	json.Unmarshal(rec.Body.Bytes(), &theirs)
	if !theirs.Claimed || theirs.ClaimedByMe {
		t.Errorf("expected contender view claimed but not by me, got %+v", theirs)
	}

	// Non-holder release is 403, holder release succeeds
	rec = env.do(http.MethodDelete, leasePath, nil, agentClaims("bob"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-holder release, got %d", rec.Code)
	}
	rec = env.do(http.MethodDelete, leasePath, nil, agentClaims("alice"))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for holder release, got %d", rec.Code)
	}
}

func TestAssignmentFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	env.pool.Import(types.CategoryProspect, []types.RecordInput{{Phone: "+491700000001"}})

	rec := env.do(http.MethodPost, "/api/assignments", DistributeRequest{
		AgentID:  "alice",
		Category: types.CategoryProspect,
		Count:    1,
	}, managerClaims())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on distribute, got %d: %s", rec.Code, rec.Body.String())
	}

	var created []types.Assignment
	json.Unmarshal(rec.Body.Bytes(), &created)
	if len(created) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(created))
	}
	assignmentID := created[0].ID

	// Another agent may not claim it
	rec = env.do(http.MethodPost, "/api/assignments/"+assignmentID+"/claim", nil, agentClaims("bob"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign claim, got %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/assignments/"+assignmentID+"/claim", nil, agentClaims("alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on claim, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/assignments/"+assignmentID+"/complete", OutcomeRequest{
		Outcome: "interested",
	}, agentClaims("alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on complete, got %d: %s", rec.Code, rec.Body.String())
	}

	// Retried complete is a conflict, not a success
	rec = env.do(http.MethodPost, "/api/assignments/"+assignmentID+"/complete", OutcomeRequest{
		Outcome: "interested",
	}, agentClaims("alice"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on duplicate complete, got %d", rec.Code)
	}
}

func TestGetUnknownAssignment(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/assignments/nope", nil, agentClaims("alice"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/assignments", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", rec.Code)
	}
}
