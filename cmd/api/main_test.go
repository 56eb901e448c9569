package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"refdesk/auditlog"
	"refdesk/auth"
	"refdesk/conflict"
	"refdesk/lookup"
)

type stubLookupService struct {
	results    []lookup.ClientSummary
	searchErr  error
	details    lookup.Details
	detailsErr error
	tree       []lookup.TreeNode
	treeErr    error
	stats      lookup.Stats

	lastTerm  string
	lastActor auditlog.Actor
}

func (s *stubLookupService) Search(_ context.Context, term string, actor auditlog.Actor) ([]lookup.ClientSummary, error) {
	s.lastTerm = term
	s.lastActor = actor
	return s.results, s.searchErr
}

func (s *stubLookupService) Details(_ context.Context, _ int64, actor auditlog.Actor) (lookup.Details, error) {
	s.lastActor = actor
	return s.details, s.detailsErr
}

func (s *stubLookupService) Tree(_ context.Context, _ int64) ([]lookup.TreeNode, error) {
	return s.tree, s.treeErr
}

func (s *stubLookupService) Stats(_ context.Context) (lookup.Stats, error) {
	return s.stats, nil
}

type stubConflictService struct {
	report conflict.Report
	err    error
}

func (s *stubConflictService) Check(_ context.Context, _ string) (conflict.Report, error) {
	return s.report, s.err
}

type stubAuthService struct {
	identity    auth.Identity
	verifyErr   error
	loginResult auth.LoginResult
	loginErr    error
	admin       *auth.Admin
	registerErr error
}

func (s *stubAuthService) Register(_ context.Context, _ auth.RegisterRequest) (*auth.Admin, error) {
	return s.admin, s.registerErr
}

func (s *stubAuthService) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuthService) VerifyToken(_ string) (auth.Identity, error) {
	return s.identity, s.verifyErr
}

func newTestServer() *Server {
	return &Server{
		logger:          zap.NewNop(),
		lookupService:   &stubLookupService{},
		conflictService: &stubConflictService{},
		authService:     &stubAuthService{},
		version:         "test",
		pageConfig:      pageConfig{ResultsPerPage: 20},
	}
}

func actionRequest(fields url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleAction_SearchSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	refName := "Omar Reyes"
	stub := &stubLookupService{
		results: []lookup.ClientSummary{
			{ID: 7, Name: "Dana Cole", Email: "dana@example.com", Created: now, Status: "Active",
				HasReferrer: true, ReferrerName: &refName, IsAffiliate: true},
		},
	}
	server := newTestServer()
	server.lookupService = stub

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"search_clients"}, "term": {"dana"}}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusSuccess || resp.Count != 1 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	r := resp.Results[0]
	if r.ID != 7 || !r.HasReferrer || r.ReferrerName == nil || *r.ReferrerName != "Omar Reyes" || !r.IsAffiliate {
		t.Fatalf("unexpected result: %+v", r)
	}
	if stub.lastTerm != "dana" {
		t.Fatalf("service received term %q", stub.lastTerm)
	}
}

func TestHandleAction_SearchTermTooShort(t *testing.T) {
	server := newTestServer()
	server.lookupService = &stubLookupService{searchErr: lookup.ErrTermTooShort}

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"search_clients"}, "term": {"d"}}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusError || !strings.Contains(resp.Message, "2 characters") {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleAction_UnknownAction(t *testing.T) {
	server := newTestServer()

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"drop_tables"}}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusError || resp.Message != "Unknown action" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleAction_DetailsNotFound(t *testing.T) {
	server := newTestServer()
	server.lookupService = &stubLookupService{detailsErr: lookup.ErrClientNotFound}

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"get_referral_details"}, "client_id": {"99"}}))

	var resp notFoundResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusNotFound {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleAction_DetailsInvalidID(t *testing.T) {
	server := newTestServer()

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"get_referral_details"}, "client_id": {"abc"}}))

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusError || resp.Message != "Invalid client ID" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleAction_DetailsSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	server := newTestServer()
	server.lookupService = &stubLookupService{
		details: lookup.Details{
			Client:      lookup.ClientRow{ID: 7, FirstName: "Dana", LastName: "Cole", Email: "dana@example.com", Created: now, Status: "Active"},
			IsAffiliate: true,
			AffiliateStats: &lookup.AffiliateStats{
				TotalReferrals:   3,
				TotalCommissions: 120.5,
				SignupDate:       now,
			},
			Usage: lookup.UsageStats{TotalServices: 2, TotalInvoices: 9},
		},
	}

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"get_referral_details"}, "client_id": {"7"}}))

	var resp detailsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusSuccess || resp.Client.Name != "Dana Cole" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.Client.Created != "Jun 1, 2025" {
		t.Fatalf("unexpected created date: %q", resp.Client.Created)
	}
	if resp.AffiliateStats == nil || resp.AffiliateStats.TotalReferrals != 3 {
		t.Fatalf("unexpected affiliate stats: %+v", resp.AffiliateStats)
	}
	if resp.Usage.TotalInvoices != 9 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestHandleAction_TreeSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	server := newTestServer()
	server.lookupService = &stubLookupService{
		tree: []lookup.TreeNode{
			{ID: 8, Name: "Omar Reyes", Level: 1, Created: now, Children: []lookup.TreeNode{
				{ID: 9, Name: "Priya Nair", Level: 2, Created: now},
			}},
		},
	}

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"get_referral_tree"}, "client_id": {"8"}}))

	var resp treeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusSuccess {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if len(resp.Tree) != 1 || len(resp.Tree[0].Children) != 1 || resp.Tree[0].Children[0].Level != 2 {
		t.Fatalf("unexpected tree: %+v", resp.Tree)
	}
}

func TestHandleAction_ConflictNotFound(t *testing.T) {
	server := newTestServer()
	server.conflictService = &stubConflictService{err: conflict.ErrClientNotFound}

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"check_referral_conflicts"}, "client_email": {"ghost@example.com"}}))

	var resp notFoundResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusNotFound {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if !strings.Contains(resp.Message, "ghost@example.com") {
		t.Fatalf("message does not name the email: %q", resp.Message)
	}
	if len(resp.Suggestions) != len(conflict.NotFoundSuggestions) {
		t.Fatalf("suggestions = %v", resp.Suggestions)
	}
}

func TestHandleAction_ConflictSuccess(t *testing.T) {
	server := newTestServer()
	server.conflictService = &stubConflictService{
		report: conflict.Report{
			Client:           conflict.Client{ID: 7, FirstName: "Dana", LastName: "Cole", Email: "dana@example.com"},
			ConflictDetected: true,
			Severity:         conflict.SeverityHigh,
			Message:          "Multiple referral claims detected! Found 3 claims from 3 unique affiliates.",
			Referrers: []conflict.Candidate{
				{Type: conflict.TypeDatabaseReferrer, Name: "Omar Reyes", Email: "omar@example.com", Priority: 1},
			},
			Summary: conflict.Summary{TotalClaims: 3, UniqueAffiliates: 3},
		},
	}

	rec := httptest.NewRecorder()
	server.handleAction(rec, actionRequest(url.Values{"action": {"check_referral_conflicts"}, "client_email": {"dana@example.com"}}))

	var resp conflictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusSuccess || !resp.ConflictDetected || resp.Severity != "High" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.Summary.UniqueAffiliates != 3 || len(resp.Referrers) != 1 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestRoutes_ActionRequiresAuth(t *testing.T) {
	server := newTestServer()
	server.authService = &stubAuthService{verifyErr: errors.New("bad token")}
	handler := server.routes()

	req := actionRequest(url.Values{"action": {"search_clients"}, "term": {"dana"}})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	req = actionRequest(url.Values{"action": {"search_clients"}, "term": {"dana"}})
	req.Header.Set("Authorization", "Bearer expired")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rec.Code)
	}
}

func TestRoutes_ActorReachesService(t *testing.T) {
	stub := &stubLookupService{}
	server := newTestServer()
	server.lookupService = stub
	server.authService = &stubAuthService{identity: auth.Identity{ID: "adm-1", Name: "Root Admin"}}
	handler := server.routes()

	req := actionRequest(url.Values{"action": {"search_clients"}, "term": {"dana"}})
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.lastActor.AdminID != "adm-1" || stub.lastActor.AdminName != "Root Admin" {
		t.Fatalf("actor not propagated: %+v", stub.lastActor)
	}
	if stub.lastActor.IP == "" {
		t.Fatal("actor IP is empty")
	}
}

func TestHandleLogin(t *testing.T) {
	server := newTestServer()
	server.authService = &stubAuthService{
		loginResult: auth.LoginResult{
			Token: "jwt-token",
			Admin: auth.Admin{ID: "adm-1", Name: "Root Admin", Email: "root@example.com"},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"root@example.com","password":"hunter22"}`))
	rec := httptest.NewRecorder()
	server.handleLogin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "jwt-token" || resp.Admin.Name != "Root Admin" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	server := newTestServer()
	server.authService = &stubAuthService{loginErr: auth.ErrInvalidCredentials}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"root@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	server.handleLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	server := newTestServer()
	server.ping = func(context.Context) error { return nil }

	rec := httptest.NewRecorder()
	server.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	server.ping = func(context.Context) error { return errors.New("down") }
	rec = httptest.NewRecorder()
	server.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleIndex_RendersPage(t *testing.T) {
	server := newTestServer()
	server.lookupService = &stubLookupService{stats: lookup.Stats{Clients: 120, Affiliates: 14}}

	rec := httptest.NewRecorder()
	server.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Referral Lookup") || !strings.Contains(body, "120 clients") {
		t.Fatalf("unexpected page body: %.200s", body)
	}
}
