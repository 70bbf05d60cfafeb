package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/api/http/handlers"
	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/domain"
	"github.com/spec-kit/referral-service/internal/observability"
	"github.com/spec-kit/referral-service/internal/persistence"
	"github.com/spec-kit/referral-service/internal/repository"
	"github.com/spec-kit/referral-service/internal/service"
)

// In-memory repositories mirroring the schema's uniqueness constraints.

type memStore struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	referrals map[int64]*domain.Referral
	nextID    int64
}

type memUserRepo struct{ store *memStore }

func (f *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if _, ok := f.store.users[user.UserID]; ok {
		return &pgconn.PgError{Code: "23505", ConstraintName: repository.ConstraintUserPK}
	}
	for _, existing := range f.store.users {
		if existing.ReferralCode == user.ReferralCode {
			return &pgconn.PgError{Code: "23505", ConstraintName: repository.ConstraintUserReferralCode}
		}
	}
	clone := *user
	f.store.users[user.UserID] = &clone
	return nil
}

func (f *memUserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	user, ok := f.store.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *memUserRepo) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, user := range f.store.users {
		if user.ReferralCode == code {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *memUserRepo) MarkProfileCompleted(ctx context.Context, userID string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	user, ok := f.store.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ProfileCompleted = true
	return nil
}

type memReferralRepo struct{ store *memStore }

func (f *memReferralRepo) Create(ctx context.Context, referral *domain.Referral) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.nextID++
	referral.ID = f.store.nextID
	clone := *referral
	f.store.referrals[referral.ID] = &clone
	return nil
}

func (f *memReferralRepo) ListByReferrer(ctx context.Context, referrerID string) ([]domain.Referral, error) {
	return f.list(func(r *domain.Referral) bool { return r.ReferrerID == referrerID })
}

func (f *memReferralRepo) ListByReferred(ctx context.Context, referredID string) ([]domain.Referral, error) {
	return f.list(func(r *domain.Referral) bool { return r.ReferredID == referredID })
}

func (f *memReferralRepo) ListAll(ctx context.Context) ([]domain.Referral, error) {
	return f.list(func(*domain.Referral) bool { return true })
}

func (f *memReferralRepo) list(match func(*domain.Referral) bool) ([]domain.Referral, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var result []domain.Referral
	for _, referral := range f.store.referrals {
		if match(referral) {
			result = append(result, *referral)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *memReferralRepo) MarkSuccessful(ctx context.Context, id int64) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	referral, ok := f.store.referrals[id]
	if !ok {
		return pgx.ErrNoRows
	}
	referral.Successful = true
	return nil
}

type memTxManager struct{ store *memStore }

func (f *memTxManager) WithinTx(ctx context.Context, fn func(users repository.UserRepository, referrals repository.ReferralRepository) error) error {
	return fn(&memUserRepo{store: f.store}, &memReferralRepo{store: f.store})
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := &memStore{
		users:     make(map[string]*domain.User),
		referrals: make(map[int64]*domain.Referral),
	}
	userRepo := &memUserRepo{store: store}
	referralRepo := &memReferralRepo{store: store}

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            4,
		},
	}
	engine := service.NewReferralService(cfg, service.Dependencies{
		Users:     userRepo,
		Referrals: referralRepo,
		Tx:        &memTxManager{store: store},
	})
	reports := service.NewReportService(referralRepo, nil, 0, nil)
	identity := auth.NewIdentityMiddleware(engine.TokenManager(), userRepo)

	logger := zap.NewNop()
	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:    handlers.NewHealthHandler("referral-service", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Users:     handlers.NewUsersHandler(engine),
		Referrals: handlers.NewReferralsHandler(reports),
		Identity:  identity,
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope %q: %v", string(raw), err)
	}
	return envelope.Error.Code
}

func TestSignupEndpoint(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	resp, raw := doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "alice", "password": "pw"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d want 201, body %s", resp.StatusCode, raw)
	}

	var user struct {
		UserID           string `json:"userId"`
		ReferralCode     string `json:"referralCode"`
		ProfileCompleted bool   `json:"profileCompleted"`
		Role             string `json:"role"`
	}
	if err := json.Unmarshal(raw, &user); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	if user.UserID != "alice" || len(user.ReferralCode) != 8 || user.ProfileCompleted || user.Role != "USER" {
		t.Fatalf("unexpected user payload: %s", raw)
	}
	if strings.Contains(strings.ToLower(string(raw)), "password") {
		t.Fatalf("password material leaked in response: %s", raw)
	}

	// Duplicate id conflicts.
	resp, raw = doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "alice", "password": "pw"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup: got %d want 409", resp.StatusCode)
	}
	if errorCode(t, raw) != "USER_ALREADY_EXISTS" {
		t.Fatalf("unexpected error body: %s", raw)
	}

	// Unknown referral code rejects.
	resp, raw = doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "bob", "password": "pw", "referralCode": "nope1234"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad code signup: got %d want 400", resp.StatusCode)
	}
	if errorCode(t, raw) != "INVALID_REFERRAL_CODE" {
		t.Fatalf("unexpected error body: %s", raw)
	}

	// Missing fields reject.
	resp, _ = doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "bob"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing password: got %d want 400", resp.StatusCode)
	}
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "alice", "password": "pw"}, nil)

	resp, raw := doJSON(t, app, "POST", "/api/auth/login",
		map[string]string{"userId": "alice", "password": "pw"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: got %d want 200, body %s", resp.StatusCode, raw)
	}
	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &tokenResp); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	if tokenResp.Token == "" {
		t.Fatalf("empty token in %s", raw)
	}

	resp, raw = doJSON(t, app, "POST", "/api/auth/login",
		map[string]string{"userId": "alice", "password": "wrong"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: got %d want 401", resp.StatusCode)
	}
	if errorCode(t, raw) != "AUTHENTICATION_FAILED" {
		t.Fatalf("unexpected error body: %s", raw)
	}

	resp, raw = doJSON(t, app, "POST", "/api/auth/login",
		map[string]string{"userId": "nobody", "password": "pw"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user: got %d want 404", resp.StatusCode)
	}
	if errorCode(t, raw) != "USER_NOT_FOUND" {
		t.Fatalf("unexpected error body: %s", raw)
	}
}

func TestReferralLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	_, raw := doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "alice", "password": "pw"}, nil)
	var alice struct {
		ReferralCode string `json:"referralCode"`
	}
	if err := json.Unmarshal(raw, &alice); err != nil {
		t.Fatalf("unmarshal alice: %v", err)
	}

	resp, _ := doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "bob", "password": "pw", "referralCode": alice.ReferralCode}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bob signup: got %d want 201", resp.StatusCode)
	}

	_, raw = doJSON(t, app, "POST", "/api/auth/login",
		map[string]string{"userId": "alice", "password": "pw"}, nil)
	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &tokenResp); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	authHeader := map[string]string{"Authorization": "Bearer " + tokenResp.Token}

	resp, raw = doJSON(t, app, "GET", "/api/users/alice/referrals", nil, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list referrals: got %d want 200", resp.StatusCode)
	}
	var referrals []struct {
		ReferrerID string `json:"referrerId"`
		ReferredID string `json:"referredId"`
		Successful bool   `json:"successful"`
	}
	if err := json.Unmarshal(raw, &referrals); err != nil {
		t.Fatalf("unmarshal referrals %q: %v", string(raw), err)
	}
	if len(referrals) != 1 || referrals[0].ReferrerID != "alice" ||
		referrals[0].ReferredID != "bob" || referrals[0].Successful {
		t.Fatalf("unexpected referrals: %s", raw)
	}

	resp, _ = doJSON(t, app, "POST", "/api/users/profile",
		map[string]string{"userId": "bob"}, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete profile: got %d want 200", resp.StatusCode)
	}

	_, raw = doJSON(t, app, "GET", "/api/users/alice/referrals", nil, authHeader)
	if err := json.Unmarshal(raw, &referrals); err != nil {
		t.Fatalf("unmarshal referrals: %v", err)
	}
	if len(referrals) != 1 || !referrals[0].Successful {
		t.Fatalf("referral should have converted: %s", raw)
	}

	resp, raw = doJSON(t, app, "GET", "/api/users/nobody/referrals", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user referrals: got %d want 404", resp.StatusCode)
	}
	if errorCode(t, raw) != "USER_NOT_FOUND" {
		t.Fatalf("unexpected error body: %s", raw)
	}
}

func TestProfileEndpoint_UnknownUser(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	resp, raw := doJSON(t, app, "POST", "/api/users/profile",
		map[string]string{"userId": "ghost"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d want 404", resp.StatusCode)
	}
	if errorCode(t, raw) != "USER_NOT_FOUND" {
		t.Fatalf("unexpected error body: %s", raw)
	}
}

func TestReportEndpoint(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	resp, raw := doJSON(t, app, "GET", "/api/referrals/report", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report: got %d want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type: got %q want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "attachment; filename=referral_report.csv" {
		t.Fatalf("content disposition: got %q", cd)
	}
	if string(raw) != "Referrer ID,Referred ID,Successful\n" {
		t.Fatalf("empty report body: got %q", string(raw))
	}

	_, body := doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "alice", "password": "pw"}, nil)
	var alice struct {
		ReferralCode string `json:"referralCode"`
	}
	if err := json.Unmarshal(body, &alice); err != nil {
		t.Fatalf("unmarshal alice: %v", err)
	}
	doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "bob", "password": "pw", "referralCode": alice.ReferralCode}, nil)

	_, raw = doJSON(t, app, "GET", "/api/referrals/report", nil, nil)
	want := "Referrer ID,Referred ID,Successful\nalice,bob,false\n"
	if string(raw) != want {
		t.Fatalf("report body:\ngot  %q\nwant %q", string(raw), want)
	}
}

func TestInvalidBearerTokenDoesNotReject(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	doJSON(t, app, "POST", "/api/users/signup",
		map[string]string{"userId": "alice", "password": "pw"}, nil)

	// A garbage token must leave the request unauthenticated, not fail it.
	resp, _ := doJSON(t, app, "GET", "/api/users/alice/referrals", nil,
		map[string]string{"Authorization": "Bearer not.a.jwt"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d want 200", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	resp, _ := doJSON(t, app, "GET", "/health/live", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("live: got %d want 200", resp.StatusCode)
	}

	// Neither postgres nor redis is configured in the test app.
	resp, _ = doJSON(t, app, "GET", "/health/ready", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("ready: got %d want 503", resp.StatusCode)
	}
}
