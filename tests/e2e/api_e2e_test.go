package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/attendlog/internal/auth"
	"github.com/attendlog/internal/db"
	"github.com/attendlog/internal/handler"
	"github.com/attendlog/internal/ledger"
	"github.com/attendlog/internal/router"
	"github.com/attendlog/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	agentToken = "e2e-agent-token"
	adminUser  = "admin"
	adminPass  = "e2e-secret"
)

type e2eSuite struct {
	handler http.Handler
	public  httpClient
	admin   httpClient
	baseURL string
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

func TestE2E_AllInterfaces(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("public endpoints", suite.testPublicEndpoints)
	t.Run("agent heartbeats", suite.testAgentHeartbeats)
	suite.login(t)
	t.Run("admin pages", suite.testAdminPages)
	t.Run("policy apis", suite.testPolicyAPIs)
	t.Run("ledger apis", suite.testLedgerAPIs)
	t.Run("bearer token", suite.testBearerToken)
	t.Run("logout", suite.testLogout)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:e2e-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := db.EnsureUser(gdb, adminUser, adminPass); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	svc := service.NewServices(gdb, ledger.NewAggregator(time.UTC), nil, auth.NewIssuer("e2e-jwt-secret", time.Hour), "")
	api := handler.NewAPI(gdb, svc, handler.Options{AgentToken: agentToken})
	engine := router.SetupRouter(api, router.Options{
		SessionSecret: "test-session-secret",
		TemplateGlob:  "../../web/template/*.html",
	})

	return &e2eSuite{
		handler: engine,
		public:  newLocalClient(engine, false),
		admin:   newLocalClient(engine, true),
		baseURL: "http://example.test",
	}
}

func (s *e2eSuite) login(t *testing.T) {
	t.Helper()
	form := url.Values{
		"username": {adminUser},
		"password": {adminPass},
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/admin/login", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("failed to create login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.admin.Do(req)
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login failed, status %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/dashboard" {
		t.Fatalf("unexpected login redirect %q", loc)
	}
}

func (s *e2eSuite) testPublicEndpoints(t *testing.T) {
	resp := s.mustRequest(t, s.public, http.MethodGet, "/health", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("health: unexpected body %q", body)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/admin/login", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login page: expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, `name="password"`) {
		t.Fatalf("login page: missing password field")
	}

	for _, path := range []string{"/dashboard", "/settings", "/corrections"} {
		resp := s.mustRequest(t, s.public, http.MethodGet, path, nil, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("%s without session: expected 302, got %d", path, resp.StatusCode)
		}
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/balances/total", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("api without session: expected 401, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testAgentHeartbeats(t *testing.T) {
	agent := map[string]string{"Authorization": "Bearer " + agentToken}

	stamps := []string{"2024-03-04T09:00:00Z", "2024-03-04T09:01:00Z", "2024-03-04T09:02:00Z", "2024-03-04T09:30:00Z"}
	for i, ts := range stamps {
		resp := s.mustRequestJSON(t, s.public, http.MethodPost, "/api/heartbeat", map[string]interface{}{
			"id":        fmt.Sprintf("6f1c2a4e-0000-4000-8000-00000000000%d", i),
			"device_id": "laptop",
			"timestamp": ts,
		}, agent)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("heartbeat %s: expected 201, got %d", ts, resp.StatusCode)
		}
	}

	resp := s.mustRequestJSON(t, s.public, http.MethodPost, "/api/heartbeat", map[string]interface{}{
		"id":        "6f1c2a4e-0000-4000-8000-000000000000",
		"device_id": "laptop",
		"timestamp": stamps[0],
	}, agent)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate heartbeat: expected 200, got %d", resp.StatusCode)
	}
	var dup struct {
		Duplicate bool `json:"duplicate"`
		Recorded  int  `json:"recorded_minutes"`
	}
	decodeJSON(t, resp, &dup)
	// One recorded minute per heartbeat minute.
	if !dup.Duplicate || dup.Recorded != 4 {
		t.Fatalf("unexpected duplicate response %+v", dup)
	}

	resp = s.mustRequestJSON(t, s.public, http.MethodPost, "/api/heartbeat", map[string]interface{}{"device_id": "laptop"}, map[string]string{"Authorization": "Bearer wrong"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong agent token: expected 401, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testAdminPages(t *testing.T) {
	for _, path := range []string{"/dashboard", "/settings", "/corrections"} {
		resp := s.mustRequest(t, s.admin, http.MethodGet, path, nil, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s expected 200, got %d", path, resp.StatusCode)
		}
		if body := readBody(t, resp); !strings.Contains(body, adminUser) {
			t.Fatalf("%s: expected username in navigation", path)
		}
	}

	resp := s.mustRequest(t, s.admin, http.MethodGet, "/dashboard?month=2024-13", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad month: expected 400, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testPolicyAPIs(t *testing.T) {
	resp := s.mustRequestJSON(t, s.admin, http.MethodPut, "/api/settings", map[string]interface{}{
		"start_date":          "2024-03-01",
		"end_date":            "2024-03-31",
		"daily_working_hours": 8,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update settings: expected 200, got %d (%s)", resp.StatusCode, readBody(t, resp))
	}

	resp = s.mustRequestJSON(t, s.admin, http.MethodPost, "/api/holidays", map[string]interface{}{
		"date":        "2024-03-08",
		"description": "Women's Day",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create holiday: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.admin, http.MethodPost, "/api/leaves", map[string]interface{}{
		"date": "2024-03-05",
		"kind": "half",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create leave: expected 200, got %d (%s)", resp.StatusCode, readBody(t, resp))
	}

	resp = s.mustRequest(t, s.admin, http.MethodGet, "/api/leaves", nil, nil)
	defer resp.Body.Close()
	var leaves struct {
		Leaves []struct {
			Date string `json:"date"`
			Kind string `json:"kind"`
		} `json:"leaves"`
	}
	decodeJSON(t, resp, &leaves)
	if len(leaves.Leaves) != 1 || leaves.Leaves[0].Kind != "half" {
		t.Fatalf("unexpected leaves %+v", leaves.Leaves)
	}
}

func (s *e2eSuite) testLedgerAPIs(t *testing.T) {
	var day struct {
		Day struct {
			Category string `json:"category"`
			Recorded int    `json:"recorded_minutes"`
			Required int    `json:"required_minutes"`
			Balance  int    `json:"balance"`
		} `json:"day"`
	}
	resp := s.mustRequest(t, s.admin, http.MethodGet, "/api/days/2024-03-04", nil, nil)
	defer resp.Body.Close()
	decodeJSON(t, resp, &day)
	if day.Day.Category != "workday" || day.Day.Recorded != 4 || day.Day.Required != 480 {
		t.Fatalf("unexpected day %+v", day.Day)
	}

	resp = s.mustRequest(t, s.admin, http.MethodGet, "/api/days/2024-03-05", nil, nil)
	defer resp.Body.Close()
	decodeJSON(t, resp, &day)
	if day.Day.Category != "leave_half" || day.Day.Required != 240 {
		t.Fatalf("unexpected half leave %+v", day.Day)
	}

	resp = s.mustRequestJSON(t, s.admin, http.MethodPut, "/api/corrections/2024-03-04", map[string]interface{}{
		"corrected_minutes": 480,
		"reason":            "agent was **offline**",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert correction: expected 200, got %d (%s)", resp.StatusCode, readBody(t, resp))
	}

	resp = s.mustRequest(t, s.admin, http.MethodGet, "/corrections?start=2024-03-01&end=2024-03-07", nil, nil)
	defer resp.Body.Close()
	if body := readBody(t, resp); !strings.Contains(body, "<strong>offline</strong>") {
		t.Fatalf("corrections page should render the reason as markdown")
	}

	var total struct {
		Total struct {
			Worked   int `json:"worked_minutes"`
			Required int `json:"required_minutes"`
			Balance  int `json:"balance"`
		} `json:"total"`
	}
	resp = s.mustRequest(t, s.admin, http.MethodGet, "/api/balances/total?as_of=2024-03-05", nil, nil)
	defer resp.Body.Close()
	decodeJSON(t, resp, &total)
	// 1st (Fri) 480 + 4th 480 + 5th half leave 240.
	if total.Total.Required != 1200 || total.Total.Worked != 480 || total.Total.Balance != -720 {
		t.Fatalf("unexpected total %+v", total.Total)
	}

	resp = s.mustRequest(t, s.admin, http.MethodPost, "/api/recalculate", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recalculate: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.admin, http.MethodGet, "/api/heartbeats/2024-03-04", nil, nil)
	defer resp.Body.Close()
	var hb struct {
		Count int `json:"count"`
	}
	decodeJSON(t, resp, &hb)
	if hb.Count != 4 {
		t.Fatalf("expected 4 raw heartbeats, got %d", hb.Count)
	}

	resp = s.mustRequest(t, s.admin, http.MethodGet, "/api/charts/monthly.png", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("chart: unexpected %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func (s *e2eSuite) testBearerToken(t *testing.T) {
	resp := s.mustRequestJSON(t, s.public, http.MethodPost, "/api/auth/token", map[string]interface{}{
		"username": adminUser,
		"password": adminPass,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("issue token: expected 200, got %d", resp.StatusCode)
	}
	var tok struct {
		Token string `json:"token"`
	}
	decodeJSON(t, resp, &tok)
	if tok.Token == "" {
		t.Fatalf("expected a token")
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/balances/monthly", nil, map[string]string{"Authorization": "Bearer " + tok.Token})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("monthly with bearer: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.public, http.MethodPost, "/api/auth/token", map[string]interface{}{
		"username": adminUser,
		"password": "wrong",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testLogout(t *testing.T) {
	resp := s.mustRequest(t, s.admin, http.MethodGet, "/admin/logout", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("logout expected 302, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.admin, http.MethodGet, "/api/settings", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("api after logout: expected 401, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, client httpClient, method, path string, payload map[string]interface{}, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	all := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		all[k] = v
	}
	return s.mustRequest(t, client, method, path, bytes.NewReader(data), all)
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		t.Fatalf("failed to decode json: %v\nbody=%s", err, body)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}
