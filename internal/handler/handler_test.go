package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bitfantasy/nimo-admin/internal/audit"
	"github.com/bitfantasy/nimo-admin/internal/backend"
	"github.com/bitfantasy/nimo-admin/internal/export"
	"github.com/bitfantasy/nimo-admin/internal/generation"
	"github.com/bitfantasy/nimo-admin/internal/service"
	"github.com/bitfantasy/nimo-admin/internal/session"
	"github.com/bitfantasy/nimo-admin/internal/sse"
	"github.com/bitfantasy/nimo-admin/internal/testutil"
	"github.com/gin-gonic/gin"
)

// platform 模拟平台后端，按 "METHOD path" 注册响应
type platform struct {
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  map[string]int
	auth   []string
}

func newPlatform() *platform {
	return &platform{routes: map[string]http.HandlerFunc{}, calls: map[string]int{}}
}

func (p *platform) on(method, path string, h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[method+" "+path] = h
}

func (p *platform) reply(method, path string, status int, body string) {
	p.on(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

func (p *platform) count(method, path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method+" "+path]
}

func (p *platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	p.mu.Lock()
	p.calls[key]++
	p.auth = append(p.auth, r.Header.Get("Authorization"))
	h, ok := p.routes[key]
	p.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"not found"}`)
		return
	}
	h(w, r)
}

type testEnv struct {
	Router   *gin.Engine
	Platform *platform
	Store    *session.Store
	Redis    *miniredis.Miniredis
	Activity *audit.Repository
	Services *service.Services
	Token    string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	p := newPlatform()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	db := testutil.SetupTestDB(t, &audit.Activity{})
	rdb, mr := testutil.SetupRedis(t)

	store := session.NewStore(rdb, time.Hour, 10*time.Second)
	activity := audit.NewRepository(db, nil)
	hub := sse.NewHub(nil)

	svc := service.NewServices(service.Deps{
		Backend:    backend.NewClient(srv.URL, 5*time.Second, nil),
		Sessions:   store,
		Activity:   activity,
		Archive:    export.NewArchive(nil, ""),
		Hub:        hub,
		Generation: generation.Options{Interval: 10 * time.Millisecond},
	})
	t.Cleanup(svc.Generation.Shutdown)

	router := testutil.SetupRouter()
	RegisterRoutes(testutil.AuthGroup(router, "/api/v1"), NewHandlers(svc, hub))

	return &testEnv{
		Router:   router,
		Platform: p,
		Store:    store,
		Redis:    mr,
		Activity: activity,
		Services: svc,
		Token:    testutil.DefaultTestToken(),
	}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	return testutil.DoRequest(e.Router, method, path, body, e.Token)
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, status, code int) map[string]interface{} {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if got := int(resp["code"].(float64)); got != code {
		t.Fatalf("Expected code %d, got %d: %s", code, got, w.Body.String())
	}
	return resp
}

func newDraftID(t *testing.T, env *testEnv) string {
	t.Helper()
	w := env.do(http.MethodPost, "/api/v1/orders/drafts", nil)
	expectCode(t, w, http.StatusCreated, 0)
	draft := testutil.DataMap(t, w)["draft"].(map[string]interface{})
	return draft["id"].(string)
}

func editLine(env *testEnv, id, index, field, value string) *httptest.ResponseRecorder {
	return env.do(http.MethodPatch, "/api/v1/orders/drafts/"+id+"/lines/"+index,
		map[string]string{"field": field, "value": value})
}

func firstLine(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	draft := testutil.DataMap(t, w)["draft"].(map[string]interface{})
	return draft["lines"].([]interface{})[0].(map[string]interface{})
}

func TestRequiresAuth(t *testing.T) {
	env := setupEnv(t)
	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/orders", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}

func TestDraftEditing(t *testing.T) {
	env := setupEnv(t)
	id := newDraftID(t, env)

	for _, e := range [][2]string{{"unitPrice", "10"}, {"unitsPerBox", "5"}, {"unitsPerBox", "10"}} {
		w := editLine(env, id, "0", e[0], e[1])
		expectCode(t, w, http.StatusOK, 0)
	}

	w := env.do(http.MethodGet, "/api/v1/orders/drafts/"+id, nil)
	expectCode(t, w, http.StatusOK, 0)
	line := firstLine(t, w)
	if line["boxPrice"] != "100" {
		t.Fatalf("Expected boxPrice 100, got %v", line["boxPrice"])
	}
	if line["quantity"] != "" {
		t.Fatalf("Expected quantity unset, got %v", line["quantity"])
	}
	if total := testutil.DataMap(t, w)["total"].(float64); total != 0 {
		t.Fatalf("Expected total 0, got %v", total)
	}

	w = editLine(env, id, "0", "quantity", "12")
	expectCode(t, w, http.StatusOK, 0)
	w = editLine(env, id, "0", "unitsPerBox", "5")
	expectCode(t, w, http.StatusOK, 0)
	w = editLine(env, id, "0", "orderByBox", "true")
	expectCode(t, w, http.StatusOK, 0)
	if bq := firstLine(t, w)["boxQuantity"]; bq != "3" {
		t.Fatalf("Expected boxQuantity 3, got %v", bq)
	}

	// 按箱订购时数量由箱数推导
	w = editLine(env, id, "0", "quantity", "7")
	expectCode(t, w, http.StatusUnprocessableEntity, CodeDerivedField)

	w = editLine(env, id, "0", "colour", "red")
	expectCode(t, w, http.StatusUnprocessableEntity, CodeUnknownField)

	w = editLine(env, id, "9", "quantity", "1")
	expectCode(t, w, http.StatusNotFound, CodeNotFound)

	w = editLine(env, id, "x", "quantity", "1")
	expectCode(t, w, http.StatusBadRequest, CodeBadRequest)
}

func TestDraftLines(t *testing.T) {
	env := setupEnv(t)
	id := newDraftID(t, env)

	w := env.do(http.MethodDelete, "/api/v1/orders/drafts/"+id+"/lines/0", nil)
	expectCode(t, w, http.StatusConflict, CodeLastRow)

	w = env.do(http.MethodPost, "/api/v1/orders/drafts/"+id+"/lines", nil)
	expectCode(t, w, http.StatusOK, 0)
	if n := len(testutil.DataMap(t, w)["lines"].([]interface{})); n != 2 {
		t.Fatalf("Expected 2 lines, got %d", n)
	}

	w = env.do(http.MethodDelete, "/api/v1/orders/drafts/"+id+"/lines/1", nil)
	expectCode(t, w, http.StatusOK, 0)

	w = env.do(http.MethodGet, "/api/v1/orders/drafts/does-not-exist", nil)
	expectCode(t, w, http.StatusNotFound, CodeNotFound)
}

func TestSubmitDraft(t *testing.T) {
	env := setupEnv(t)
	var got map[string]interface{}
	env.Platform.on(http.MethodPost, "/inventory/orders", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"o-1","orderNumber":"PO-1","status":"placed","totalAmount":15}`)
	})

	id := newDraftID(t, env)
	for _, e := range [][2]string{{"quantity", "6"}, {"unitPrice", "2.5"}} {
		expectCode(t, editLine(env, id, "0", e[0], e[1]), http.StatusOK, 0)
	}

	w := env.do(http.MethodPost, "/api/v1/orders/drafts/"+id+"/submit", nil)
	resp := expectCode(t, w, http.StatusBadRequest, CodeValidation)
	if field := resp["data"].(map[string]interface{})["field"]; field != "items[0].material" {
		t.Fatalf("Expected material field error, got %v", field)
	}
	if env.Platform.count(http.MethodPost, "/inventory/orders") != 0 {
		t.Fatal("Invalid draft must not reach the platform")
	}

	expectCode(t, editLine(env, id, "0", "material", "m-1"), http.StatusOK, 0)

	w = env.do(http.MethodPost, "/api/v1/orders/drafts/"+id+"/submit", nil)
	expectCode(t, w, http.StatusCreated, 0)
	if testutil.DataMap(t, w)["orderNumber"] != "PO-1" {
		t.Fatalf("Unexpected order: %s", w.Body.String())
	}

	items := got["items"].([]interface{})
	item := items[0].(map[string]interface{})
	if item["totalPrice"].(float64) != 15 || item["boxPrice"].(float64) != 2.5 {
		t.Fatalf("Unexpected normalized line %v", item)
	}
	if _, ok := item["orderedByBox"]; ok {
		t.Fatalf("Unit line must not carry box metadata: %v", item)
	}
	if got["totalAmount"].(float64) != 15 {
		t.Fatalf("Unexpected totalAmount %v", got["totalAmount"])
	}

	w = env.do(http.MethodGet, "/api/v1/orders/drafts/"+id, nil)
	expectCode(t, w, http.StatusNotFound, CodeNotFound)

	acts, _, _ := env.Activity.List(context.Background(), audit.Filter{EntityType: audit.EntityOrder})
	if len(acts) != 1 || acts[0].EntityID != "o-1" || acts[0].OperatorID != "test-user-001" {
		t.Fatalf("Expected order activity, got %+v", acts)
	}
}

func TestSubmitInProgress(t *testing.T) {
	env := setupEnv(t)
	id := newDraftID(t, env)

	ok, err := env.Store.AcquireSubmit(context.Background(), "test-user-001", id)
	if err != nil || !ok {
		t.Fatalf("acquire: %v", err)
	}

	w := env.do(http.MethodPost, "/api/v1/orders/drafts/"+id+"/submit", nil)
	expectCode(t, w, http.StatusConflict, CodeSubmitInProgress)
}

func TestSessionExpiryClearsDrafts(t *testing.T) {
	env := setupEnv(t)
	env.Platform.reply(http.MethodGet, "/inventory/orders", http.StatusUnauthorized, `{"message":"token expired"}`)

	id := newDraftID(t, env)
	if len(env.Redis.Keys()) == 0 {
		t.Fatal("Expected a stored draft")
	}

	w := env.do(http.MethodGet, "/api/v1/orders", nil)
	expectCode(t, w, http.StatusUnauthorized, CodeSessionExpired)

	if keys := env.Redis.Keys(); len(keys) != 0 {
		t.Fatalf("Expected session cleared, got %v", keys)
	}
	w = env.do(http.MethodGet, "/api/v1/orders/drafts/"+id, nil)
	expectCode(t, w, http.StatusNotFound, CodeNotFound)
}

func TestTokenForwarded(t *testing.T) {
	env := setupEnv(t)
	env.Platform.reply(http.MethodGet, "/inventory/raw-materials", http.StatusOK, `[{"id":"m-1","name":"Flour","unit":"kg","currentStock":3}]`)

	w := env.do(http.MethodGet, "/api/v1/materials", nil)
	expectCode(t, w, http.StatusOK, 0)
	if items := testutil.DataMap(t, w)["items"].([]interface{}); len(items) != 1 {
		t.Fatalf("Expected 1 material, got %v", items)
	}
	if env.Platform.auth[0] != "Bearer "+env.Token {
		t.Fatalf("Expected forwarded token, got %q", env.Platform.auth[0])
	}
}

func TestBackendRejectionMessage(t *testing.T) {
	env := setupEnv(t)
	env.Platform.reply(http.MethodPut, "/inventory/orders/o-1/status", http.StatusBadRequest, `{}`)
	env.Platform.reply(http.MethodGet, "/production/recipes", http.StatusInternalServerError, `{"message":"db down"}`)

	w := env.do(http.MethodPut, "/api/v1/orders/o-1/status", map[string]string{"from": "placed", "status": "recieved"})
	resp := expectCode(t, w, http.StatusBadRequest, 40050)
	if resp["message"] != "Failed to update order status" {
		t.Fatalf("Expected fallback message, got %v", resp["message"])
	}

	w = env.do(http.MethodGet, "/api/v1/recipes", nil)
	resp = expectCode(t, w, http.StatusBadGateway, CodeBackendUnavailable)
	if resp["message"] != "db down" {
		t.Fatalf("Expected backend message, got %v", resp["message"])
	}

	w = env.do(http.MethodPut, "/api/v1/orders/o-1/status", map[string]string{"from": "cancelled", "status": "placed"})
	expectCode(t, w, http.StatusConflict, CodeInvalidTransition)
}

func TestCreateRecipeValidation(t *testing.T) {
	env := setupEnv(t)
	form := map[string]interface{}{
		"name":        "Cake",
		"outputItems": []map[string]string{{"product": "p-1", "size": "L", "outputQuantity": "4"}},
		"materials":   []map[string]string{{"material": "flour", "quantity": "0"}},
	}

	w := env.do(http.MethodPost, "/api/v1/recipes", form)
	resp := expectCode(t, w, http.StatusBadRequest, CodeValidation)
	if resp["message"] != "At least one material must be specified" {
		t.Fatalf("Unexpected message %v", resp["message"])
	}
	if env.Platform.count(http.MethodPost, "/production/recipes") != 0 {
		t.Fatal("Invalid recipe must not reach the platform")
	}

	var sent map[string]interface{}
	env.Platform.on(http.MethodPost, "/production/recipes", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&sent)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"r-1","name":"Cake"}`)
	})
	form["materials"] = []map[string]string{{"material": "flour", "quantity": "1.5"}}
	w = env.do(http.MethodPost, "/api/v1/recipes", form)
	expectCode(t, w, http.StatusCreated, 0)

	out := sent["outputItems"].([]interface{})[0].(map[string]interface{})
	if _, ok := out["subItem"]; ok {
		t.Fatalf("Empty subItem must be omitted: %v", out)
	}
	if out["outputQuantity"].(float64) != 4 {
		t.Fatalf("Expected numeric outputQuantity, got %v", out["outputQuantity"])
	}
}

func TestBatchStatusInsufficiency(t *testing.T) {
	env := setupEnv(t)
	env.Platform.reply(http.MethodPut, "/production/batches/b-1/status", http.StatusBadRequest, `{
		"message": "Insufficient materials for batch",
		"insufficientMaterials": [
			{"name": "Flour", "required": 12, "available": 4.5, "unit": "kg"},
			{"name": "Milk", "required": 3, "available": 1, "unit": "liter"}
		]
	}`)

	w := env.do(http.MethodPut, "/api/v1/batches/b-1/status", map[string]string{"from": "planned", "status": "in-progress"})
	resp := expectCode(t, w, http.StatusConflict, CodeInsufficient)

	data := resp["data"].(map[string]interface{})
	lines := data["lines"].([]interface{})
	if len(lines) != 2 {
		t.Fatalf("Expected two rendered lines, got %v", lines)
	}
	if lines[0] != "Flour: required 12 kg, available 4.5 kg" || !strings.Contains(lines[1].(string), "Milk") {
		t.Fatalf("Unexpected lines %v", lines)
	}
	if mats := data["insufficient_materials"].([]interface{}); len(mats) != 2 {
		t.Fatalf("Expected structured materials, got %v", mats)
	}

	acts, _, _ := env.Activity.List(context.Background(), audit.Filter{EntityType: audit.EntityBatch})
	if len(acts) != 1 || acts[0].Action != audit.ActionRejected {
		t.Fatalf("Expected rejected activity, got %+v", acts)
	}
}

func TestBatchStatusLocalChecks(t *testing.T) {
	env := setupEnv(t)
	env.Platform.reply(http.MethodPut, "/production/batches/b-1/status", http.StatusOK,
		`{"id":"b-1","batchNumber":"B-1","status":"completed","items":[],"materialsUsed":[]}`)

	w := env.do(http.MethodPut, "/api/v1/batches/b-1/status", map[string]string{"from": "completed", "status": "in-progress"})
	expectCode(t, w, http.StatusConflict, CodeInvalidTransition)
	if env.Platform.count(http.MethodPut, "/production/batches/b-1/status") != 0 {
		t.Fatal("Invalid transition must not reach the platform")
	}

	w = env.do(http.MethodPut, "/api/v1/batches/b-1/status", map[string]string{"from": "in-progress", "status": "completed"})
	expectCode(t, w, http.StatusOK, 0)
	data := testutil.DataMap(t, w)
	if data["deletable"] != false || len(data["nextStatuses"].([]interface{})) != 0 {
		t.Fatalf("Completed batch must offer no actions: %v", data)
	}

	w = env.do(http.MethodDelete, "/api/v1/batches/b-1?status=completed", nil)
	expectCode(t, w, http.StatusConflict, CodeNotDeletable)

	env.Platform.reply(http.MethodDelete, "/production/batches/b-2", http.StatusNoContent, "")
	w = env.do(http.MethodDelete, "/api/v1/batches/b-2?status=planned", nil)
	expectCode(t, w, http.StatusOK, 0)
}

func TestCreateBatchFromRecipe(t *testing.T) {
	env := setupEnv(t)
	var sent map[string]interface{}
	env.Platform.on(http.MethodPost, "/production/batches/from-recipe", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&sent)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"b-9","batchNumber":"B-9","status":"planned","items":[],"materialsUsed":[]}`)
	})

	w := env.do(http.MethodPost, "/api/v1/batches/from-recipe", map[string]string{"recipeId": "r-1", "scaleFactor": "0", "startDate": "2024-06-01"})
	expectCode(t, w, http.StatusBadRequest, CodeValidation)

	w = env.do(http.MethodPost, "/api/v1/batches/from-recipe", map[string]string{"recipeId": "r-1", "startDate": "2024-06-01"})
	expectCode(t, w, http.StatusCreated, 0)
	if sent["scaleFactor"].(float64) != 1 || sent["createdBy"] != "test-user-001" {
		t.Fatalf("Unexpected scale request %v", sent)
	}
	next := testutil.DataMap(t, w)["nextStatuses"].([]interface{})
	if len(next) != 2 {
		t.Fatalf("Planned batch must offer two transitions, got %v", next)
	}
}

func TestExportDraft(t *testing.T) {
	env := setupEnv(t)
	env.Platform.reply(http.MethodGet, "/inventory/raw-materials", http.StatusOK, `[{"id":"m-1","name":"Flour","unit":"kg"}]`)

	id := newDraftID(t, env)
	for _, e := range [][2]string{{"material", "m-1"}, {"quantity", "2"}, {"unitPrice", "3"}} {
		expectCode(t, editLine(env, id, "0", e[0], e[1]), http.StatusOK, 0)
	}

	w := env.do(http.MethodGet, "/api/v1/orders/drafts/"+id+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != export.ContentType {
		t.Fatalf("Unexpected content type %s", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") {
		t.Fatalf("Expected xlsx attachment, got %s", w.Header().Get("Content-Disposition"))
	}
	if w.Body.Len() == 0 {
		t.Fatal("Expected file body")
	}
}

func TestGenerationWatch(t *testing.T) {
	env := setupEnv(t)
	env.Platform.reply(http.MethodGet, "/content/bulk-topics/job-1/status", http.StatusOK, `{"status":"running","total":5,"completed":1}`)

	w := env.do(http.MethodPost, "/api/v1/generation/job-1/watch", nil)
	expectCode(t, w, http.StatusOK, 0)
	if testutil.DataMap(t, w)["started"] != true {
		t.Fatalf("Expected watcher started: %s", w.Body.String())
	}
	w = env.do(http.MethodPost, "/api/v1/generation/job-1/watch", nil)
	if testutil.DataMap(t, w)["started"] != false {
		t.Fatal("Second watch must reuse the running watcher")
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.Platform.count(http.MethodGet, "/content/bulk-topics/job-1/status") < 2 {
		if time.Now().After(deadline) {
			t.Fatal("Watcher did not poll")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = env.do(http.MethodDelete, "/api/v1/generation/job-1/watch", nil)
	expectCode(t, w, http.StatusOK, 0)
	if env.Services.Generation.Active() != 0 {
		t.Fatal("Expected watcher stopped")
	}
	w = env.do(http.MethodDelete, "/api/v1/generation/job-1/watch", nil)
	expectCode(t, w, http.StatusNotFound, CodeNotFound)
}

func TestGenerationWatchSessionExpiry(t *testing.T) {
	env := setupEnv(t)
	env.Platform.reply(http.MethodGet, "/content/bulk-topics/job-2/status", http.StatusUnauthorized, `{}`)

	newDraftID(t, env)
	w := env.do(http.MethodPost, "/api/v1/generation/job-2/watch", nil)
	expectCode(t, w, http.StatusOK, 0)

	deadline := time.Now().Add(2 * time.Second)
	for len(env.Redis.Keys()) != 0 || env.Services.Generation.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected session cleared after watcher 401, keys %v", env.Redis.Keys())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestActivityList(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.Activity.LogActivity(ctx, audit.EntityRecipe, "r-1", "", audit.ActionUpdate, "", "", "updated", "u-1", nil)
	}

	w := env.do(http.MethodGet, "/api/v1/activity?entity_type=recipe&page_size=2", nil)
	expectCode(t, w, http.StatusOK, 0)
	data := testutil.DataMap(t, w)
	if items := data["items"].([]interface{}); len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	pg := data["pagination"].(map[string]interface{})
	if pg["total"].(float64) != 3 || pg["total_pages"].(float64) != 2 {
		t.Fatalf("Unexpected pagination %v", pg)
	}

	env.Activity.LogActivity(ctx, audit.EntityBatch, "b-7", "B-7", audit.ActionDelete, "planned", "", "deleted", "u-1", nil)
	w = env.do(http.MethodGet, "/api/v1/activity/batch/b-7", nil)
	expectCode(t, w, http.StatusOK, 0)
	if total := testutil.DataMap(t, w)["total"].(float64); total != 1 {
		t.Fatalf("Expected 1 entry for b-7, got %v", total)
	}

	operator := testutil.GenerateTestToken("u-2", "Operator", []string{"production"})
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/activity", nil, operator)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-admin, got %d", w.Code)
	}
}
