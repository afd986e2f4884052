package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"recycle-api/internal/rules"
	"recycle-api/internal/zipref"
)

func newTestMux(t *testing.T) (*http.ServeMux, *rules.Store) {
	t.Helper()
	ds := zipref.NewDatasetFromRecords([]zipref.Record{
		{Zip: "94105", City: "San Francisco", County: "San Francisco", StateAbbr: "CA"},
		{Zip: "94104", City: "San Francisco", County: "San Francisco", StateAbbr: "CA"},
		{Zip: "93401", City: "San Luis Obispo", County: "San Luis Obispo", StateAbbr: "CA"},
		{Zip: "59001", City: "Absarokee", County: "Stillwater", StateAbbr: "MT"},
		{Zip: "73301", City: "", County: "", StateAbbr: "TX"},
	})
	ref := zipref.NewResolver(zipref.NewChain(ds))
	rs := rules.Open(filepath.Join(t.TempDir(), "rules.json"))
	return BuildRoutes(rs, ref, nil, nil), rs
}

func do(t *testing.T, mux *http.ServeMux, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) rulesResult {
	t.Helper()
	var res rulesResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return res
}

func TestRulesInvalidZip(t *testing.T) {
	mux, _ := newTestMux(t)
	for _, zip := range []string{"", "1234", "abcde", "99999"} {
		w := do(t, mux, http.MethodGet, "/rules?zip="+zip, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("zip %q: status = %d, want 400", zip, w.Code)
		}
		if !strings.Contains(w.Body.String(), "invalid_zip") {
			t.Fatalf("zip %q: body = %q", zip, w.Body.String())
		}
	}
}

func TestRulesTieredResolution(t *testing.T) {
	mux, rs := newTestMux(t)
	err := rs.Mutate(func(d *rules.Document) {
		d.Zips["94105"] = rules.RuleSet{"bottle": "blue bin"}
		d.Cities["San Francisco, CA"] = rules.RuleSet{"default": "sf"}
		d.States["CA"] = rules.RuleSet{"default": "ca"}
	})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		zip  string
		prov string
	}{
		{"94105", "ZIP 94105"},
		{"94104", "San Francisco, CA"},
		{"93401", "CA (state-level)"},
	}
	for _, c := range cases {
		w := do(t, mux, http.MethodGet, "/rules?zip="+c.zip, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("zip %s: status = %d", c.zip, w.Code)
		}
		res := decodeResult(t, w)
		if res.Provenance != c.prov {
			t.Fatalf("zip %s: provenance = %q, want %q", c.zip, res.Provenance, c.prov)
		}
		if len(res.Rules) == 0 {
			t.Fatalf("zip %s: empty rule set", c.zip)
		}
	}
}

func TestRulesGeneratedFallback(t *testing.T) {
	mux, _ := newTestMux(t)
	w := do(t, mux, http.MethodGet, "/rules?zip=59001", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	res := decodeResult(t, w)
	if res.Provenance != "generated" {
		t.Fatalf("provenance = %q, want generated", res.Provenance)
	}
	if !strings.Contains(res.Rules["earth911_link"], "59001") {
		t.Fatalf("link must carry postal code: %q", res.Rules["earth911_link"])
	}
	if res.Rules["default"] == "" || res.Rules["company"] == "" {
		t.Fatalf("mandatory generated fields missing: %+v", res.Rules)
	}
	if res.Location == nil || res.Location.City != "Absarokee" {
		t.Fatalf("location missing from response: %+v", res.Location)
	}
}

func TestCacheGeneratedEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)
	if w := do(t, mux, http.MethodGet, "/cache?zip=59001", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /cache status = %d, want 405", w.Code)
	}
	w := do(t, mux, http.MethodPost, "/cache?zip=59001", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	// 显式缓存后，后续解析命中邮编层
	w = do(t, mux, http.MethodGet, "/rules?zip=59001", "", nil)
	res := decodeResult(t, w)
	if res.Provenance != "ZIP 59001" {
		t.Fatalf("provenance = %q, want ZIP 59001", res.Provenance)
	}
}

func TestLocationEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)
	w := do(t, mux, http.MethodGet, "/location?zip=94105", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var loc locationPayload
	if err := json.Unmarshal(w.Body.Bytes(), &loc); err != nil {
		t.Fatal(err)
	}
	if loc.City != "San Francisco" || loc.StateAbbr != "CA" || loc.State != "California" {
		t.Fatalf("unexpected location: %+v", loc)
	}
	// 有效但元数据不完整：独立于 invalid_zip 的结果
	w = do(t, mux, http.MethodGet, "/location?zip=73301", "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "location_unavailable") {
		t.Fatalf("status = %d body = %q", w.Code, w.Body.String())
	}
	w = do(t, mux, http.MethodGet, "/location?zip=00000", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAdminRuleCRUD(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "secret")
	mux, _ := newTestMux(t)
	hdr := map[string]string{"x-admin-token": "secret"}

	if w := do(t, mux, http.MethodPut, "/admin/rule?tier=zips&key=94105", `{"bottle":"blue bin"}`, nil); w.Code != http.StatusForbidden {
		t.Fatalf("missing token: status = %d, want 403", w.Code)
	}
	if w := do(t, mux, http.MethodPut, "/admin/rule?tier=zips&key=94105", `{"bottle":"blue bin"}`, map[string]string{"x-admin-token": "wrong"}); w.Code != http.StatusForbidden {
		t.Fatalf("wrong token: status = %d, want 403", w.Code)
	}

	w := do(t, mux, http.MethodPut, "/admin/rule?tier=zips&key=94105", `{"bottle":"blue bin"}`, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("put: status = %d body = %q", w.Code, w.Body.String())
	}
	w = do(t, mux, http.MethodGet, "/admin/rule?tier=zips&key=94105", "", hdr)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "blue bin") {
		t.Fatalf("get: status = %d body = %q", w.Code, w.Body.String())
	}
	// 写入经过校验：不存在的邮编被拒
	w = do(t, mux, http.MethodPut, "/admin/rule?tier=zips&key=99999", `{"x":"y"}`, hdr)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid_zip") {
		t.Fatalf("invalid zip: status = %d body = %q", w.Code, w.Body.String())
	}
	// 城市键写入前规范化
	w = do(t, mux, http.MethodPut, "/admin/rule?tier=cities&key=san+francisco,+ca", `{"default":"sf"}`, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("city put: status = %d body = %q", w.Code, w.Body.String())
	}
	w = do(t, mux, http.MethodGet, "/rules?zip=94104", "", nil)
	if res := decodeResult(t, w); res.Provenance != "San Francisco, CA" {
		t.Fatalf("provenance = %q", res.Provenance)
	}
	w = do(t, mux, http.MethodDelete, "/admin/rule?tier=zips&key=94105", "", hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}
	w = do(t, mux, http.MethodGet, "/admin/rule?tier=zips&key=94105", "", hdr)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status = %d", w.Code)
	}
	w = do(t, mux, http.MethodPut, "/admin/rule?tier=counties&key=x", `{}`, hdr)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "unknown_tier") {
		t.Fatalf("unknown tier: status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestAdminDocumentExport(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "secret")
	mux, rs := newTestMux(t)
	if err := rs.Mutate(func(d *rules.Document) {
		d.States["CA"] = rules.RuleSet{"default": "ca"}
	}); err != nil {
		t.Fatal(err)
	}
	w := do(t, mux, http.MethodGet, "/admin/document", "", map[string]string{"x-admin-token": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var doc rules.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.States["CA"]["default"] != "ca" {
		t.Fatalf("document export lost data: %+v", doc)
	}
}

func TestAdminCandidatesWithoutDB(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "secret")
	mux, _ := newTestMux(t)
	w := do(t, mux, http.MethodGet, "/admin/candidates", "", map[string]string{"x-admin-token": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"zips":[]`) {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestStatsWithoutDB(t *testing.T) {
	mux, _ := newTestMux(t)
	w := do(t, mux, http.MethodGet, "/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var m map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
}

func TestTierOf(t *testing.T) {
	cases := map[string]string{
		"ZIP 94105":         "zip",
		"San Francisco, CA": "city",
		"CA (state-level)":  "state",
		"region 590xx":      "region",
		"national default":  "national",
	}
	for prov, want := range cases {
		if got := tierOf(prov); got != want {
			t.Fatalf("tierOf(%q) = %q, want %q", prov, got, want)
		}
	}
}
