// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"recycle-api/internal/logger"
	"recycle-api/internal/metrics"
	"recycle-api/internal/rules"
	"recycle-api/internal/store"
	"recycle-api/internal/zipref"

	"github.com/redis/go-redis/v9"
)

// writeJSON：统一响应头与编码
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// tierOf：由溯源标签归类命中层级，用于指标维度
func tierOf(provenance string) string {
	switch {
	case strings.HasPrefix(provenance, "ZIP "):
		return "zip"
	case strings.HasPrefix(provenance, "region "):
		return "region"
	case strings.HasSuffix(provenance, "(state-level)"):
		return "state"
	case provenance == "national default":
		return "national"
	}
	return "city"
}

func locPayload(l *zipref.Location) *locationPayload {
	if l == nil {
		return nil
	}
	return &locationPayload{
		Zip:       l.Zip,
		City:      l.City,
		County:    l.County,
		State:     l.State,
		StateAbbr: l.StateAbbr,
	}
}

// cacheTTL：响应缓存生存期，默认 24 小时
func cacheTTL() time.Duration {
	if s := os.Getenv("CACHE_TTL_HOURS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Hour
		}
	}
	return 24 * time.Hour
}

// requireAdmin：校验运营令牌头；未配置 ADMIN_TOKEN 时一律拒绝
func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	t := r.Header.Get("x-admin-token")
	if t == "" || t != os.Getenv("ADMIN_TOKEN") {
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	return true
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
// 背景：st 与 rc 允许为 nil（统计与响应缓存按降级路径跳过），便于最小部署与测试
func BuildRoutes(rs *rules.Store, ref *zipref.Resolver, st *store.Store, rc *redis.Client) *http.ServeMux {
	adm := &rules.Admin{Store: rs, Zips: ref}
	apiMux := http.NewServeMux()

	// 核心查询：邮编 → 规则集 + 溯源标签
	apiMux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		metrics.RequestsTotal.Inc()
		defer func() {
			metrics.RequestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
		}()
		zip := r.URL.Query().Get("zip")
		if !ref.Validate(zip) {
			metrics.InvalidZipTotal.Inc()
			writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid_zip"})
			return
		}
		cacheKey := "rules:v" + strconv.FormatUint(rs.Version(), 10) + ":" + zip
		if rc != nil {
			if s, _ := rc.Get(ctx, cacheKey).Result(); s != "" {
				metrics.RedisHitsTotal.Inc()
				var res rulesResult
				if err := json.Unmarshal([]byte(s), &res); err == nil {
					recordQuery(ctx, st, rc, r, zip, true)
					writeJSON(w, http.StatusOK, res)
					return
				}
			}
			metrics.RedisMissesTotal.Inc()
		}
		var locPtr *zipref.Location
		if l, err := ref.Resolve(zip); err == nil {
			locPtr = &l
		} else {
			metrics.LocationMissTotal.Inc()
			logger.L().Debug("location_unavailable", "zip", zip)
		}
		rset, prov, ok := rs.Resolve(zip, locPtr)
		if ok {
			metrics.TierHitsTotal.WithLabelValues(tierOf(prov)).Inc()
		} else {
			// 全层落空：生成链接兜底，不进响应缓存（缓存进文档需用户显式 POST /cache）
			metrics.GeneratedTotal.Inc()
			rset = rules.GenerateLinks(zip, locPtr)
			prov = "generated"
		}
		res := rulesResult{Zip: zip, Location: locPayload(locPtr), Rules: rset, Provenance: prov}
		if ok && rc != nil {
			if b, err := json.Marshal(res); err == nil {
				rc.Set(ctx, cacheKey, string(b), cacheTTL())
			}
		}
		recordQuery(ctx, st, rc, r, zip, ok)
		logger.L().Debug("rules_resolved", "zip", zip, "provenance", prov)
		writeJSON(w, http.StatusOK, res)
	})

	// 地理解析：邮编 → 城市/县/州
	apiMux.HandleFunc("/location", func(w http.ResponseWriter, r *http.Request) {
		zip := r.URL.Query().Get("zip")
		if !ref.Validate(zip) {
			metrics.InvalidZipTotal.Inc()
			writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid_zip"})
			return
		}
		l, err := ref.Resolve(zip)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorPayload{Error: "location_unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, locPayload(&l))
	})

	// 显式缓存动作：将兜底产出写入邮编层（用户主动触发，解析路径自身永不写）
	apiMux.HandleFunc("/cache", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		zip := r.URL.Query().Get("zip")
		if !ref.Validate(zip) {
			metrics.InvalidZipTotal.Inc()
			writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid_zip"})
			return
		}
		var locPtr *zipref.Location
		if l, err := ref.Resolve(zip); err == nil {
			locPtr = &l
		}
		rset := rules.GenerateLinks(zip, locPtr)
		persisted := true
		var warning string
		if err := rs.CacheGenerated(zip, rset); err != nil {
			if errors.Is(err, rules.ErrInvalidZip) {
				writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid_zip"})
				return
			}
			// 落盘失败非致命：内存态已更新，本次会话继续可用
			metrics.PersistFailTotal.Inc()
			persisted = false
			warning = err.Error()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"zip":       zip,
			"rules":     rset,
			"persisted": persisted,
			"warning":   warning,
		})
	})

	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		m := map[string]any{"total": int64(0), "today": int64(0)}
		if st != nil {
			if t, _ := st.GetTotals(r.Context()); t != nil {
				m["total"] = t.Total
				m["today"] = t.Today
			}
		}
		writeJSON(w, http.StatusOK, m)
	})

	// 运营编辑面：四个层级的条目 CRUD
	apiMux.HandleFunc("/admin/rule", func(w http.ResponseWriter, r *http.Request) {
		if !requireAdmin(w, r) {
			return
		}
		tier := r.URL.Query().Get("tier")
		key := r.URL.Query().Get("key")
		switch r.Method {
		case http.MethodGet:
			rset, ok, err := adm.Get(tier, key)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorPayload{Error: adminErrCode(err)})
				return
			}
			if !ok {
				writeJSON(w, http.StatusNotFound, errorPayload{Error: "not_found"})
				return
			}
			writeJSON(w, http.StatusOK, rset)
		case http.MethodPut:
			var rset rules.RuleSet
			if err := json.NewDecoder(r.Body).Decode(&rset); err != nil {
				writeJSON(w, http.StatusBadRequest, errorPayload{Error: "bad_body"})
				return
			}
			writeAdminResult(w, tier, adm.Put(tier, key, rset))
		case http.MethodDelete:
			writeAdminResult(w, tier, adm.Delete(tier, key))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	// 文档导出：当前内存态的完整层级文档
	apiMux.HandleFunc("/admin/document", func(w http.ResponseWriter, r *http.Request) {
		if !requireAdmin(w, r) {
			return
		}
		data, err := rs.MarshalSnapshot()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("content-type", "application/json; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(data)
	})

	// 补录候选：最近查询且未被任何层级覆盖的邮编，按时间窗口与数量返回
	apiMux.HandleFunc("/admin/candidates", func(w http.ResponseWriter, r *http.Request) {
		if !requireAdmin(w, r) {
			return
		}
		hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var zips []string
		if st != nil {
			var err error
			zips, err = st.FetchRecentUncovered(r.Context(), hours, limit)
			if err != nil {
				logger.L().Error("candidates_query_error", "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		if zips == nil {
			zips = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"zips": zips})
	})

	return apiMux
}

// recordQuery：统计与候选采集；st 为 nil 时跳过，统计失败不影响主流程
func recordQuery(ctx context.Context, st *store.Store, rc *redis.Client, r *http.Request, zip string, covered bool) {
	if st == nil {
		return
	}
	visitor := ""
	if ip := getVisitorIP(r); ip != "" && visitorFirstSeen(ctx, rc, ip) {
		visitor = ip
	}
	_ = st.IncrStats(ctx, visitor)
	_ = st.RecordRecent(ctx, zip, covered)
}

func adminErrCode(err error) string {
	switch {
	case errors.Is(err, rules.ErrInvalidZip):
		return "invalid_zip"
	case errors.Is(err, rules.ErrUnknownTier):
		return "unknown_tier"
	case errors.Is(err, rules.ErrBadKey):
		return "bad_key"
	}
	return "bad_request"
}

// writeAdminResult：写后主路径与落盘失败警告的统一出口
func writeAdminResult(w http.ResponseWriter, tier string, err error) {
	if err == nil {
		metrics.AdminWritesTotal.WithLabelValues(tier).Inc()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "persisted": true})
		return
	}
	if errors.Is(err, rules.ErrInvalidZip) || errors.Is(err, rules.ErrUnknownTier) || errors.Is(err, rules.ErrBadKey) {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: adminErrCode(err)})
		return
	}
	metrics.PersistFailTotal.Inc()
	metrics.AdminWritesTotal.WithLabelValues(tier).Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "persisted": false, "warning": err.Error()})
}
