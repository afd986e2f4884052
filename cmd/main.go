// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recycle-api/internal/api"
	"recycle-api/internal/logger"
	"recycle-api/internal/metrics"
	"recycle-api/internal/middleware"
	"recycle-api/internal/migrate"
	"recycle-api/internal/rules"
	"recycle-api/internal/store"
	"recycle-api/internal/utils"
	"recycle-api/internal/zipref"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	// 数据库承载参考数据全集/修正表/统计；不可用时按无统计、无修正路径降级，核心解析不受影响
	var st *store.Store
	if db, err := utils.OpenPostgresFromEnv(); err != nil {
		l.Error("db_open_error", "err", err)
	} else {
		defer db.Close()
		if err := db.Ping(); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
		}
		st = store.AttachDB(db)
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	// 规则文档：启动装载一次；旧版扁平格式就地迁移并立即按新形状固化
	rulesPath := os.Getenv("RULES_PATH")
	if rulesPath == "" {
		rulesPath = filepath.Join("data", "rules", "recycling_rules.json")
	}
	l.Debug("config_rules_path", "path", rulesPath)
	rs := rules.Open(rulesPath)
	if rs.Migrated() {
		if err := rs.Save(); err != nil {
			l.Warn("rules_doc_migration_save_error", "err", err)
		} else {
			l.Info("rules_doc_migration_saved")
		}
	}

	// 邮编参考数据集（本地预下载 CSV）；按需并行导入数据库供修正表与离线统计参照
	zipPath := os.Getenv("ZIPREF_PATH")
	if zipPath == "" {
		zipPath = filepath.Join("data", "zipref", "uszips.csv")
	}
	l.Debug("config_zipref_path", "path", zipPath)
	if os.Getenv("IMPORT_ZIPREF_TO_DB") == "true" && st != nil {
		if _, err := os.Stat(zipPath); err == nil {
			l.Info("zipref_import_begin", "path", zipPath)
			go func() {
				if _, err := zipref.ImportCSVToDB(st.DB(), zipPath); err != nil {
					l.Error("zipref_import_error", "err", err)
				}
			}()
		} else {
			l.Error("zipref_not_found", "path", zipPath)
		}
	}

	// 动态缓存：修正表优先于数据集；修正变更后重建并热替换
	var dcache zipref.DynamicCache
	ref := zipref.NewResolver(&dcache)
	rebuild := func() error {
		ds, err := zipref.NewDatasetCache(zipPath)
		if err != nil {
			return err
		}
		if st != nil {
			oc, oerr := zipref.NewOverrideCache(st.DB())
			if oerr == nil {
				dcache.Set(zipref.NewChain(oc, ds))
				l.Debug("cache_stack", "overrides", oc.Count(), "dataset", ds.Count())
				return nil
			}
			l.Error("zipref_overrides_error", "err", oerr)
		}
		dcache.Set(zipref.NewChain(ds))
		return nil
	}
	go func() {
		for {
			if err := rebuild(); err == nil {
				l.Info("zipref_cache_ready")
				break
			} else {
				l.Error("zipref_cache_error", "err", err)
			}
			time.Sleep(2 * time.Second)
		}
	}()

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(rs, ref, st, rc)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	// 运营地理修正：写库后重建链并热替换，立即对后续解析生效
	mux.HandleFunc(apiBase+"/admin/zipref", func(w http.ResponseWriter, r *http.Request) {
		t := r.Header.Get("x-admin-token")
		if t == "" || t != os.Getenv("ADMIN_TOKEN") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if st == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		zip := q.Get("zip")
		switch r.Method {
		case http.MethodPut:
			city := q.Get("city")
			county := q.Get("county")
			abbr := strings.ToUpper(q.Get("state"))
			if city == "" || !zipref.KnownState(abbr) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if err := st.UpsertOverride(r.Context(), zip, city, county, abbr); err != nil {
				l.Error("zipref_override_error", "err", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		case http.MethodDelete:
			if err := st.DeleteOverride(r.Context(), zip); err != nil {
				l.Error("zipref_override_error", "err", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := rebuild(); err != nil {
			l.Error("zipref_cache_error", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		l.Info("zipref_cache_reloaded", "zip", zip)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc(apiBase+"/admin/reload-zipref", func(w http.ResponseWriter, r *http.Request) {
		t := r.Header.Get("x-admin-token")
		if t == "" || t != os.Getenv("ADMIN_TOKEN") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if err := rebuild(); err != nil {
			l.Error("zipref_cache_error", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		l.Info("zipref_cache_reloaded")
		w.WriteHeader(http.StatusNoContent)
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler}
	if os.Getenv("TLS_ENABLE") == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		_ = utils.EnsureSelfSignedCert(certPath, keyPath, "recycle-api.local")
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			redirAddr := os.Getenv("TLS_REDIRECT_ADDR")
			if redirAddr == "" {
				redirAddr = ":80"
			}
			go func() {
				httpRedir := http.NewServeMux()
				httpRedir.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
					httpsPort := strings.TrimPrefix(addr, ":")
					baseHost := r.Host
					if i := strings.LastIndex(baseHost, ":"); i != -1 {
						baseHost = baseHost[:i]
					}
					targetHost := baseHost
					if httpsPort != "" {
						targetHost = baseHost + ":" + httpsPort
					}
					http.Redirect(w, r, "https://"+targetHost+r.URL.RequestURI(), http.StatusMovedPermanently)
				})
				l.Info("http_redirect_listening", "addr", redirAddr, "to", "https"+addr)
				_ = http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(httpRedir))
			}()
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		_ = s.ListenAndServeTLS(certPath, keyPath)
		return
	}
	l.Info("listening", "addr", addr)
	_ = s.ListenAndServe()
}
