package migrate

import (
	"database/sql"

	"recycle-api/internal/logger"
)

// 背景：首次运行自动创建参考数据、修正与统计所需表，保障后续导入与查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _zip_locations (
            zip_int INT PRIMARY KEY,
            zip TEXT NOT NULL,
            city TEXT NOT NULL,
            county TEXT NOT NULL,
            state_abbr TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_zip_city_state ON _zip_locations(city, state_abbr)`,
		`CREATE TABLE IF NOT EXISTS _zip_overrides (
            zip_int INT PRIMARY KEY,
            city TEXT NOT NULL,
            county TEXT NOT NULL,
            state_abbr TEXT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS _zip_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0,
            total_visitors BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _zip_stats_daily (
            day DATE PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0,
            visitors BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _zip_stats_total(id, total_queries, total_visitors)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS _zip_recent (
            zip_int INT PRIMARY KEY,
            last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
            queries BIGINT NOT NULL DEFAULT 0,
            covered BOOLEAN NOT NULL DEFAULT FALSE
        )`,
		`CREATE INDEX IF NOT EXISTS idx_zip_recent_seen ON _zip_recent(last_seen)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
