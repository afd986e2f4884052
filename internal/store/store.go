// 包 store: 提供与 PostgreSQL 的数据访问层，包含邮编参考数据、人工修正与统计读写
package store

import (
	"context"
	"database/sql"
	"fmt"

	"recycle-api/internal/logger"
	"recycle-api/internal/zipref"

	_ "github.com/lib/pq"
)

// Store: 数据库访问入口，持有连接池并提供参考数据/统计接口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// LookupZip: 读取单个邮编的参考行，修正表优先于数据集导入表
// 返回：未命中返回 (nil, nil)，与查询错误区分
func (s *Store) LookupZip(ctx context.Context, zip string) (*zipref.Location, error) {
	v, err := zipref.ZipToInt(zip)
	if err != nil {
		return nil, nil
	}
	var city, county, abbr string
	row := s.db.QueryRowContext(ctx, "SELECT city, county, state_abbr FROM _zip_overrides WHERE zip_int=$1 LIMIT 1", int64(v))
	if err := row.Scan(&city, &county, &abbr); err != nil {
		row2 := s.db.QueryRowContext(ctx, "SELECT city, county, state_abbr FROM _zip_locations WHERE zip_int=$1 LIMIT 1", int64(v))
		if err := row2.Scan(&city, &county, &abbr); err != nil {
			logger.L().Debug("db_zip_miss", "zip", zip)
			return nil, nil
		}
	} else {
		logger.L().Debug("db_zip_override_hit", "zip", zip)
	}
	return &zipref.Location{
		Zip:       fmt.Sprintf("%05d", v),
		City:      city,
		County:    county,
		State:     zipref.StateName(abbr),
		StateAbbr: abbr,
	}, nil
}

// UpsertOverride: 写入或更新单个邮编的人工修正
func (s *Store) UpsertOverride(ctx context.Context, zip, city, county, abbr string) error {
	v, err := zipref.ZipToInt(zip)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO _zip_overrides(zip_int, city, county, state_abbr)
        VALUES($1,$2,$3,$4)
        ON CONFLICT (zip_int) DO UPDATE SET city=EXCLUDED.city, county=EXCLUDED.county, state_abbr=EXCLUDED.state_abbr, updated_at=now()`,
		int64(v), city, county, abbr)
	return err
}

// DeleteOverride: 删除单个邮编的人工修正
func (s *Store) DeleteOverride(ctx context.Context, zip string) error {
	v, err := zipref.ZipToInt(zip)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM _zip_overrides WHERE zip_int=$1`, int64(v))
	return err
}

// IncrStats: 成功查询后递增总计与当日计数；访客首次出现时递增访客计数
func (s *Store) IncrStats(ctx context.Context, visitor string) error {
	_, _ = s.db.ExecContext(ctx, "UPDATE _zip_stats_total SET total_queries=total_queries+1 WHERE id=1")
	_, _ = s.db.ExecContext(ctx, "INSERT INTO _zip_stats_daily(day, queries) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET queries=_zip_stats_daily.queries+1")
	if visitor != "" {
		_, _ = s.db.ExecContext(ctx, "UPDATE _zip_stats_total SET total_visitors=total_visitors+1 WHERE id=1")
		_, _ = s.db.ExecContext(ctx, "INSERT INTO _zip_stats_daily(day, visitors) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET visitors=_zip_stats_daily.visitors+1")
	}
	logger.L().Debug("stats_incr", "visitor", visitor)
	return nil
}

// Totals: 统计返回结构，包含累计与当日查询次数
type Totals struct {
	Total int64
	Today int64
}

// GetTotals: 读取累计与当日查询次数，用于接口返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT total_queries FROM _zip_stats_total WHERE id=1")
	_ = row.Scan(&t.Total)
	row2 := s.db.QueryRowContext(ctx, "SELECT queries FROM _zip_stats_daily WHERE day=current_date")
	_ = row2.Scan(&t.Today)
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, nil
}

// 文档注释：记录最近查询的邮编（去重累加）
// 背景：保留最近被查询的邮编、次数与是否有规则覆盖，作为运营补录规则的候选来源；不影响主查询逻辑
// 约束：非法邮编静默跳过；covered 记录最近一次解析是否命中某层规则
func (s *Store) RecordRecent(ctx context.Context, zip string, covered bool) error {
	v, err := zipref.ZipToInt(zip)
	if err != nil {
		return nil
	}
	_, _ = s.db.ExecContext(ctx, `INSERT INTO _zip_recent(zip_int, last_seen, queries, covered)
        VALUES($1, now(), 1, $2)
        ON CONFLICT (zip_int) DO UPDATE SET last_seen=now(), queries=_zip_recent.queries+1, covered=$2`,
		int64(v), covered)
	return nil
}

// 文档注释：获取“待补录规则候选邮编”列表
// 背景：从最近查询集合中筛选未被任何层级规则覆盖的邮编，按最近访问排序返回指定数量
// 参数：hours 为最近窗口小时数，limit 为最大返回数量
func (s *Store) FetchRecentUncovered(ctx context.Context, hours int, limit int) ([]string, error) {
	if hours <= 0 {
		hours = 24
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT zip_int
        FROM _zip_recent
        WHERE last_seen >= now() - make_interval(hours => $1)
          AND covered = FALSE
        ORDER BY last_seen DESC
        LIMIT $2`, hours, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, fmt.Sprintf("%05d", v))
	}
	return out, rows.Err()
}
