package zipref

import (
	"database/sql"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"recycle-api/internal/logger"
)

// ImportCSVToDB：将本地数据集批量写入 PostgreSQL 参考表
// 背景：数据库侧保留参考数据全集，供修正表外键参照与离线统计；
// 查询热路径不依赖此表，导入失败只降级不致命
// 约束：UPSERT 幂等，可重复执行；按批提交降低事务与日志压力
func ImportCSVToDB(db *sql.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	const batch = 2000
	n := 0
	first := true
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		if len(fields) < 4 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(fields[0]), "zip") {
				continue
			}
		}
		zip := strings.TrimSpace(fields[0])
		v, err := ZipToInt(zip)
		if err != nil {
			continue
		}
		city := strings.TrimSpace(fields[1])
		county := strings.TrimSpace(fields[2])
		abbr := strings.ToUpper(strings.TrimSpace(fields[3]))
		if _, err := tx.Exec(`INSERT INTO _zip_locations(zip_int, zip, city, county, state_abbr)
            VALUES($1,$2,$3,$4,$5)
            ON CONFLICT (zip_int) DO UPDATE SET city=EXCLUDED.city, county=EXCLUDED.county, state_abbr=EXCLUDED.state_abbr`,
			int64(v), zip, city, county, abbr); err != nil {
			return n, err
		}
		n++
		if n%batch == 0 {
			if err := tx.Commit(); err != nil {
				return n, err
			}
			logger.L().Debug("zipref_import_progress", "rows", n)
			tx, err = db.Begin()
			if err != nil {
				return n, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	logger.L().Info("zipref_import_done", "rows", n)
	return n, nil
}
