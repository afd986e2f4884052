// 数据导入工具：将本地预下载的邮编数据集批量写入 PostgreSQL 参考表
package main

import (
	"log"
	"os"
	"path/filepath"

	"recycle-api/internal/migrate"
	"recycle-api/internal/utils"
	"recycle-api/internal/zipref"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	path := os.Getenv("ZIPREF_PATH")
	if path == "" {
		path = filepath.Join("data", "zipref", "uszips.csv")
	}
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	if err := migrate.EnsureSchema(db); err != nil {
		log.Fatal(err)
	}
	n, err := zipref.ImportCSVToDB(db, path)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("imported %d zip rows from %s", n, path)
}
