package main

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/nemonet1337/tanaoroshiGo/internal/config"
)

func main() {
	log.Println("tanaoroshiGo マイグレーション実行ツール")

	// .envがあれば読み込む（なくてもよい）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	log.Printf("データベースに接続中: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatal("データベース接続に失敗しました:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("データベースpingに失敗しました:", err)
	}

	migrationDir := "migrations"
	if len(os.Args) > 1 {
		migrationDir = os.Args[1]
	}

	if err := migrate(db, migrationDir); err != nil {
		log.Fatal("マイグレーション実行に失敗しました:", err)
	}

	log.Println("すべてのマイグレーションが完了しました")
}

// migrate applies every pending .sql file in filename order, one transaction
// per file. Applied files are recorded in schema_migrations with a SHA-256
// checksum, and an applied file whose content has since changed is an error.
// 未適用の.sqlファイルをファイル名順に、1ファイル1トランザクションで適用
// する。適用済みファイルはSHA-256チェックサムと共にschema_migrationsに
// 記録され、適用後に内容が変わったファイルはエラーとする。
func migrate(db *sql.DB, migrationDir string) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename VARCHAR(255) PRIMARY KEY,
			checksum CHAR(64) NOT NULL,
			executed_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("マイグレーション履歴テーブル作成エラー: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(migrationDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("マイグレーションファイル検索エラー: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("マイグレーションファイルが見つかりません: %s", migrationDir)
	}
	sort.Strings(files)

	executed, err := executedChecksums(db)
	if err != nil {
		return fmt.Errorf("実行済みマイグレーション取得エラー: %w", err)
	}

	for _, file := range files {
		filename := filepath.Base(file)

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("ファイル読み込みエラー %s: %w", filename, err)
		}
		checksum := fmt.Sprintf("%x", sha256.Sum256(content))

		if recorded, ok := executed[filename]; ok {
			if recorded != checksum {
				return fmt.Errorf("適用済みファイルが変更されています: %s", filename)
			}
			log.Printf("スキップ (実行済み): %s", filename)
			continue
		}

		if err := apply(db, filename, string(content), checksum); err != nil {
			return err
		}
		log.Printf("完了: %s", filename)
	}

	return nil
}

// apply runs one migration file and its history insert in a single transaction
// 1マイグレーションファイルの適用と履歴記録を単一トランザクションで実行
func apply(db *sql.DB, filename, content, checksum string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("トランザクション開始エラー %s: %w", filename, err)
	}

	if _, err := tx.Exec(content); err != nil {
		tx.Rollback()
		return fmt.Errorf("マイグレーション実行エラー %s: %w", filename, err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
		filename, checksum,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("マイグレーション履歴記録エラー %s: %w", filename, err)
	}

	return tx.Commit()
}

// executedChecksums 適用済みファイル名と記録済みチェックサムを取得
func executedChecksums(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query("SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executed := make(map[string]string)
	for rows.Next() {
		var filename, checksum string
		if err := rows.Scan(&filename, &checksum); err != nil {
			return nil, err
		}
		executed[filename] = checksum
	}

	return executed, rows.Err()
}
