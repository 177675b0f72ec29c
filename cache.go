package windgo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Cache 缓存协作方接口
//
// 以（代码或逻辑键, 数据源标签）为键缓存表格数据，带新鲜度窗口。
// 适配器对缓存失败只记日志，不影响主流程；缓存缺席时退化为
// 每次都走远程。
type Cache interface {
	// Find 查找新鲜度窗口内的缓存条目，返回句柄
	Find(key string, maxAge time.Duration) (string, bool)

	// Load 按句柄加载表格
	Load(handle string) (*Table, error)

	// Save 保存表格，返回句柄
	Save(key string, t *Table, source string) (string, error)
}

// SQLiteCache 基于 SQLite 的缓存实现
type SQLiteCache struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteCache 打开（或创建）缓存数据库并执行迁移
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL 模式，读写并发更友好
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_data (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			cache_key TEXT NOT NULL,
			source    TEXT NOT NULL,
			saved_at  INTEGER NOT NULL,
			payload   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_data_key ON stock_data(cache_key, saved_at)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Find 查找新鲜度窗口内最近一条缓存，返回其句柄
func (c *SQLiteCache) Find(key string, maxAge time.Duration) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).Unix()
	var id int64
	err := c.db.QueryRow(
		`SELECT id FROM stock_data WHERE cache_key = ? AND saved_at >= ? ORDER BY saved_at DESC LIMIT 1`,
		key, cutoff,
	).Scan(&id)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(id, 10), true
}

// Load 按句柄加载表格
func (c *SQLiteCache) Load(handle string) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := strconv.ParseInt(handle, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad cache handle %q: %w", handle, err)
	}

	var payload string
	err = c.db.QueryRow(`SELECT payload FROM stock_data WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("load cache entry %d: %w", id, err)
	}

	t := &Table{}
	if err := json.Unmarshal([]byte(payload), t); err != nil {
		return nil, fmt.Errorf("decode cache entry %d: %w", id, err)
	}
	return t, nil
}

// Save 保存表格并返回新条目的句柄
func (c *SQLiteCache) Save(key string, t *Table, source string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode table: %w", err)
	}

	res, err := c.db.Exec(
		`INSERT INTO stock_data (cache_key, source, saved_at, payload) VALUES (?, ?, ?, ?)`,
		key, source, time.Now().Unix(), string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("save cache entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("cache entry id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Close 关闭缓存数据库
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

var _ Cache = (*SQLiteCache)(nil)
