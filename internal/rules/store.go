package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"recycle-api/internal/logger"
	"recycle-api/internal/zipref"
)

// Store：规则文档的进程内持有者
// 背景：文档启动时装载一次，读路径共享内存态；写操作同步落盘（临时文件 + fsync + rename 原子替换）
// 约束：跨进程多写者不做协调，部署上假定单写者；进程内以读写锁保证一致性
type Store struct {
	mu       sync.RWMutex
	path     string
	doc      *Document
	version  uint64
	migrated bool
}

// Open：装载规则文档，永不让调用方启动失败
// 背景：文件缺失视为空文档；结构损坏回退到最小合法文档并在 national_default 写入迁移说明，
// 保证任何邮编至少解析到该说明；旧版扁平格式就地升级，下次保存按新形状重写
func Open(path string) *Store {
	s := &Store{path: path, doc: newEmptyDocument(), version: 1}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.L().Info("rules_doc_absent", "path", path)
			return s
		}
		logger.L().Warn("rules_doc_read_error", "path", path, "err", err)
		s.doc.NationalDefault = migrationNote()
		return s
	}
	doc, migrated, derr := decodeDocument(data)
	if derr != nil {
		logger.L().Warn("rules_doc_malformed", "path", path, "err", derr)
		s.doc.NationalDefault = migrationNote()
		return s
	}
	s.doc = doc
	s.migrated = migrated
	if migrated {
		logger.L().Info("rules_doc_legacy_migrated", "path", path, "zips", len(doc.Zips))
	} else {
		logger.L().Info("rules_doc_loaded", "path", path,
			"zips", len(doc.Zips), "cities", len(doc.Cities), "states", len(doc.States))
	}
	return s
}

// migrationNote：结构损坏时的兜底默认规则集
func migrationNote() RuleSet {
	return RuleSet{
		"default": "Local rules were reset after a corrupted rules document was detected; consult your local waste management authority.",
	}
}

// Path：文档落盘路径
func (s *Store) Path() string { return s.path }

// Version：文档变更计数，自增于每次成功进入的变更；用于响应缓存键的失效段
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Migrated：本次装载是否发生旧格式迁移（尚待保存固化）
func (s *Store) Migrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.migrated
}

// Resolve：在读锁下执行回退解析；只读，绝不触发落盘
func (s *Store) Resolve(zip string, loc *zipref.Location) (RuleSet, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Resolve(s.doc, zip, loc)
}

// MarshalSnapshot：在读锁下序列化当前文档（运营导出）
func (s *Store) MarshalSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.doc, "", "  ")
}

// Mutate：在写锁下应用变更并同步落盘
// 背景：落盘失败不回滚内存态，按“非致命警告”上抛，本次会话继续可用
func (s *Store) Mutate(fn func(d *Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
	s.version++
	if err := s.saveLocked(); err != nil {
		logger.L().Warn("rules_doc_save_error", "path", s.path, "err", err)
		return fmt.Errorf("rules: save: %w", err)
	}
	s.migrated = false
	return nil
}

// Save：无变更落盘（固化迁移结果等场景）
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(); err != nil {
		logger.L().Warn("rules_doc_save_error", "path", s.path, "err", err)
		return fmt.Errorf("rules: save: %w", err)
	}
	s.migrated = false
	return nil
}

// saveLocked：临时文件写入 + fsync + rename，失败不污染既有落盘副本
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// CacheGenerated：将链接兜底产出显式缓存进邮编层
// 背景：读写路径分离——解析自身永不写入，缓存动作由用户显式触发
func (s *Store) CacheGenerated(zip string, rs RuleSet) error {
	exact, err := zipShapeCheck(zip)
	if err != nil || !exact {
		return ErrInvalidZip
	}
	return s.Mutate(func(d *Document) {
		d.Zips[zip] = rs.Clone()
	})
}
