package cachestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"sitescan/internal/adapters/observability"
	"sitescan/internal/domain"
)

// FileStore keeps one text file per (domain, source) under dir.
type FileStore struct {
	dir    string
	maxAge time.Duration // 0 = never expires
	now    func() time.Time
}

func NewFileStore(dir string, maxAge time.Duration) *FileStore {
	return &FileStore{dir: dir, maxAge: maxAge, now: time.Now}
}

func (s *FileStore) path(host, source string) string {
	return filepath.Join(s.dir, Key(host, source)+".txt")
}

func (s *FileStore) Check(ctx context.Context, host, source string) ([]domain.Complaint, bool) {
	p := s.path(host, source)
	st, err := os.Stat(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", p).Msg("cache stat failed")
		}
		observability.ObserveCache("file", "miss")
		return nil, false
	}
	if s.maxAge > 0 && s.now().Sub(st.ModTime()) > s.maxAge {
		observability.ObserveCache("file", "expired")
		return nil, false
	}
	b, err := os.ReadFile(p)
	if err != nil {
		log.Warn().Err(err).Str("path", p).Msg("cache read failed")
		observability.ObserveCache("file", "miss")
		return nil, false
	}
	recs := Decode(string(b))
	if len(recs) == 0 {
		observability.ObserveCache("file", "miss")
		return nil, false
	}
	observability.ObserveCache("file", "hit")
	return recs, true
}

func (s *FileStore) Save(ctx context.Context, host, source, siteName string, records []domain.Complaint) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	p := s.path(host, source)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(p)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.WriteString(Encode(host, source, siteName, records)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return err
	}
	observability.ObserveCache("file", "set")
	return nil
}

func (s *FileStore) Del(ctx context.Context, host, source string) error {
	if err := os.Remove(s.path(host, source)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	observability.ObserveCache("file", "del")
	return nil
}
