package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"personahub/pkg/domain"
)

// FileStore keeps personas in one JSON file, {"chatbots": [...]}. It is the
// fallback tier used when Postgres is unreachable.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type fileDocument struct {
	Chatbots []domain.Persona `json:"chatbots"`
}

// NewFileStore creates the parent directory and an empty document if needed.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &FileStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(fileDocument{Chatbots: []domain.Persona{}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) List(_ context.Context) ([]domain.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Chatbots, nil
}

func (s *FileStore) Get(_ context.Context, uniqueID string) (domain.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return domain.Persona{}, err
	}
	for _, p := range doc.Chatbots {
		if p.UniqueID == uniqueID {
			return p, nil
		}
	}
	return domain.Persona{}, ErrNotFound
}

func (s *FileStore) Create(_ context.Context, p domain.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Chatbots = append(doc.Chatbots, p)
	return s.write(doc)
}

func (s *FileStore) Update(_ context.Context, uniqueID string, p domain.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	for i := range doc.Chatbots {
		if doc.Chatbots[i].UniqueID == uniqueID {
			p.UniqueID = uniqueID
			doc.Chatbots[i] = p
			return s.write(doc)
		}
	}
	return ErrNotFound
}

func (s *FileStore) Delete(_ context.Context, uniqueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	kept := doc.Chatbots[:0]
	for _, p := range doc.Chatbots {
		if p.UniqueID != uniqueID {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(doc.Chatbots) {
		return ErrNotFound
	}
	doc.Chatbots = kept
	return s.write(doc)
}

func (s *FileStore) Health(_ context.Context) domain.HealthInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := domain.HealthInfo{
		Database:         domain.DatabaseLocalStorage,
		ConnectionString: s.path,
	}
	doc, err := s.read()
	if err != nil {
		return info
	}
	info.Connected = true
	info.ChatbotCount = len(doc.Chatbots)
	return info
}

func (s *FileStore) read() (fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fileDocument{}, fmt.Errorf("read store file: %w", err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fileDocument{}, fmt.Errorf("parse store file: %w", err)
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
