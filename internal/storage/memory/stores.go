// Package memory provides in-memory persistence implementations used by
// tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// HeroStore keeps hero rows in a map keyed by content ID. The mutex
// serializes upserts, so at most one row per content ID can ever exist.
type HeroStore struct {
	mu    sync.RWMutex
	byCID map[string]discovery.Hero
}

// NewHeroStore creates an empty in-memory HeroStore.
func NewHeroStore() *HeroStore {
	return &HeroStore{byCID: make(map[string]discovery.Hero)}
}

// Upsert creates the hero row for contentID unless one already exists, in
// which case the existing row wins.
func (s *HeroStore) Upsert(_ context.Context, contentID string, hero discovery.Hero) (discovery.UpsertResult, error) {
	if contentID == "" {
		return discovery.UpsertResult{}, fmt.Errorf("content id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byCID[contentID]; ok {
		return discovery.UpsertResult{Created: false, HeroID: existing.ID}, nil
	}
	hero.ContentID = contentID
	s.byCID[contentID] = hero
	return discovery.UpsertResult{Created: true, HeroID: hero.ID}, nil
}

// Update overwrites the row with the given hero ID.
func (s *HeroStore) Update(_ context.Context, heroID string, hero discovery.Hero) error {
	if heroID == "" {
		return fmt.Errorf("hero id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for cid, existing := range s.byCID {
		if existing.ID == heroID {
			hero.ID = heroID
			hero.ContentID = cid
			hero.TraceID = existing.TraceID
			hero.CreatedAt = existing.CreatedAt
			s.byCID[cid] = hero
			return nil
		}
	}
	return fmt.Errorf("hero %s not found", heroID)
}

// GetByContentID returns the hero row for a content record, if any.
func (s *HeroStore) GetByContentID(_ context.Context, contentID string) (discovery.Hero, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hero, ok := s.byCID[contentID]
	return hero, ok, nil
}

// ContentStore keeps content records in a map keyed by ID.
type ContentStore struct {
	mu   sync.RWMutex
	byID map[string]discovery.ContentRecord
}

// NewContentStore creates an empty in-memory ContentStore.
func NewContentStore() *ContentStore {
	return &ContentStore{byID: make(map[string]discovery.ContentRecord)}
}

// Create inserts a new content record; duplicate IDs are rejected.
func (s *ContentStore) Create(_ context.Context, record discovery.ContentRecord) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[record.ID]; ok {
		return fmt.Errorf("content record %s already exists", record.ID)
	}
	s.byID[record.ID] = record
	return nil
}

// Get returns a content record by ID.
func (s *ContentStore) Get(_ context.Context, id string) (discovery.ContentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byID[id]
	return record, ok, nil
}

// UpdateEnrichment applies the enrichment outcome to a content record.
func (s *ContentStore) UpdateEnrichment(_ context.Context, id string, summary string, status discovery.ContentStatus, mirror *discovery.HeroMirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("content record %s not found", id)
	}
	record.Summary = summary
	record.Status = status
	record.Hero = mirror
	if mirror != nil {
		record.UpdatedAt = mirror.UpdatedAt
	}
	s.byID[id] = record
	return nil
}
