package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"
)

// IndexingService owns the bleve indexes of the process. With an empty basePath indexes
// live in memory only.
type IndexingService struct {
	mu       sync.Mutex
	indexes  map[string]bleve.Index
	mappings map[string]mapping.IndexMapping
	logger   *zap.Logger
	basePath string
}

func NewIndexingService(logger *zap.Logger, basePath string) *IndexingService {
	return &IndexingService{
		indexes:  make(map[string]bleve.Index),
		mappings: make(map[string]mapping.IndexMapping),
		logger:   logger,
		basePath: basePath,
	}
}

// RegisterMapping sets the mapping used when indexName is first created
func (s *IndexingService) RegisterMapping(indexName string, m mapping.IndexMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[indexName] = m
}

func (s *IndexingService) index(indexName string) (bleve.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[indexName]; ok {
		return idx, nil
	}
	idx, err := s.open(indexName)
	if err != nil {
		s.logger.Error("Could not open index", zap.String("index", indexName), zap.Error(err))
		return nil, err
	}
	s.indexes[indexName] = idx
	return idx, nil
}

// open must be called with mu held
func (s *IndexingService) open(indexName string) (bleve.Index, error) {
	indexMapping, ok := s.mappings[indexName]
	if !ok {
		indexMapping = bleve.NewIndexMapping()
	}

	if s.basePath == "" {
		idx, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index %s: %w", indexName, err)
		}
		return idx, nil
	}

	fullPath := s.path(indexName)
	if idx, err := bleve.Open(fullPath); err == nil {
		return idx, nil
	}
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	idx, err := bleve.New(fullPath, indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index %s: %w", fullPath, err)
	}
	return idx, nil
}

func (s *IndexingService) path(indexName string) string {
	return filepath.Join(s.basePath, indexName+".bleve")
}

// ResetIndex drops indexName and everything in it; the next use recreates it empty with
// the registered mapping.
func (s *IndexingService) ResetIndex(indexName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[indexName]; ok {
		if err := idx.Close(); err != nil {
			return fmt.Errorf("failed to close index %s: %w", indexName, err)
		}
		delete(s.indexes, indexName)
	}
	if s.basePath != "" {
		if err := os.RemoveAll(s.path(indexName)); err != nil {
			return fmt.Errorf("failed to remove index %s: %w", indexName, err)
		}
	}
	s.logger.Info("Index reset", zap.String("index", indexName))
	return nil
}

// SearchIndex runs q and returns every stored field of the hits
func (s *IndexingService) SearchIndex(indexName string, q query.Query, size int) (*bleve.SearchResult, error) {
	idx, err := s.index(indexName)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = []string{"*"}

	result, err := idx.Search(req)
	if err != nil {
		s.logger.Error("Search failed", zap.String("index", indexName), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// IndexDocument adds or replaces the document stored under id
func (s *IndexingService) IndexDocument(indexName, id string, document interface{}) error {
	idx, err := s.index(indexName)
	if err != nil {
		return err
	}
	if err := idx.Index(id, document); err != nil {
		s.logger.Error("Failed to index document", zap.String("id", id), zap.Error(err))
		return err
	}
	s.logger.Debug("Indexed document", zap.String("index", indexName), zap.String("id", id))
	return nil
}

func (s *IndexingService) BulkIndexDocuments(indexName string, documents map[string]interface{}) error {
	idx, err := s.index(indexName)
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for id, doc := range documents {
		if err := batch.Index(id, doc); err != nil {
			s.logger.Error("Failed to add doc to batch", zap.String("id", id), zap.Error(err))
			return err
		}
	}
	if err := idx.Batch(batch); err != nil {
		s.logger.Error("Failed to execute batch", zap.String("index", indexName), zap.Error(err))
		return err
	}

	s.logger.Info("Bulk indexed documents",
		zap.String("index", indexName),
		zap.Int("count", len(documents)))
	return nil
}

func (s *IndexingService) DocCount(indexName string) (uint64, error) {
	idx, err := s.index(indexName)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Close closes every open index
func (s *IndexingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, idx := range s.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close index %s: %w", name, err)
		}
		delete(s.indexes, name)
	}
	return firstErr
}
