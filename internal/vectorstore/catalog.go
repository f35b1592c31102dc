package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// documentCatalog records the raw documents of each chromem collection in
// insertion order. chromem-go exposes no enumeration API, so listing and
// paging go through this sidecar. One JSON file per collection lives under
// <dir>, written atomically (tmp file, fsync, rename).
//
// The chromem gob files remain the source of truth for search. If a catalog
// file is lost, similarity search keeps working but listing starts empty.
type documentCatalog struct {
	dir    string
	logger *zap.Logger

	mu          sync.RWMutex
	collections map[string][]catalogEntry
}

type catalogEntry struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func newDocumentCatalog(dir string, logger *zap.Logger) (*documentCatalog, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating catalog directory %s: %w", dir, err)
	}

	c := &documentCatalog{
		dir:         dir,
		logger:      logger,
		collections: make(map[string][]catalogEntry),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// load reads all catalog files. Corrupted files are skipped with a warning
// so a bad shutdown never blocks startup.
func (c *documentCatalog) load() error {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("listing catalog files: %w", err)
	}

	for _, file := range files {
		name := collectionFromCatalogFile(file)
		data, err := os.ReadFile(file)
		if err != nil {
			c.logger.Warn("catalog: skipping unreadable file",
				zap.String("file", file),
				zap.Error(err))
			continue
		}

		var entries []catalogEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			c.logger.Warn("catalog: skipping corrupted file",
				zap.String("file", file),
				zap.Error(err))
			continue
		}
		c.collections[name] = entries
	}

	return nil
}

func collectionFromCatalogFile(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(".json")]
}

func (c *documentCatalog) filePath(collection string) string {
	return filepath.Join(c.dir, collection+".json")
}

// persist writes one collection's entries. Caller must hold the lock.
func (c *documentCatalog) persist(collection string) error {
	entries := c.collections[collection]
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding catalog for %s: %w", collection, err)
	}

	path := c.filePath(collection)
	tmpPath := path + ".tmp." + uuid.NewString()[:8]

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating catalog file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing catalog file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing catalog file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing catalog file: %w", err)
	}
	return nil
}

// append records stored documents at the end of a collection's order.
func (c *documentCatalog) append(collection string, entries ...catalogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.collections[collection] = append(c.collections[collection], entries...)
	return c.persist(collection)
}

// remove drops the given IDs from a collection and returns how many were
// actually present.
func (c *documentCatalog) remove(collection string, ids []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	victims := make(map[string]bool, len(ids))
	for _, id := range ids {
		victims[id] = true
	}

	entries := c.collections[collection]
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if victims[e.ID] {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}

	c.collections[collection] = kept
	return removed, c.persist(collection)
}

// drop deletes a collection's catalog entirely.
func (c *documentCatalog) drop(collection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.collections, collection)
	if err := os.Remove(c.filePath(collection)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing catalog file for %s: %w", collection, err)
	}
	return nil
}

// page returns a copy of entries [offset, offset+limit) in insertion order.
func (c *documentCatalog) page(collection string, limit, offset int) []catalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := c.collections[collection]
	if offset >= len(entries) || offset < 0 || limit <= 0 {
		return nil
	}

	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}

	page := make([]catalogEntry, end-offset)
	copy(page, entries[offset:end])
	return page
}

func (c *documentCatalog) count(collection string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.collections[collection])
}
