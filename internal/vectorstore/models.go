package vectorstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// GlobalCollection is the collection shared across all projects.
const GlobalCollection = "global"

// projectPrefix namespaces per-project collections.
const projectPrefix = "project_"

// collectionNamePattern restricts collection names to a safe charset.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,127}$`)

// Document is a document to be stored in a vector collection.
type Document struct {
	// ID uniquely identifies the document. Empty IDs are filled in by the
	// store with a generated ID.
	ID string

	// Content is the raw text.
	Content string

	// Metadata holds arbitrary key-value pairs stored with the document.
	Metadata map[string]interface{}

	// Collection names the target collection. All documents of a batch
	// must target the same collection.
	Collection string
}

// SearchResult is a single similarity search hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]interface{}
}

// StoredDocument is a document as returned by ListDocuments.
type StoredDocument struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
}

// NewDocumentID generates a document ID of the form
// "<unix-millis>_<9 hex chars>". The millisecond prefix keeps IDs roughly
// sortable by creation time.
func NewDocumentID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	return fmt.Sprintf("%d_%s", timeNow().UnixMilli(), suffix)
}

// ProjectCollection returns the collection name for a project identifier.
// The identifier is lowercased and spaces become hyphens, so differently
// cased spellings of the same project land in the same collection.
func ProjectCollection(projectID string) string {
	normalized := strings.ToLower(strings.ReplaceAll(projectID, " ", "-"))
	return projectPrefix + normalized
}

// ProjectIDFromCollection extracts the project identifier from a project
// collection name. Returns false for the global collection or any name
// without the project prefix.
func ProjectIDFromCollection(collectionName string) (string, bool) {
	if !strings.HasPrefix(collectionName, projectPrefix) {
		return "", false
	}
	return strings.TrimPrefix(collectionName, projectPrefix), true
}

// ValidateCollectionName checks that a collection name is non-empty,
// at most 128 characters, and uses only lowercase alphanumerics,
// hyphens, and underscores.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidCollectionName, name, collectionNamePattern.String())
	}
	return nil
}
