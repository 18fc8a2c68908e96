package container

import (
	"fmt"
	"time"
)

// Visibility controls how far a publication reaches.
type Visibility int

const (
	// Private publishes a container under its dataset alias only.
	Private Visibility = iota
	// Public publishes a container under its dataset, type and global aliases.
	Public
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// ParseVisibility maps "public" or "private" to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	default:
		return Private, fmt.Errorf("unknown visibility %q", s)
	}
}

// Config describes a container to be built.
type Config struct {
	DocType    string     `json:"doc_type" mapstructure:"doc_type"`
	Dataset    string     `json:"dataset" mapstructure:"dataset"`
	Visibility Visibility `json:"-" mapstructure:"-"`
}

// Index is the authoritative record of a container as reported by the backend.
type Index struct {
	Name      string    `json:"name"`
	DocType   string    `json:"doc_type"`
	Dataset   string    `json:"dataset"`
	CreatedAt time.Time `json:"created_at"`
	DocsCount int64     `json:"docs_count"`
	Status    string    `json:"status"`
}

// Document is anything the backend can store: it has a stable identifier and
// serializes to JSON.
type Document interface {
	ID() string
}

// InsertStats aggregates the per-item outcome of a bulk submission.
type InsertStats struct {
	Inserted uint64 `json:"inserted"`
	Updated  uint64 `json:"updated"`
	Failed   uint64 `json:"failed"`
}

// Add returns the sum of two stats.
func (s InsertStats) Add(o InsertStats) InsertStats {
	return InsertStats{
		Inserted: s.Inserted + o.Inserted,
		Updated:  s.Updated + o.Updated,
		Failed:   s.Failed + o.Failed,
	}
}
