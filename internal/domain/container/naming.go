package container

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultRoot is the prefix shared by every alias and container name.
const DefaultRoot = "munin"

const timestampLayout = "20060102_150405.000000"

var (
	ErrInvalidName    = errors.New("invalid container name")
	ErrInvalidSegment = errors.New("invalid name segment")

	segmentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// Naming derives alias and container names from a root prefix.
//
// Names are '_'-separated, so the root, doc types and datasets may not contain
// '_' themselves; ValidateSegment enforces this.
type Naming struct {
	Root string
}

// NewNaming returns a Naming rooted at root, or DefaultRoot if root is empty.
func NewNaming(root string) (Naming, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := ValidateSegment(root); err != nil {
		return Naming{}, err
	}
	return Naming{Root: root}, nil
}

// ValidateSegment checks that s can be embedded in a name.
func ValidateSegment(s string) error {
	if !segmentPattern.MatchString(s) {
		return fmt.Errorf("%w: %q must be lowercase alphanumeric or '-'", ErrInvalidSegment, s)
	}
	return nil
}

// GlobalAlias is the alias spanning every public container.
func (n Naming) GlobalAlias() string {
	return n.Root
}

// TypeAlias is the alias spanning every public container of a doc type.
func (n Naming) TypeAlias(docType string) string {
	return n.Root + "_" + docType
}

// DatasetAlias is the alias of the current container for a doc type and dataset.
func (n Naming) DatasetAlias(docType, dataset string) string {
	return n.Root + "_" + docType + "_" + dataset
}

// ContainerName is unique per creation instant, truncated to microseconds, in UTC.
func (n Naming) ContainerName(docType, dataset string, at time.Time) string {
	ts := strings.Replace(at.UTC().Format(timestampLayout), ".", "_", 1)
	return n.DatasetAlias(docType, dataset) + "_" + ts
}

// ContainerPattern matches every container under the root.
func (n Naming) ContainerPattern() string {
	return n.Root + "_*"
}

// Parse recovers doc type, dataset and creation time from a container name.
func (n Naming) Parse(name string) (docType, dataset string, createdAt time.Time, err error) {
	rest, ok := strings.CutPrefix(name, n.Root+"_")
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("%w: %q lacks root %q", ErrInvalidName, name, n.Root)
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 5 {
		return "", "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	createdAt, err = time.Parse(timestampLayout, parts[2]+"_"+parts[3]+"."+parts[4])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidName, name, err)
	}
	return parts[0], parts[1], createdAt.UTC(), nil
}
