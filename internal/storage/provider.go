// Package storage materializes note content as files in the workspace
// directory.
package storage

import "github.com/starford/notesync/internal/models"

// Provider is the interface for workspace file operations. Names are
// relative to the workspace root.
type Provider interface {
	// Root returns the absolute workspace path.
	Root() string
	// List returns metadata for every note file directly under the root.
	List() ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file called name.
	Read(name string) ([]byte, error)
	// Write atomically writes content to name.
	Write(name string, content []byte) error
	// Delete removes name. Removing a missing file is not an error.
	Delete(name string) error
	// Move renames oldName to newName.
	Move(oldName, newName string) error
	// Rel maps an absolute path to a workspace name. It reports false for
	// paths outside the root or in a subdirectory.
	Rel(abs string) (string, bool)
}
