package models

// Attrs is the opaque attribute payload attached to a version. It is stored
// as JSONB and never interpreted; keys and values pass through untouched.
type Attrs map[string]any

// Path identifies a filesystem entry by its containing directory and name.
// The (Parent, Name) pair is unique; the row is write-once.
type Path struct {
	ID     int64  `json:"id"`
	Parent string `json:"parent"`
	Name   string `json:"name"`
}

// Version is one immutable snapshot in a path's history. For a given PathID
// the stored VersionNo values are dense, starting at 1.
type Version struct {
	ID        int64 `json:"id"`
	PathID    int64 `json:"path_id"`
	VersionNo int   `json:"version_no"`
	Attrs     Attrs `json:"attrs"`
}

// Entry is a flattened read-model row: a version joined with its owning path.
type Entry struct {
	Path    Path    `json:"path"`
	Version Version `json:"version"`
}
