package model

// RevisionInfo holds the resolved HEAD commit identifier and, when local
// history could be walked, the number of commits reachable from it.
// CommitCount is nil for shallow clones; callers must then obtain an
// authoritative count from the hosting platform or fail.
type RevisionInfo struct {
	Revision    string
	CommitCount *uint64
}
