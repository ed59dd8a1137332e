package pkgsync

import "sort"

// Set is a set of package identifiers.
type Set map[string]struct{}

// NewSet builds a set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports membership of id.
func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Equal reports whether both sets hold the same ids. A size mismatch
// short-circuits before any membership checks.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Sorted returns the ids in lexical order, for stable payloads and logs.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Diff computes the work needed to make worker match admin:
// toInstall = admin − worker, toUninstall = worker − admin.
func Diff(admin, worker Set) (toInstall, toUninstall []string) {
	for id := range admin {
		if !worker.Contains(id) {
			toInstall = append(toInstall, id)
		}
	}
	for id := range worker {
		if !admin.Contains(id) {
			toUninstall = append(toUninstall, id)
		}
	}
	sort.Strings(toInstall)
	sort.Strings(toUninstall)
	return toInstall, toUninstall
}
