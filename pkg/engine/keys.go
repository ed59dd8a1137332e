package engine

// Category identifies one replicated data set. The string value is the
// canonical shared-store key suffix.
type Category string

const (
	CategoryFlows       Category = "flows"
	CategoryCredentials Category = "credentials"
	CategorySettings    Category = "settings"
	CategorySessions    Category = "sessions"
	CategoryLibrary     Category = "library"
	CategoryPackages    Category = "packages"
	CategoryActiveScope Category = "activeProject"
)

// scopeSensitive reports whether a category's shared-store key is
// partitioned by the active scope.
func scopeSensitive(c Category) bool {
	return c == CategoryFlows || c == CategoryCredentials
}

// Keys computes shared-store keys under a configurable namespace prefix.
type Keys struct {
	Prefix string
}

// Category returns the unscoped canonical key for c.
func (k Keys) Category(c Category) string {
	return k.Prefix + string(c)
}

// Scoped returns the key for c partitioned to the named scope.
func (k Keys) Scoped(scope string, c Category) string {
	return k.Prefix + "projects:" + scope + ":" + string(c)
}

// Resolve returns the effective key for c: scoped when a scope is active and
// the category is scope-sensitive, canonical otherwise.
func (k Keys) Resolve(scope string, c Category) string {
	if scope != "" && scopeSensitive(c) {
		return k.Scoped(scope, c)
	}
	return k.Category(c)
}

// Library returns the key of a single library entry.
func (k Keys) Library(entryType, path string) string {
	return k.Prefix + "library:" + entryType + ":" + path
}

// LibraryPrefix returns the listing prefix for a library directory.
func (k Keys) LibraryPrefix(entryType, dir string) string {
	return k.Prefix + "library:" + entryType + ":" + dir
}

// Packages returns the well-known key holding the admin's package set.
func (k Keys) Packages() string {
	return k.Category(CategoryPackages)
}

// ActiveScope returns the key of the active-scope marker.
func (k Keys) ActiveScope() string {
	return k.Category(CategoryActiveScope)
}
