package engine

import "clustersync/config"

// StoreKind names one of the two stores a category can be routed to.
type StoreKind int

const (
	StoreLocal StoreKind = iota
	StoreShared
)

func (s StoreKind) String() string {
	if s == StoreLocal {
		return "local"
	}
	return "shared"
}

// Route is the source-of-truth decision for one category and role: where
// reads come from and, in order, where writes must go. Write order matters:
// the first store is the durable one and must succeed before any later
// store is attempted.
type Route struct {
	ReadFrom StoreKind
	WriteTo  []StoreKind
}

// Resolve decides authority per category and role.
//
// The four core categories are locally authoritative on the admin with a
// write-through mirror to the shared store; workers treat the shared store
// as sole authority and only ever mirror into their local store. Library
// entries, the package manifest and the scope marker are shared-store backed
// regardless of role.
func Resolve(c Category, role config.Role) Route {
	switch c {
	case CategoryFlows, CategoryCredentials, CategorySettings, CategorySessions:
		if role == config.RoleAdmin {
			return Route{ReadFrom: StoreLocal, WriteTo: []StoreKind{StoreLocal, StoreShared}}
		}
		return Route{ReadFrom: StoreShared, WriteTo: []StoreKind{StoreLocal}}
	default:
		return Route{ReadFrom: StoreShared, WriteTo: []StoreKind{StoreShared}}
	}
}
