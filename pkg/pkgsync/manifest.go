package pkgsync

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// manifest is the slice of a package.json the syncer cares about.
type manifest struct {
	Dependencies map[string]string `json:"dependencies"`
}

// ReadManifest reads the installed-package manifest at path and returns the
// set of non-core package ids. A missing manifest is an empty set, not an
// error: a fresh data directory simply has nothing installed yet.
func ReadManifest(path, coreNamespace string) (Set, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Set{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parse manifest %s", path)
	}

	set := Set{}
	for id := range m.Dependencies {
		if isCore(id, coreNamespace) {
			continue
		}
		set[id] = struct{}{}
	}
	return set, nil
}

// isCore reports whether id belongs to the host runtime's own namespace:
// the runtime package itself or anything under its npm scope. Those ship
// with the runtime and must never be synced. Community packages that merely
// embed the namespace in their name (ns-contrib-*) are not core.
func isCore(id, ns string) bool {
	if ns == "" {
		return false
	}
	return id == ns || strings.HasPrefix(id, "@"+ns+"/")
}
