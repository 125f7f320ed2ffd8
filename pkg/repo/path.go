package repo

import "strings"

// ============================================================================
// Node Paths
// ============================================================================

// Node paths address items inside a repository tree, independent of any
// filesystem location. The root is "/" and every other item is the names
// from root to item joined with "/": "/radar/MagLoResInco1/pik1". Names
// themselves never contain a separator, which checkNodeName enforces.

// joinNodePath appends name to a parent path.
func joinNodePath(parent, name string) string {
	if parent == "" || parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// splitNodePath breaks a path into its segments, skipping empty ones so
// "/a//b/" and "a/b" both yield ["a", "b"].
func splitNodePath(path string) []string {
	parts := strings.Split(path, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// checkNodeName rejects names that would corrupt paths.
func checkNodeName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return ErrBadNodeName
	}
	return nil
}
