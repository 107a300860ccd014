package obs

import "strings"

// CanonicalPath collapses record identifiers out of metric label paths so the
// per-path series cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) >= 3 && segs[0] == "v1" && segs[1] == "organizations" {
		segs[2] = ":org"
		if len(segs) >= 5 && segs[3] == "jobs" {
			switch segs[4] {
			case "trash", "cleanup":
			default:
				segs[4] = ":id"
			}
		}
		return "/" + strings.Join(segs, "/")
	}
	return path
}
