package record

import (
	"path"
	"strconv"
	"strings"
)

// TimestampFromKey strips prefix and the extension from key and parses the
// remainder as epoch millis.
func TimestampFromKey(key, prefix string) (int64, bool) {
	name := strings.TrimPrefix(key, prefix)
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
