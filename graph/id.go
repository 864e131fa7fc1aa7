package graph

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// MakeID derives the content-addressed id of a node from its name and type.
// Names are compared case and whitespace insensitively; an empty name maps
// to "<type>_unknown".
func MakeID(name, typ string) string {
	typ = strings.ToLower(typ)
	if typ == "" {
		typ = TypeEntity
	}
	if name == "" {
		return typ + "_unknown"
	}

	clean := strings.ToLower(strings.TrimSpace(name))
	sum := md5.Sum([]byte(typ + ":" + clean))
	return typ + "_" + hex.EncodeToString(sum[:])[:10]
}
