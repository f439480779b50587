package store

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// SanitizeCollectionName derives a stable collection name from a project
// root. The base name keeps the collection recognizable; the hash suffix
// keeps two projects with the same directory name apart.
func SanitizeCollectionName(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}

	base := strings.ToLower(filepath.Base(abs))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "project"
	}

	sum := sha256.Sum256([]byte(filepath.ToSlash(abs)))
	return "semdex_" + name + "_" + hex.EncodeToString(sum[:4])
}
