package learning

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/katalog/internal/model"
)

// GlobalContext is the hash of an empty project context.
const GlobalContext = "global"

// ContextHash derives a stable digest from the project attributes that
// influence catalog choice. Values are trimmed and lowercased and empty
// attributes are ignored, so equivalent contexts hash alike.
func ContextHash(pc model.ProjectContext) string {
	fields := map[string]string{
		"project_type":      pc.ProjectType,
		"building_type":     pc.BuildingType,
		"building_system":   pc.BuildingSystem,
		"structural_system": pc.StructuralSystem,
	}
	if pc.Storeys > 0 {
		fields["storeys"] = strconv.Itoa(pc.Storeys)
	}

	parts := make([]string, 0, len(fields))
	for key, value := range fields {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		parts = append(parts, key+"="+value)
	}
	if len(parts) == 0 {
		return GlobalContext
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}
