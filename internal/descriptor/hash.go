package descriptor

import (
	"github.com/cespare/xxhash/v2"

	"github.com/doeshing/riskgate/internal/domain"
)

// NameHash is the 32-bit identifier stored for a command or family name:
// the low 32 bits of xxhash64 over the normalized name.
func NameHash(name string) uint32 {
	return uint32(xxhash.Sum64String(domain.NormalizeCommand(name)))
}
