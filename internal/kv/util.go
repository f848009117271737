package kv

import (
	"math/rand/v2"
	"os"
)

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// chaosShouldFail reports failure with ~50% probability, mirroring the
// original implementation's debug_chaos mode.
func chaosShouldFail() bool {
	return rand.Float64() < 0.5
}
