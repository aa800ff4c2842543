package ports

import (
	contractrelay "github.com/devflow/devflow/internal/contracts/v1/relay"
)

// SettingsStore reads the relay's non-secret settings file.
// A missing file is not an error: Read reports found=false.
type SettingsStore interface {
	Read(path string) (settings contractrelay.SettingsV1, found bool, err error)
}
