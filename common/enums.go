// Shared enums are separated into their own package so that configuration and
// processing code can both use them without import cycles.
package common

import (
	"fmt"
	"strings"
)

// Specification of requested backup policy for files being overwritten.
type BackupMode int

const (
	BackupModeNone BackupMode = iota
	BackupModeSidecar
)

var backupModeNames = []string{"none", "sidecar"}

func (b BackupMode) String() string {
	if b < 0 || int(b) >= len(backupModeNames) {
		// this should never happen
		panic("unsupported backup mode requested")
	}
	return backupModeNames[b]
}

// ParseBackupMode converts textual representation to BackupMode.
func ParseBackupMode(name string) (BackupMode, error) {
	for i, n := range backupModeNames {
		if strings.EqualFold(name, n) {
			return BackupMode(i), nil
		}
	}
	return BackupModeNone, fmt.Errorf("unknown backup mode %q", name)
}

// BackupModeNames returns all valid textual values for BackupMode.
func BackupModeNames() []string {
	return append([]string{}, backupModeNames...)
}

func (b BackupMode) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *BackupMode) UnmarshalText(text []byte) error {
	v, err := ParseBackupMode(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
