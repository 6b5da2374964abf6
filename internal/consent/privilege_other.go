//go:build !linux

package consent

import "os"

func canAdminNetwork() bool {
	return os.Geteuid() == 0
}
