package platform

import (
	"bytes"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
)

// resolvConf renders servers in resolv.conf format. Entries that are not IP
// literals are skipped and returned separately.
func resolvConf(session string, servers []string) ([]byte, []string) {
	var (
		buf     bytes.Buffer
		skipped []string
	)
	fmt.Fprintf(&buf, "# %s\n", session)
	for _, server := range servers {
		if _, err := netip.ParseAddr(server); err != nil {
			skipped = append(skipped, server)
			continue
		}
		fmt.Fprintf(&buf, "nameserver %s\n", server)
	}
	return buf.Bytes(), skipped
}

// writeResolvConf writes the resolver file of ifname and returns its path.
func (e *Establisher) writeResolvConf(ifname, session string, servers []string) (string, error) {
	data, skipped := resolvConf(session, servers)
	for _, s := range skipped {
		e.logger.Warnf("platform: %s: ignoring dns entry %q", ifname, s)
	}
	if err := os.MkdirAll(e.settings.StateDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.settings.StateDir, ifname+".resolv.conf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
