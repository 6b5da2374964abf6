package consent

import "github.com/speedguard/sgvpn/internal/model"

// PrivilegePrompter treats the process privileges as consent: a process that
// may create interfaces is prepared, any other process is denied because
// there is nobody to ask.
type PrivilegePrompter struct {
	Logger model.Logger
}

var _ Prompter = &PrivilegePrompter{}

// Prepared implements Prompter.
func (p *PrivilegePrompter) Prepared() bool {
	return canAdminNetwork()
}

// Prompt implements Prompter.
func (p *PrivilegePrompter) Prompt(resolve func(granted bool)) {
	if canAdminNetwork() {
		go resolve(true)
		return
	}
	p.Logger.Warn("consent: run as root or grant CAP_NET_ADMIN to allow creating the tunnel interface")
	go resolve(false)
}
