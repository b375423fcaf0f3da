package desc

import "sync"

// The process-wide pool lets statically generated code look up its own
// descriptors by full name without threading a *Pool through every call
// site. The embedding program decides which pool (if any) plays this role.

var (
	globalMu   sync.RWMutex
	globalPool *Pool
)

// SetGlobal installs the process-wide pool. Passing nil clears it.
func SetGlobal(p *Pool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalPool = p
}

// Global returns the process-wide pool, or nil if none has been installed.
func Global() *Pool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalPool
}

// GlobalMessage looks up a message descriptor by full name in the
// process-wide pool.
func GlobalMessage(fullName string) (MessageDescriptor, bool) {
	p := Global()
	if p == nil {
		return MessageDescriptor{}, false
	}
	return p.FindMessageByName(fullName)
}
