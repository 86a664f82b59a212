package notify

import (
	"sync"
	"time"
)

//GuidanceInterval caps how often a denied client is offered guidance
const GuidanceInterval = time.Hour

//PermissionPolicy tracks desktop alert grants per client and throttles
//the guidance hint for clients that denied them. Denial never fails
//silently: in app entries are still delivered.
type PermissionPolicy struct {
	mu      sync.Mutex
	granted map[string]bool
	guided  map[string]time.Time
}

//NewPermissionPolicy creates an empty policy
func NewPermissionPolicy() *PermissionPolicy {
	return &PermissionPolicy{
		granted: make(map[string]bool),
		guided:  make(map[string]time.Time),
	}
}

//Report records the client answer to the permission request
func (p *PermissionPolicy) Report(clientID string, granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted[clientID] = granted
}

//Granted reports if the client allowed desktop alerts.
//Unanswered counts as not granted, the request simply stays pending.
func (p *PermissionPolicy) Granted(clientID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted[clientID]
}

//Forget drops all state of a disconnected client
func (p *PermissionPolicy) Forget(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.granted, clientID)
	delete(p.guided, clientID)
}

//NeedGuidance reports, at most once per GuidanceInterval, that a client
//which denied desktop alerts should be offered guidance
func (p *PermissionPolicy) NeedGuidance(clientID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	answered, ok := p.granted[clientID]
	if !ok || answered {
		return false
	}
	if last, ok := p.guided[clientID]; ok && now.Sub(last) < GuidanceInterval {
		return false
	}
	p.guided[clientID] = now
	return true
}
