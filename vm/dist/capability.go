package dist

import "fmt"

// CapabilityPolicy decides which host functions received code may call.
// Entries are full names ("global Name"). A nil Allowed set allows every
// host function that is not denied.
type CapabilityPolicy struct {
	Allowed map[string]bool
	Denied  map[string]bool
}

// NewPermissivePolicy creates a policy that allows every host function.
func NewPermissivePolicy() *CapabilityPolicy {
	return &CapabilityPolicy{}
}

// NewRestrictedPolicy allows only the listed host functions.
func NewRestrictedPolicy(allowed []string) *CapabilityPolicy {
	m := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		m[c] = true
	}
	return &CapabilityPolicy{Allowed: m}
}

// Check returns an error naming the first host function of manifest the
// policy refuses.
func (p *CapabilityPolicy) Check(manifest *CapabilityManifest) error {
	if manifest == nil {
		return nil
	}
	for _, fn := range manifest.Required {
		if p.Denied[fn] {
			return fmt.Errorf("dist: host function %q is explicitly denied", fn)
		}
		if p.Allowed != nil && !p.Allowed[fn] {
			return fmt.Errorf("dist: host function %q is not allowed", fn)
		}
	}
	return nil
}

// Deny adds a host function to the deny list. Denial wins over Allowed.
func (p *CapabilityPolicy) Deny(fn string) {
	if p.Denied == nil {
		p.Denied = make(map[string]bool)
	}
	p.Denied[fn] = true
}
