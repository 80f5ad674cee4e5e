package domain

// KnownNetwork is an SSID with its pre-shared passphrase
type KnownNetwork struct {
	SSID       string `json:"ssid" yaml:"ssid"`
	Passphrase string `json:"-" yaml:"-"`
}

// CredentialSet is the skip list plus the known networks, in file order.
// It is built once at startup and never mutated afterwards.
type CredentialSet struct {
	skip  map[string]struct{}
	known []KnownNetwork
	index map[string]int
}

// NewCredentialSet creates a credential set. Later duplicates of a known
// SSID replace the passphrase but keep the first position.
func NewCredentialSet(skip []string, known []KnownNetwork) *CredentialSet {
	cs := &CredentialSet{
		skip:  make(map[string]struct{}, len(skip)),
		index: make(map[string]int, len(known)),
	}
	for _, ssid := range skip {
		cs.skip[ssid] = struct{}{}
	}
	for _, kn := range known {
		if i, ok := cs.index[kn.SSID]; ok {
			cs.known[i].Passphrase = kn.Passphrase
			continue
		}
		cs.index[kn.SSID] = len(cs.known)
		cs.known = append(cs.known, kn)
	}
	return cs
}

// EmptyCredentialSet returns a set with no skipped and no known networks
func EmptyCredentialSet() *CredentialSet {
	return NewCredentialSet(nil, nil)
}

// IsSkipped reports whether the SSID must never be joined
func (cs *CredentialSet) IsSkipped(ssid string) bool {
	_, ok := cs.skip[ssid]
	return ok
}

// Known returns the known networks in stable order. The slice is a copy.
func (cs *CredentialSet) Known() []KnownNetwork {
	out := make([]KnownNetwork, len(cs.known))
	copy(out, cs.known)
	return out
}

// Passphrase returns the passphrase for a known SSID
func (cs *CredentialSet) Passphrase(ssid string) (string, bool) {
	i, ok := cs.index[ssid]
	if !ok {
		return "", false
	}
	return cs.known[i].Passphrase, true
}

// SkipCount returns the number of skipped SSIDs
func (cs *CredentialSet) SkipCount() int {
	return len(cs.skip)
}

// KnownCount returns the number of known networks
func (cs *CredentialSet) KnownCount() int {
	return len(cs.known)
}
