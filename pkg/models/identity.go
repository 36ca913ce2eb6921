package models

import "sync"

// IdentityResolver maps pending placeholders to the identities they were
// assigned when their records were saved.
type IdentityResolver interface {
	ResolveIdentity(pending RecordID) (RecordID, bool)
}

// Identities is a goroutine-safe IdentityResolver filled by whoever
// allocates record ids.
type Identities struct {
	mu  sync.RWMutex
	ids map[RecordID]RecordID
}

func NewIdentities() *Identities {
	return &Identities{ids: make(map[RecordID]RecordID)}
}

// Assign records that pending is now persisted as rid.
func (i *Identities) Assign(pending, rid RecordID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids[pending] = rid
}

func (i *Identities) ResolveIdentity(pending RecordID) (RecordID, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rid, ok := i.ids[pending]
	return rid, ok
}
