package models

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// DefaultBagThreshold is the size above which a bag switches from the
// embedded layout to the tree layout.
const DefaultBagThreshold = 40

// Bag is an unordered multiset of record ids.
//
// Small bags keep their ids in a slice. Once a bag grows past its
// threshold it moves to a tree layout made of one position bitmap per
// cluster plus a table of multiplicities for ids stored more than once.
// Add and Remove keep whichever layout is active, so applying a delta never
// rebuilds a large bag.
type Bag struct {
	id        UUID
	threshold int
	size      int

	embedded []RecordID

	clusters map[int32]*roaring64.Bitmap
	extra    map[RecordID]int
}

func (*Bag) Type() PropertyType { return TypeLinkBag }
func (*Bag) isValue()           {}

// NewBag returns an empty bag with a fresh temporary identity.
func NewBag(rids ...RecordID) *Bag {
	return NewBagWithThreshold(DefaultBagThreshold, rids...)
}

// NewBagWithThreshold is NewBag with a custom embedded-to-tree threshold.
// A threshold below zero keeps the bag embedded forever.
func NewBagWithThreshold(threshold int, rids ...RecordID) *Bag {
	b := &Bag{id: NewUUID(), threshold: threshold}
	for _, rid := range rids {
		b.Add(rid)
	}
	return b
}

// ID is the temporary identity of the bag.
func (b *Bag) ID() UUID {
	return b.id
}

func (b *Bag) SetID(id UUID) {
	b.id = id
}

// IsEmbedded reports whether the bag uses the slice layout.
func (b *Bag) IsEmbedded() bool {
	return b.clusters == nil
}

func (b *Bag) Len() int {
	return b.size
}

func (b *Bag) Add(rid RecordID) {
	b.size++
	if b.IsEmbedded() {
		b.embedded = append(b.embedded, rid)
		if b.threshold >= 0 && b.size > b.threshold {
			b.convertToTree()
		}
		return
	}
	b.treeAdd(rid)
}

// Remove deletes one occurrence of rid.
func (b *Bag) Remove(rid RecordID) bool {
	if b.IsEmbedded() {
		i := slices.Index(b.embedded, rid)
		if i < 0 {
			return false
		}
		b.embedded = slices.Delete(b.embedded, i, i+1)
		b.size--
		return true
	}

	if n := b.extra[rid]; n > 0 {
		if n == 1 {
			delete(b.extra, rid)
		} else {
			b.extra[rid] = n - 1
		}
		b.size--
		return true
	}

	bm, ok := b.clusters[rid.Cluster]
	if !ok || !bm.Contains(uint64(rid.Position)) {
		return false
	}
	bm.Remove(uint64(rid.Position))
	if bm.IsEmpty() {
		delete(b.clusters, rid.Cluster)
	}
	b.size--
	return true
}

// Count returns the multiplicity of rid.
func (b *Bag) Count(rid RecordID) int {
	if b.IsEmbedded() {
		n := 0
		for _, r := range b.embedded {
			if r == rid {
				n++
			}
		}
		return n
	}

	bm, ok := b.clusters[rid.Cluster]
	if !ok || !bm.Contains(uint64(rid.Position)) {
		return 0
	}
	return 1 + b.extra[rid]
}

func (b *Bag) Contains(rid RecordID) bool {
	return b.Count(rid) > 0
}

// RIDs lists every occurrence. Embedded bags keep insertion order, tree
// bags are ordered by cluster and position.
func (b *Bag) RIDs() []RecordID {
	if b.IsEmbedded() {
		return slices.Clone(b.embedded)
	}

	clusters := make([]int32, 0, len(b.clusters))
	for c := range b.clusters {
		clusters = append(clusters, c)
	}
	slices.Sort(clusters)

	out := make([]RecordID, 0, b.size)
	for _, c := range clusters {
		positions := b.clusters[c].ToArray()
		ids := make([]RecordID, len(positions))
		for i, p := range positions {
			ids[i] = RecordID{Cluster: c, Position: int64(p)}
		}
		slices.SortFunc(ids, RecordID.Compare)
		for _, rid := range ids {
			for n := 1 + b.extra[rid]; n > 0; n-- {
				out = append(out, rid)
			}
		}
	}
	return out
}

// Counts returns the multiplicity of every distinct id.
func (b *Bag) Counts() map[RecordID]int {
	counts := make(map[RecordID]int)
	for _, rid := range b.RIDs() {
		counts[rid]++
	}
	return counts
}

// Equal reports multiset equality.
func (b *Bag) Equal(other *Bag) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.size != other.size {
		return false
	}
	counts := b.Counts()
	for rid, n := range other.Counts() {
		if counts[rid] != n {
			return false
		}
	}
	return true
}

// Diff returns the symmetric difference between old and b: the ids to add
// to old and the ids to remove from it to obtain b, with multiplicities.
func (b *Bag) Diff(old *Bag) (added, removed []RecordID) {
	var oldCounts map[RecordID]int
	if old != nil {
		oldCounts = old.Counts()
	}
	newCounts := b.Counts()

	for _, rid := range b.RIDs() {
		if oldCounts[rid] < newCounts[rid] {
			added = append(added, rid)
			oldCounts = incr(oldCounts, rid)
		}
	}
	if old != nil {
		seen := make(map[RecordID]int)
		for _, rid := range old.RIDs() {
			seen[rid]++
			if seen[rid] > newCounts[rid] {
				removed = append(removed, rid)
			}
		}
	}
	return added, removed
}

func incr(counts map[RecordID]int, rid RecordID) map[RecordID]int {
	if counts == nil {
		counts = make(map[RecordID]int)
	}
	counts[rid]++
	return counts
}

// Clone copies the bag including its identity and layout.
func (b *Bag) Clone() *Bag {
	out := &Bag{id: b.id, threshold: b.threshold, size: b.size}
	if b.IsEmbedded() {
		out.embedded = slices.Clone(b.embedded)
		return out
	}
	out.clusters = make(map[int32]*roaring64.Bitmap, len(b.clusters))
	for c, bm := range b.clusters {
		out.clusters[c] = bm.Clone()
	}
	out.extra = make(map[RecordID]int, len(b.extra))
	for rid, n := range b.extra {
		out.extra[rid] = n
	}
	return out
}

func (b *Bag) convertToTree() {
	b.clusters = make(map[int32]*roaring64.Bitmap)
	b.extra = make(map[RecordID]int)
	for _, rid := range b.embedded {
		b.treeAdd(rid)
	}
	b.embedded = nil
}

func (b *Bag) treeAdd(rid RecordID) {
	bm, ok := b.clusters[rid.Cluster]
	if !ok {
		bm = roaring64.New()
		b.clusters[rid.Cluster] = bm
	}
	if !bm.CheckedAdd(uint64(rid.Position)) {
		b.extra[rid]++
	}
}
