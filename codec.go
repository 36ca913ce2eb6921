package recordcodec

import (
	"errors"
	"fmt"

	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/comparator"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/delta"
	"github.com/surrealdb/recordcodec/pkg/jsonbridge"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/recordstore"
	"github.com/surrealdb/recordcodec/pkg/textcodec"
)

var errNoStore = errors.New("recordcodec: codec has no store")

// Codec bundles the codecs around one context and an optional store.
//
// Pending record ids settled by Save are remembered, so links still holding
// them are written with the allocated id.
type Codec struct {
	ctx        *codecctx.Context
	store      recordstore.Store
	identities *models.Identities
}

// New builds a Codec on store, which may be nil when only the in-memory
// operations are used. opts configure the codec context; identity
// resolution is always provided by the Codec.
func New(store recordstore.Store, opts ...codecctx.Option) *Codec {
	identities := models.NewIdentities()
	all := make([]codecctx.Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, codecctx.WithIdentities(identities))
	return &Codec{
		ctx:        codecctx.New(all...),
		store:      store,
		identities: identities,
	}
}

func (c *Codec) Context() *codecctx.Context {
	return c.ctx
}

func (c *Codec) Identities() *models.Identities {
	return c.identities
}

// Encode writes e in the text format.
func (c *Codec) Encode(e *models.Entity) ([]byte, error) {
	res, err := textcodec.Encode(c.ctx, e, textcodec.Options{})
	if err != nil {
		return nil, err
	}
	return res.Bytes, nil
}

func (c *Codec) Decode(data []byte, target *models.Entity) (*models.Entity, error) {
	return textcodec.Decode(c.ctx, data, target)
}

// Save writes e to cluster of the store and marks it clean. An entity
// without a persistent id gets one allocated first. A record that already
// exists is padded to its previous size.
//
// Save returns the entity as it was written. When writing settled pending
// links or coerced values, that is a clean copy in a clone of e's arena
// and e itself keeps its original values; otherwise it is e.
func (c *Codec) Save(e *models.Entity, cluster int32) (models.RecordID, *models.Entity, error) {
	if c.store == nil {
		return models.UnresolvedRecordID, nil, errNoStore
	}
	rid, err := recordstore.Identify(c.store, e, cluster, c.identities)
	if err != nil {
		return models.UnresolvedRecordID, nil, err
	}

	var opts textcodec.Options
	previous, err := c.store.Load(rid)
	switch {
	case err == nil:
		opts.PadToSize = len(previous)
	case !errors.Is(err, constants.ErrNotFound):
		return models.UnresolvedRecordID, nil, err
	}

	res, err := textcodec.Encode(c.ctx, e, opts)
	if err != nil {
		return models.UnresolvedRecordID, nil, err
	}
	if err := c.store.Put(rid, res.Bytes); err != nil {
		return models.UnresolvedRecordID, nil, err
	}
	e.MarkClean()
	if res.Entity != e {
		res.Entity.MarkClean()
	}
	return rid, res.Entity, nil
}

// Load reads the record rid into a new entity of arena, or of a new arena
// when arena is nil. The entity is returned clean.
func (c *Codec) Load(rid models.RecordID, arena *models.Arena) (*models.Entity, error) {
	if c.store == nil {
		return nil, errNoStore
	}
	data, err := c.store.Load(rid)
	if err != nil {
		return nil, err
	}
	if arena == nil {
		arena = models.NewArena()
	}
	e, err := textcodec.Decode(c.ctx, data, arena.New(""))
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rid, err)
	}
	if err := e.SetRID(rid); err != nil {
		return nil, err
	}
	e.MarkClean()
	return e, nil
}

func (c *Codec) Delete(rid models.RecordID) error {
	if c.store == nil {
		return errNoStore
	}
	return c.store.Delete(rid)
}

// Scan calls fn with every stored record in id order.
func (c *Codec) Scan(fn func(rid models.RecordID, data []byte) error) error {
	if c.store == nil {
		return errNoStore
	}
	return c.store.Scan(fn)
}

// Snapshot writes the full binary form of e, see delta.Serialize.
func (c *Codec) Snapshot(e *models.Entity) ([]byte, error) {
	return delta.Serialize(c.ctx, e)
}

func (c *Codec) Restore(data []byte, target *models.Entity) error {
	return delta.Deserialize(c.ctx, data, target)
}

// Delta writes the changes of e since it was last marked clean.
func (c *Codec) Delta(e *models.Entity) ([]byte, error) {
	return delta.SerializeDelta(c.ctx, e)
}

func (c *Codec) ApplyDelta(data []byte, target *models.Entity) error {
	return delta.DeserializeDelta(c.ctx, data, target)
}

// CompareField orders a and b by their field name, using the collation the
// schema declares for it.
func (c *Codec) CompareField(a, b *models.Entity, name string) (int, error) {
	fa, err := comparator.FieldOf(c.ctx, a, name)
	if err != nil {
		return 0, err
	}
	fb, err := comparator.FieldOf(c.ctx, b, name)
	if err != nil {
		return 0, err
	}
	return comparator.Compare(c.ctx, fa, fb)
}

func (c *Codec) ExportJSON(e *models.Entity) ([]byte, error) {
	return jsonbridge.Export(c.ctx, e)
}

func (c *Codec) ImportJSON(data []byte, target *models.Entity) (*models.Entity, error) {
	return jsonbridge.Import(c.ctx, data, target)
}

// Close closes the store.
func (c *Codec) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
