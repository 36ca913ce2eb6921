package textcodec

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/surrealdb/recordcodec/internal/textscan"
	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/metrics"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/typeresolver"
)

const nullToken = "null"

// Decode reads data into target and returns it. A nil target decodes into
// a new entity of a new arena.
//
// Fields already present in target are left alone. When fields is not
// empty only the named fields are read; asking for constants.ClassField
// alone reads nothing but the class tag.
func Decode(ctx *codecctx.Context, data []byte, target *models.Entity, fields ...string) (e *models.Entity, err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpDecode, start, err) }()

	if target == nil {
		target = models.NewArena().New("")
	}

	d := &decoder{ctx: ctx, arena: target.Arena()}
	content := strings.TrimSpace(string(data))
	if err = d.readEntity(target, content, fields); err != nil {
		return nil, err
	}
	return target, nil
}

type decoder struct {
	ctx   *codecctx.Context
	arena *models.Arena
}

// declaration is what the schema or the entity says about a field.
type declaration struct {
	typ    models.PropertyType
	linked models.PropertyType
	class  string
}

func (d *decoder) readEntity(e *models.Entity, content string, filter []string) error {
	if class, rest, ok := splitClass(content); ok {
		e.SetClassName(class)
		content = rest
	}
	if len(filter) == 1 && filter[0] == constants.ClassField {
		return nil
	}

	remaining := len(filter)
	if slices.Contains(filter, constants.ClassField) {
		remaining--
	}
	for _, part := range textscan.Split(content, constants.RecordSeparator) {
		sep := strings.IndexByte(part, constants.EntrySeparator)
		if sep <= 0 {
			return fmt.Errorf("%w: field %q has no name", constants.ErrMalformedRecord, part)
		}
		name := strings.TrimSpace(part[:sep])
		token := strings.TrimSpace(part[sep+1:])

		if len(filter) > 0 {
			if !slices.Contains(filter, name) {
				continue
			}
			remaining--
		}
		if !e.Has(name) {
			if err := d.readField(e, name, token); err != nil {
				return err
			}
		}
		if len(filter) > 0 && remaining == 0 {
			break
		}
	}
	return nil
}

// splitClass separates the class tag from the field list.
func splitClass(content string) (class, rest string, ok bool) {
	at := strings.IndexByte(content, constants.ClassSeparator)
	if at < 0 {
		return "", content, false
	}
	if colon := strings.IndexByte(content, constants.EntrySeparator); colon >= 0 && colon < at {
		return "", content, false
	}
	class = strings.TrimSpace(content[:at])
	if strings.ContainsAny(class, `"'()[]{}<>%#,`) {
		return "", content, false
	}
	return class, content[at+1:], true
}

func (d *decoder) readField(e *models.Entity, name, token string) error {
	var decl declaration
	if p, ok := d.ctx.Property(e.ClassName(), name); ok {
		decl = declaration{typ: p.Type, linked: p.LinkedType, class: p.LinkedClass}
	}
	if !decl.typ.Declared() {
		decl.typ = e.Type(name)
	}
	if decl.typ == models.TypeTransient {
		return nil
	}

	stored := typeresolver.Infer(token)
	typ := typeresolver.Reconcile(decl.typ, stored)

	v, err := d.readValue(e, name, token, typ, decl)
	if err != nil {
		return err
	}

	// An empty collection says nothing about its type, keep it undeclared
	// so the next write infers it again.
	if !decl.typ.Declared() && !stored.Certain && typ.IsMultiValue() {
		typ = models.TypeAny
	}
	e.SetTyped(name, v, typ)
	return nil
}

func (d *decoder) readValue(owner *models.Entity, field, token string, t models.PropertyType, decl declaration) (models.Value, error) {
	if token == "" || !t.Declared() {
		return nil, nil
	}

	switch t {
	case models.TypeString:
		return models.String(textscan.Unquote(token)), nil
	case models.TypeBinary:
		b, err := readBinary(token)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", constants.ErrMalformedRecord, field, err)
		}
		return models.Binary(b), nil
	case models.TypeCustom:
		b, err := readBinary(strings.TrimPrefix(token, string(typeresolver.CustomPrefix)))
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", constants.ErrMalformedRecord, field, err)
		}
		return models.Custom{Data: b}, nil
	case models.TypeLink:
		return d.readLink(field, token), nil
	case models.TypeEmbedded:
		return d.readEmbedded(owner, field, token, decl.class)
	case models.TypeEmbeddedList, models.TypeEmbeddedSet, models.TypeLinkList, models.TypeLinkSet:
		items, err := d.readItems(owner, field, token, t, decl.linked)
		if err != nil {
			return nil, err
		}
		return models.WithItems(t, items), nil
	case models.TypeEmbeddedMap, models.TypeLinkMap:
		return d.readMap(owner, field, token, t, decl.linked)
	case models.TypeLinkBag:
		return d.readBag(field, token)
	case models.TypeTransient:
		return nil, nil
	}

	raw := token
	if suffix := typeresolver.Suffix(t); suffix != 0 && raw[len(raw)-1] == suffix {
		raw = raw[:len(raw)-1]
	}
	v, err := models.Convert(models.String(textscan.Unquote(raw)), t)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", constants.ErrMalformedRecord, field, err)
	}
	return v, nil
}

func readBinary(token string) ([]byte, error) {
	inner, ok := textscan.Unwrap(token, constants.BinaryDelimiter, constants.BinaryDelimiter)
	if !ok {
		return nil, fmt.Errorf("binary value %q is not delimited", token)
	}
	return base64.StdEncoding.DecodeString(inner)
}

// readLink parses a reference. A malformed one does not fail the record:
// it is replaced by the unresolved id and logged.
func (d *decoder) readLink(field, token string) models.Value {
	rid, err := models.ParseRecordID(token)
	if err != nil {
		d.ctx.Logger().Error("malformed link", "field", field, "token", token, "error", err)
		return models.NewLink(models.UnresolvedRecordID)
	}
	return models.NewLink(rid)
}

func (d *decoder) readEmbedded(owner *models.Entity, field, token, class string) (models.Value, error) {
	inner, ok := textscan.Unwrap(token, constants.EmbeddedBegin, constants.EmbeddedEnd)
	if !ok {
		return nil, fmt.Errorf("%w: field %q: embedded value %q is not delimited", constants.ErrMalformedRecord, field, token)
	}

	child := d.arena.NewEmbedded(owner.Handle(), class)
	if err := d.readEntity(child, inner, nil); err != nil {
		return nil, err
	}
	return child.Ref(), nil
}

// unwrapCollection strips the framing of any list-shaped token.
func unwrapCollection(token string) (string, bool) {
	if inner, ok := textscan.Unwrap(token, constants.ListBegin, constants.ListEnd); ok {
		return inner, true
	}
	if inner, ok := textscan.Unwrap(token, constants.SetBegin, constants.SetEnd); ok {
		return inner, true
	}
	if inner, ok := textscan.Unwrap(token, constants.BagDelimiter, constants.BagDelimiter); ok {
		return inner, true
	}
	return textscan.Unwrap(token, constants.BagDelimiter, constants.LegacyBagEnd)
}

func (d *decoder) readItems(owner *models.Entity, field, token string, t, linked models.PropertyType) ([]models.Value, error) {
	inner, ok := unwrapCollection(token)
	if !ok {
		return nil, fmt.Errorf("%w: field %q: collection %q is not delimited", constants.ErrMalformedRecord, field, token)
	}

	parts := textscan.Split(inner, constants.RecordSeparator)
	items := make([]models.Value, 0, len(parts))
	for _, part := range parts {
		v, err := d.readItem(owner, field, part, t.IsLink(), linked)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func (d *decoder) readItem(owner *models.Entity, field, token string, link bool, linked models.PropertyType) (models.Value, error) {
	switch {
	case token == "" || token == nullToken:
		return nil, nil
	case link:
		return d.readLink(field, token), nil
	}
	t := typeresolver.Reconcile(linked, typeresolver.Infer(token))
	return d.readValue(owner, field, token, t, declaration{typ: t})
}

func (d *decoder) readMap(owner *models.Entity, field, token string, t, linked models.PropertyType) (models.Value, error) {
	inner, ok := textscan.Unwrap(token, constants.MapBegin, constants.MapEnd)
	if !ok {
		return nil, fmt.Errorf("%w: field %q: map %q is not delimited", constants.ErrMalformedRecord, field, token)
	}

	parts := textscan.Split(inner, constants.RecordSeparator)
	entries := make([]models.MapEntry, 0, len(parts))
	for _, part := range parts {
		sep := textscan.IndexTopLevel(part, constants.EntrySeparator)
		if sep < 0 {
			return nil, fmt.Errorf("%w: field %q: map entry %q has no key", constants.ErrMalformedRecord, field, part)
		}
		key := textscan.Unquote(strings.TrimSpace(part[:sep]))
		v, err := d.readItem(owner, field, strings.TrimSpace(part[sep+1:]), t.IsLink(), linked)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.MapEntry{Key: key, Value: v})
	}
	return models.WithEntries(t, entries), nil
}

// readBag reads a bag. Malformed ids are logged and left out, a bag only
// holds addressable records.
func (d *decoder) readBag(field, token string) (models.Value, error) {
	inner, ok := unwrapCollection(token)
	if !ok {
		return nil, fmt.Errorf("%w: field %q: bag %q is not delimited", constants.ErrMalformedRecord, field, token)
	}

	bag := models.NewBag()
	for _, part := range textscan.Split(inner, constants.RecordSeparator) {
		rid, err := models.ParseRecordID(part)
		if err != nil {
			d.ctx.Logger().Error("malformed link", "field", field, "token", part, "error", err)
			continue
		}
		bag.Add(rid)
	}
	return bag, nil
}
