// Package jsonbridge converts entities to and from JSON documents.
//
// Fields are written in entity order. Attributes that have no JSON
// counterpart travel as "@" keys next to the fields:
//
//	@class       class name
//	@rid         record id of the top-level entity
//	@type        "d" on embedded entities, so they can be told from maps
//	@fieldTypes  "name=l,other=t" for fields whose JSON form loses the type
//
// On import a type declared by the schema wins over @fieldTypes, which wins
// over the JSON shape of the value.
package jsonbridge

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/metrics"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/typeresolver"
)

const (
	AttrClass      = "@class"
	AttrRID        = "@rid"
	AttrType       = "@type"
	AttrFieldTypes = "@fieldTypes"

	documentType = "d"
)

var typeLetters = map[models.PropertyType]byte{
	models.TypeEmbeddedSet: 'e',
	models.TypeLink:        'x',
	models.TypeLinkList:    'z',
	models.TypeLinkSet:     'n',
	models.TypeLinkMap:     'w',
	models.TypeLinkBag:     'g',
	models.TypeBinary:      'v',
	models.TypeCustom:      'u',
}

// letter returns the @fieldTypes letter of t, or 0 when the JSON shape of
// a value is enough to read it back.
func letter(t models.PropertyType) byte {
	if c := typeresolver.Suffix(t); c != 0 {
		return c
	}
	return typeLetters[t]
}

func typeOfLetter(c byte) (models.PropertyType, bool) {
	for _, t := range models.AllTypes() {
		if t.Declared() && letter(t) == c {
			return t, true
		}
	}
	return models.TypeAny, false
}

// Export writes e as a JSON object.
func Export(ctx *codecctx.Context, e *models.Entity) (out []byte, err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpExportJSON, start, err) }()

	if e == nil || e.Arena() == nil {
		return nil, errors.New("jsonbridge: entity is not part of an arena")
	}
	w := &writer{
		ctx:      ctx,
		arena:    e.Arena(),
		visiting: make(map[models.Handle]struct{}),
	}
	if err := w.entity(e, true); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

type writer struct {
	ctx      *codecctx.Context
	arena    *models.Arena
	visiting map[models.Handle]struct{}
	buf      bytes.Buffer
}

func (w *writer) fieldType(e *models.Entity, f models.Field) models.PropertyType {
	var t models.PropertyType
	if p, ok := w.ctx.Property(e.ClassName(), f.Name); ok {
		t = p.Type
	}
	if !t.Declared() {
		t = f.Type
	}
	if !t.Declared() {
		t = typeresolver.FromValue(w.arena, f.Value)
	}
	return t
}

func (w *writer) entity(e *models.Entity, top bool) error {
	if _, ok := w.visiting[e.Handle()]; ok {
		return fmt.Errorf("%w: entity %d", constants.ErrCyclicEmbedding, e.Handle())
	}
	w.visiting[e.Handle()] = struct{}{}
	defer delete(w.visiting, e.Handle())

	fields := e.Fields()
	types := make([]models.PropertyType, len(fields))
	var letters []string
	for i, f := range fields {
		types[i] = w.fieldType(e, f)
		if f.Value == nil {
			continue
		}
		if c := letter(types[i]); c != 0 {
			letters = append(letters, f.Name+"="+string(c))
		}
	}

	w.buf.WriteByte('{')
	n := 0
	attr := func(name, value string) {
		if n > 0 {
			w.buf.WriteByte(',')
		}
		n++
		w.str(name)
		w.buf.WriteByte(':')
		w.str(value)
	}
	if !top {
		attr(AttrType, documentType)
	}
	if e.ClassName() != "" {
		attr(AttrClass, e.ClassName())
	}
	if top && e.RID().IsValid() {
		attr(AttrRID, w.resolve(e.RID()).String())
	}
	if len(letters) > 0 {
		attr(AttrFieldTypes, strings.Join(letters, ","))
	}

	for i, f := range fields {
		if types[i] == models.TypeTransient {
			continue
		}
		if n > 0 {
			w.buf.WriteByte(',')
		}
		n++
		w.str(f.Name)
		w.buf.WriteByte(':')
		if err := w.value(f.Name, f.Value, types[i]); err != nil {
			return err
		}
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *writer) str(s string) {
	b, _ := json.Marshal(s)
	w.buf.Write(b)
}

func (w *writer) resolve(rid models.RecordID) models.RecordID {
	if resolved, ok := w.ctx.ResolveIdentity(rid); ok {
		return resolved
	}
	return rid
}

func (w *writer) value(field string, v models.Value, t models.PropertyType) error {
	if v == nil {
		w.buf.WriteString("null")
		return nil
	}
	if t.IsScalar() && t != v.Type() {
		converted, err := models.Convert(v, t)
		if err != nil {
			return &models.SerializationError{Field: field, Type: t, Value: v, Err: err}
		}
		v = converted
	}

	switch tv := v.(type) {
	case models.String:
		w.str(string(tv))
	case models.Integer, models.Short, models.Long, models.Byte, models.Boolean, models.Decimal:
		s, _ := models.FormatScalar(tv)
		w.buf.WriteString(s)
	case models.Float:
		return w.float(field, v, float64(tv))
	case models.Double:
		return w.float(field, v, float64(tv))
	case models.Binary:
		w.str(base64.StdEncoding.EncodeToString(tv))
	case models.Custom:
		w.str(base64.StdEncoding.EncodeToString(tv.Data))
	case models.Date:
		w.buf.WriteString(strconv.FormatInt(tv.Millis(), 10))
	case models.DateTime:
		w.buf.WriteString(strconv.FormatInt(tv.Millis(), 10))
	case models.Link:
		w.str(w.resolve(tv.RecordID).String())
	case models.Record:
		child, err := w.arena.Resolve(tv)
		if err != nil {
			return err
		}
		if t == models.TypeLink || child.Identifiable() {
			if !child.RID().IsValid() {
				return &models.SerializationError{Field: field, Type: models.TypeLink, Value: v}
			}
			w.str(w.resolve(child.RID()).String())
			return nil
		}
		return w.entity(child, false)
	case *models.List, *models.Set, *models.LinkList, *models.LinkSet:
		items, _ := models.Items(v)
		return w.items(field, items, t.IsLink())
	case *models.Map, *models.LinkMap:
		entries, _ := models.Entries(v)
		return w.entries(field, entries, t.IsLink())
	case *models.Bag:
		w.buf.WriteByte('[')
		for i, rid := range tv.RIDs() {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.str(w.resolve(rid).String())
		}
		w.buf.WriteByte(']')
	default:
		return &models.SerializationError{Field: field, Type: t, Value: v}
	}
	return nil
}

func (w *writer) float(field string, v models.Value, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &models.SerializationError{Field: field, Type: v.Type(), Value: v,
			Err: errors.New("not representable in JSON")}
	}
	s, _ := models.FormatScalar(v)
	w.buf.WriteString(s)
	return nil
}

func (w *writer) element(field string, index int, v models.Value, links bool) error {
	if !links {
		return w.value(field, v, typeresolver.FromValue(w.arena, v))
	}
	if !typeresolver.IsReference(w.arena, v) {
		return &models.LinkCastError{Field: field, Index: index, Got: models.TypeOf(v)}
	}
	return w.value(field, v, models.TypeLink)
}

func (w *writer) items(field string, items []models.Value, links bool) error {
	w.buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.element(field, i, item, links); err != nil {
			return err
		}
	}
	w.buf.WriteByte(']')
	return nil
}

func (w *writer) entries(field string, entries []models.MapEntry, links bool) error {
	w.buf.WriteByte('{')
	for i, entry := range entries {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		w.str(entry.Key)
		w.buf.WriteByte(':')
		if err := w.element(field, i, entry.Value, links); err != nil {
			return err
		}
	}
	w.buf.WriteByte('}')
	return nil
}

// Import reads a JSON object into target, replacing its fields. A nil
// target is replaced by a new entity in a fresh arena. The entity read is
// returned.
func Import(ctx *codecctx.Context, data []byte, target *models.Entity) (e *models.Entity, err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpImportJSON, start, err) }()

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: not a JSON object", constants.ErrMalformedRecord)
	}

	if target == nil {
		target = models.NewArena().New("")
	} else if target.Arena() == nil {
		return nil, errors.New("jsonbridge: entity is not part of an arena")
	}
	target.Clear()

	r := &reader{ctx: ctx, arena: target.Arena()}
	if err := r.entity(target, trimmed); err != nil {
		return nil, err
	}
	return target, nil
}

type reader struct {
	ctx   *codecctx.Context
	arena *models.Arena
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", constants.ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// attribute returns the string attribute key of object, or "" when absent.
func attribute(object []byte, key string) (string, error) {
	s, err := jsonparser.GetString(object, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return "", nil
	}
	if err != nil {
		return "", malformed("attribute %s: %v", key, err)
	}
	return s, nil
}

func parseFieldTypes(s string) (map[string]models.PropertyType, error) {
	if s == "" {
		return nil, nil
	}
	types := make(map[string]models.PropertyType)
	for _, part := range strings.Split(s, ",") {
		name, code, ok := strings.Cut(part, "=")
		if !ok || len(code) != 1 {
			return nil, malformed("field type %q", part)
		}
		t, ok := typeOfLetter(code[0])
		if !ok {
			return nil, malformed("unknown field type letter %q", code)
		}
		types[name] = t
	}
	return types, nil
}

func (r *reader) entity(e *models.Entity, object []byte) error {
	class, err := attribute(object, AttrClass)
	if err != nil {
		return err
	}
	e.SetClassName(class)

	if !e.IsEmbedded() {
		rid, err := attribute(object, AttrRID)
		if err != nil {
			return err
		}
		if rid != "" {
			parsed, err := models.ParseRecordID(rid)
			if err != nil {
				return err
			}
			if err := e.SetRID(parsed); err != nil {
				return err
			}
		}
	}

	declared, err := attribute(object, AttrFieldTypes)
	if err != nil {
		return err
	}
	fieldTypes, err := parseFieldTypes(declared)
	if err != nil {
		return err
	}

	return jsonparser.ObjectEach(object, func(key, raw []byte, dt jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return malformed("field name: %v", err)
		}
		if strings.HasPrefix(name, "@") {
			return nil
		}

		var t, linked models.PropertyType
		if p, ok := r.ctx.Property(e.ClassName(), name); ok {
			t, linked = p.Type, p.LinkedType
		}
		typed, fromLetters := fieldTypes[name]
		if !t.Declared() {
			t = typed
		}

		v, err := r.value(e, name, raw, dt, t, linked)
		if err != nil {
			return err
		}
		if fromLetters && t == typed {
			e.SetTyped(name, v, t)
		} else {
			e.Set(name, v)
		}
		return nil
	})
}

func (r *reader) value(owner *models.Entity, field string, raw []byte, dt jsonparser.ValueType, t, linked models.PropertyType) (models.Value, error) {
	var (
		v   models.Value
		err error
	)
	switch dt {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Boolean:
		var b bool
		b, err = jsonparser.ParseBoolean(raw)
		v = models.Boolean(b)
	case jsonparser.Number:
		v, err = number(raw, t)
	case jsonparser.String:
		return r.text(field, raw, t)
	case jsonparser.Array:
		return r.array(owner, field, raw, t, linked)
	case jsonparser.Object:
		return r.object(owner, field, raw, t, linked)
	default:
		return nil, malformed("field %q: unexpected JSON value", field)
	}
	if err != nil {
		return nil, malformed("field %q: %v", field, err)
	}
	return convert(field, v, t)
}

func convert(field string, v models.Value, t models.PropertyType) (models.Value, error) {
	if !t.Declared() {
		return v, nil
	}
	out, err := models.Convert(v, t)
	if err != nil {
		return nil, malformed("field %q: %v", field, err)
	}
	return out, nil
}

func number(raw []byte, t models.PropertyType) (models.Value, error) {
	s := string(raw)
	if t == models.TypeDecimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		return models.NewDecimal(d), nil
	}

	if n, err := jsonparser.ParseInt(raw); err == nil {
		if n < math.MinInt32 || n > math.MaxInt32 {
			return models.Long(n), nil
		}
		return models.Integer(n), nil
	}
	if !strings.ContainsAny(s, ".eE") {
		// Integral but beyond 64 bits.
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		return models.NewDecimal(d), nil
	}
	f, err := jsonparser.ParseFloat(raw)
	if err != nil {
		return nil, err
	}
	return models.Double(f), nil
}

func (r *reader) text(field string, raw []byte, t models.PropertyType) (models.Value, error) {
	s, err := jsonparser.ParseString(raw)
	if err != nil {
		return nil, malformed("field %q: %v", field, err)
	}
	switch t {
	case models.TypeBinary, models.TypeCustom:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, malformed("field %q: %v", field, err)
		}
		if t == models.TypeCustom {
			return models.Custom{Data: b}, nil
		}
		return models.Binary(b), nil
	case models.TypeLink:
		rid, err := models.ParseRecordID(s)
		if err != nil {
			return nil, err
		}
		return models.NewLink(rid), nil
	}
	return convert(field, models.String(s), t)
}

func (r *reader) link(field string, index int, raw []byte, dt jsonparser.ValueType) (models.RecordID, error) {
	if dt != jsonparser.String {
		return models.UnresolvedRecordID, &models.LinkCastError{Field: field, Index: index, Got: jsonType(dt)}
	}
	s, err := jsonparser.ParseString(raw)
	if err != nil {
		return models.UnresolvedRecordID, malformed("field %q: %v", field, err)
	}
	return models.ParseRecordID(s)
}

func jsonType(dt jsonparser.ValueType) models.PropertyType {
	switch dt {
	case jsonparser.Number:
		return models.TypeDouble
	case jsonparser.Boolean:
		return models.TypeBoolean
	case jsonparser.Object:
		return models.TypeEmbedded
	case jsonparser.Array:
		return models.TypeEmbeddedList
	}
	return models.TypeAny
}

func (r *reader) array(owner *models.Entity, field string, raw []byte, t, linked models.PropertyType) (models.Value, error) {
	if !t.Declared() {
		t = models.TypeEmbeddedList
	}
	switch t {
	case models.TypeEmbeddedList, models.TypeEmbeddedSet, models.TypeLinkList, models.TypeLinkSet, models.TypeLinkBag:
	default:
		return nil, malformed("field %q: cannot read an array as %s", field, t)
	}

	var (
		items   []models.Value
		rids    []models.RecordID
		itemErr error
	)
	index := 0
	_, err := jsonparser.ArrayEach(raw, func(item []byte, dt jsonparser.ValueType, _ int, err error) {
		if itemErr != nil {
			return
		}
		if err != nil {
			itemErr = err
			return
		}
		defer func() { index++ }()

		if t.IsLink() {
			rid, err := r.link(field, index, item, dt)
			if err != nil {
				itemErr = err
				return
			}
			rids = append(rids, rid)
			items = append(items, models.NewLink(rid))
			return
		}
		v, err := r.value(owner, field, item, dt, linked, models.TypeAny)
		if err != nil {
			itemErr = err
			return
		}
		items = append(items, v)
	})
	if itemErr != nil {
		return nil, itemErr
	}
	if err != nil {
		return nil, malformed("field %q: %v", field, err)
	}

	if t == models.TypeLinkBag {
		return models.NewBag(rids...), nil
	}
	return models.WithItems(t, items), nil
}

func (r *reader) object(owner *models.Entity, field string, raw []byte, t, linked models.PropertyType) (models.Value, error) {
	if t != models.TypeEmbeddedMap && t != models.TypeLinkMap {
		if t == models.TypeEmbedded || isEntity(raw) {
			child := r.arena.NewEmbedded(owner.Handle(), "")
			if err := r.entity(child, raw); err != nil {
				return nil, err
			}
			return child.Ref(), nil
		}
		if t.Declared() {
			return nil, malformed("field %q: cannot read an object as %s", field, t)
		}
		t = models.TypeEmbeddedMap
	}

	var entries []models.MapEntry
	index := 0
	err := jsonparser.ObjectEach(raw, func(key, item []byte, dt jsonparser.ValueType, _ int) error {
		defer func() { index++ }()
		k, err := jsonparser.ParseString(key)
		if err != nil {
			return malformed("field %q: %v", field, err)
		}
		var v models.Value
		if t == models.TypeLinkMap {
			rid, err := r.link(field, index, item, dt)
			if err != nil {
				return err
			}
			v = models.NewLink(rid)
		} else if v, err = r.value(owner, field, item, dt, linked, models.TypeAny); err != nil {
			return err
		}
		entries = append(entries, models.MapEntry{Key: k, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.WithEntries(t, entries), nil
}

func isEntity(object []byte) bool {
	if kind, err := jsonparser.GetString(object, AttrType); err == nil && kind == documentType {
		return true
	}
	_, _, _, err := jsonparser.Get(object, AttrClass)
	return err == nil
}
