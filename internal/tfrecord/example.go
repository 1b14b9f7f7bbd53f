package tfrecord

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind identifies which list a Feature holds.
type Kind int

// Feature kinds, numbered as the oneof fields of tf.train.Feature.
const (
	KindNone  Kind = 0
	KindBytes Kind = 1
	KindFloat Kind = 2
	KindInt64 Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindFloat:
		return "float"
	case KindInt64:
		return "int64"
	default:
		return "none"
	}
}

// Feature is one decoded tf.train.Feature.
type Feature struct {
	Kind   Kind
	Bytes  [][]byte
	Floats []float32
	Ints   []int64
}

// Len is the number of values in the feature.
func (f Feature) Len() int {
	switch f.Kind {
	case KindBytes:
		return len(f.Bytes)
	case KindFloat:
		return len(f.Floats)
	case KindInt64:
		return len(f.Ints)
	default:
		return 0
	}
}

// Example is a decoded tf.train.Example keyed by feature name.
type Example map[string]Feature

// Keys returns the feature names in sorted order.
func (e Example) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseExample decodes a serialized tf.train.Example.
func ParseExample(b []byte) (Example, error) {
	ex := Example{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != 1 || typ != protowire.BytesType {
			return nil
		}
		// Features { map<string, Feature> feature = 1; }
		return eachField(v, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != 1 || typ != protowire.BytesType {
				return nil
			}
			key, f, err := parseMapEntry(entry)
			if err != nil {
				return err
			}
			ex[key] = f
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("parse example: %w", err)
	}
	return ex, nil
}

func parseMapEntry(b []byte) (string, Feature, error) {
	var (
		key string
		f   Feature
	)
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			key = string(v)
		case 2:
			var err error
			f, err = parseFeature(v)
			return err
		}
		return nil
	})
	return key, f, err
}

func parseFeature(b []byte) (Feature, error) {
	var f Feature
	err := eachField(b, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch Kind(num) {
		case KindBytes:
			f.Kind = KindBytes
			return eachField(list, func(num protowire.Number, typ protowire.Type, v []byte) error {
				if num == 1 && typ == protowire.BytesType {
					f.Bytes = append(f.Bytes, v)
				}
				return nil
			})
		case KindFloat:
			f.Kind = KindFloat
			return eachScalar(list, protowire.Fixed32Type, func(raw uint64) {
				f.Floats = append(f.Floats, math.Float32frombits(uint32(raw)))
			})
		case KindInt64:
			f.Kind = KindInt64
			return eachScalar(list, protowire.VarintType, func(raw uint64) {
				f.Ints = append(f.Ints, int64(raw))
			})
		}
		return nil
	})
	return f, err
}

// eachField walks the top-level fields of a message. Only length-delimited
// values are passed through; others are skipped with a nil value.
func eachField(b []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			if err := fn(num, typ, v); err != nil {
				return err
			}
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return protowire.ParseError(m)
		}
		if err := fn(num, typ, nil); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

// eachScalar decodes field 1 of a FloatList/Int64List, accepting both packed
// and unpacked encodings.
func eachScalar(b []byte, want protowire.Type, fn func(uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if num != 1 {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
			continue
		}
		switch typ {
		case protowire.BytesType:
			packed, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			for len(packed) > 0 {
				v, k := consumeScalar(packed, want)
				if k < 0 {
					return protowire.ParseError(k)
				}
				fn(v)
				packed = packed[k:]
			}
			b = b[m:]
		case want:
			v, m := consumeScalar(b, want)
			if m < 0 {
				return protowire.ParseError(m)
			}
			fn(v)
			b = b[m:]
		default:
			return fmt.Errorf("unexpected wire type %d for list value", typ)
		}
	}
	return nil
}

func consumeScalar(b []byte, typ protowire.Type) (uint64, int) {
	if typ == protowire.Fixed32Type {
		v, n := protowire.ConsumeFixed32(b)
		return uint64(v), n
	}
	return protowire.ConsumeVarint(b)
}

// Marshal encodes the example in the packed wire format TensorFlow writes.
// Keys are emitted in sorted order so output is deterministic.
func (e Example) Marshal() []byte {
	var features []byte
	for _, key := range e.Keys() {
		f := e[key]
		var list []byte
		switch f.Kind {
		case KindBytes:
			for _, v := range f.Bytes {
				list = protowire.AppendTag(list, 1, protowire.BytesType)
				list = protowire.AppendBytes(list, v)
			}
		case KindFloat:
			packed := make([]byte, 0, 4*len(f.Floats))
			for _, v := range f.Floats {
				packed = binary.LittleEndian.AppendUint32(packed, math.Float32bits(v))
			}
			list = protowire.AppendTag(list, 1, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		case KindInt64:
			var packed []byte
			for _, v := range f.Ints {
				packed = protowire.AppendVarint(packed, uint64(v))
			}
			list = protowire.AppendTag(list, 1, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
		var feat []byte
		if f.Kind != KindNone {
			feat = protowire.AppendTag(feat, protowire.Number(f.Kind), protowire.BytesType)
			feat = protowire.AppendBytes(feat, list)
		}
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, feat)

		features = protowire.AppendTag(features, 1, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}
	var out []byte
	out = protowire.AppendTag(out, 1, protowire.BytesType)
	return protowire.AppendBytes(out, features)
}
