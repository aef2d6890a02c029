package tiles

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const tileConfigurationVersion = 1

// Field numbers of the TileConfiguration protobuf message.
const (
	fieldVersion         protowire.Number = 1
	fieldNumberOfRows    protowire.Number = 2
	fieldNumberOfColumns protowire.Number = 3
	fieldHeightsOfRows   protowire.Number = 4
	fieldWidthsOfColumns protowire.Number = 5
)

type tileConfiguration struct {
	version         int
	numberOfRows    int
	numberOfColumns int
	heightsOfRows   []int
	widthsOfColumns []int
}

// decodeTileConfiguration walks the wire format directly. Repeated fields are
// accepted both packed and unpacked; unknown fields are skipped.
func decodeTileConfiguration(b []byte) (tileConfiguration, error) {
	var cfg tileConfiguration
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return cfg, fmt.Errorf("%w: %v", ErrMalformedLayout, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return cfg, fmt.Errorf("%w: version: %v", ErrMalformedLayout, protowire.ParseError(n))
			}
			cfg.version = int(v)
			b = b[n:]
		case num == fieldNumberOfRows && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return cfg, fmt.Errorf("%w: numberOfRows: %v", ErrMalformedLayout, protowire.ParseError(n))
			}
			cfg.numberOfRows = int(v)
			b = b[n:]
		case num == fieldNumberOfColumns && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return cfg, fmt.Errorf("%w: numberOfColumns: %v", ErrMalformedLayout, protowire.ParseError(n))
			}
			cfg.numberOfColumns = int(v)
			b = b[n:]
		case num == fieldHeightsOfRows || num == fieldWidthsOfColumns:
			vals, n, err := consumeRepeatedVarint(b, typ)
			if err != nil {
				return cfg, fmt.Errorf("%w: field %d: %v", ErrMalformedLayout, num, err)
			}
			if num == fieldHeightsOfRows {
				cfg.heightsOfRows = append(cfg.heightsOfRows, vals...)
			} else {
				cfg.widthsOfColumns = append(cfg.widthsOfColumns, vals...)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return cfg, fmt.Errorf("%w: field %d: %v", ErrMalformedLayout, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return cfg, nil
}

func consumeRepeatedVarint(b []byte, typ protowire.Type) ([]int, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return []int{int(v)}, n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		var vals []int
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return nil, 0, protowire.ParseError(m)
			}
			vals = append(vals, int(v))
			packed = packed[m:]
		}
		return vals, n, nil
	default:
		return nil, 0, fmt.Errorf("unexpected wire type %d", typ)
	}
}

func encodeTileConfiguration(cfg tileConfiguration) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cfg.version))
	b = protowire.AppendTag(b, fieldNumberOfRows, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cfg.numberOfRows))
	b = protowire.AppendTag(b, fieldNumberOfColumns, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cfg.numberOfColumns))
	b = appendPacked(b, fieldHeightsOfRows, cfg.heightsOfRows)
	b = appendPacked(b, fieldWidthsOfColumns, cfg.widthsOfColumns)
	return b
}

func appendPacked(b []byte, num protowire.Number, vals []int) []byte {
	if len(vals) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}
