package ingest

import (
	"bytes"
	"fmt"

	"github.com/valyala/fastjson"

	"logsentry/internal/schema"
)

// documentOutcome classifies the whole-document decode attempt.
type documentOutcome int

const (
	// documentDecoded means the file is one JSON value.
	documentDecoded documentOutcome = iota
	// documentUndecodable means the file is not a single JSON value and
	// should be read as JSON Lines.
	documentUndecodable
)

// JSONParser parses a JSON array of objects, a single object, or JSON Lines.
type JSONParser struct {
	pool fastjson.ParserPool
}

// NewJSONParser creates a JSON parser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse decodes data as a whole document first and falls back to JSON Lines
// only when the document does not decode. In JSON Lines mode any undecodable
// line fails the whole parse.
func (p *JSONParser) Parse(data []byte) ([]schema.Record, Stats, error) {
	parser := p.pool.Get()
	defer p.pool.Put(parser)

	records, outcome, err := p.parseDocument(parser, data)
	if outcome == documentDecoded {
		return records, Stats{}, err
	}
	return p.parseLines(parser, data)
}

func (p *JSONParser) parseDocument(parser *fastjson.Parser, data []byte) ([]schema.Record, documentOutcome, error) {
	if err := fastjson.ValidateBytes(data); err != nil {
		return nil, documentUndecodable, nil
	}
	v, err := parser.ParseBytes(data)
	if err != nil {
		return nil, documentUndecodable, nil
	}

	switch v.Type() {
	case fastjson.TypeArray:
		items, _ := v.Array()
		records := make([]schema.Record, 0, len(items))
		for i, item := range items {
			if item.Type() != fastjson.TypeObject {
				return nil, documentDecoded, newParseError(FormatJSON, 0,
					fmt.Sprintf("array element %d is %s, want object", i, item.Type()), nil)
			}
			records = append(records, objectRecord(item))
		}
		return records, documentDecoded, nil
	case fastjson.TypeObject:
		return []schema.Record{objectRecord(v)}, documentDecoded, nil
	default:
		return nil, documentDecoded, newParseError(FormatJSON, 0,
			fmt.Sprintf("top-level %s, want array of objects or JSON Lines", v.Type()), nil)
	}
}

func (p *JSONParser) parseLines(parser *fastjson.Parser, data []byte) ([]schema.Record, Stats, error) {
	var (
		records []schema.Record
		stats   Stats
	)

	for i, raw := range bytes.Split(data, []byte("\n")) {
		lineNo := i + 1
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		// ParseBytes tolerates bad escapes and raw control characters.
		if err := fastjson.ValidateBytes(line); err != nil {
			return nil, stats, newParseError(FormatJSON, lineNo, err.Error(), err)
		}
		v, err := parser.ParseBytes(line)
		if err != nil {
			return nil, stats, newParseError(FormatJSON, lineNo, err.Error(), err)
		}
		if v.Type() != fastjson.TypeObject {
			return nil, stats, newParseError(FormatJSON, lineNo,
				fmt.Sprintf("line is %s, want object", v.Type()), nil)
		}
		records = append(records, objectRecord(v))
	}
	return records, stats, nil
}

// objectRecord converts a JSON object to a Record, keeping key order.
func objectRecord(v *fastjson.Value) schema.Record {
	obj, _ := v.Object()
	fields := make([]schema.Field, 0, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		fields = append(fields, schema.Field{Name: string(key), Value: jsonValue(val)})
	})
	return schema.NewRecord(fields...)
}

// jsonValue maps a JSON value to a scalar. Nested objects and arrays are
// kept as their compact JSON text.
func jsonValue(v *fastjson.Value) schema.Value {
	switch v.Type() {
	case fastjson.TypeString:
		return schema.String(string(v.GetStringBytes()))
	case fastjson.TypeNumber:
		return schema.NumberText(v.String())
	case fastjson.TypeTrue:
		return schema.Bool(true)
	case fastjson.TypeFalse:
		return schema.Bool(false)
	case fastjson.TypeNull:
		return schema.Null()
	default:
		return schema.String(v.String())
	}
}
