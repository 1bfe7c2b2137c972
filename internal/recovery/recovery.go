package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	errNotObject    = errors.New("recovery: block is not a JSON object")
	errTrailingData = errors.New("recovery: trailing data after object")
)

// recordStart marks where a record begins: an opening brace, a quoted integer key and a colon.
// The first submatch is the opening quote of the key.
var recordStart = regexp.MustCompile(`\{\s*(['"])\d+['"]\s*:`)

// Result is the merged mapping of recovered records, in discovery order.
type Result struct {
	Keys    []string
	Records map[string]json.RawMessage
	// Dropped counts candidate blocks that could not be decoded.
	Dropped int
}

func newResult() *Result {
	return &Result{Records: make(map[string]json.RawMessage)}
}

// Len returns the number of recovered records.
func (r *Result) Len() int {
	return len(r.Keys)
}

// Get returns the record stored under key.
func (r *Result) Get(key string) (json.RawMessage, bool) {
	rec, ok := r.Records[key]
	return rec, ok
}

// set stores a record. A duplicate key overwrites the value but keeps its first position.
func (r *Result) set(key string, rec json.RawMessage) {
	if _, exists := r.Records[key]; !exists {
		r.Keys = append(r.Keys, key)
	}
	r.Records[key] = rec
}

// MarshalJSON writes the records as one object, keys in discovery order.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		var compact bytes.Buffer
		if err := json.Compact(&compact, r.Records[key]); err != nil {
			return nil, fmt.Errorf("failed to compact record %s: %w", key, err)
		}
		buf.Write(compact.Bytes())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Option configures a Parser.
type Option func(*Parser)

// WithRepairFallback gives blocks that fail strict decoding a second chance
// through jsonrepair before they are dropped.
func WithRepairFallback() Option {
	return func(p *Parser) {
		p.repair = true
	}
}

// Parser recovers question records from noisy model output. The zero value is ready to use
// and holds no mutable state, so one Parser can serve concurrent callers.
type Parser struct {
	repair bool
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// Recover extracts every record it can from raw using the default Parser.
func Recover(raw string) (*Result, error) {
	return defaultParser.Recover(raw)
}

// RecoverReader reads r to the end and recovers records from its content.
func RecoverReader(r io.Reader) (*Result, error) {
	return defaultParser.RecoverReader(r)
}

// RecoverReader reads r to the end and recovers records from its content.
func (p *Parser) RecoverReader(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("recovery: failed to read input: %w", err)
	}
	return p.Recover(string(data))
}

// Recover locates candidate record blocks in raw, normalizes their quoting and merges every
// block that then decodes as a JSON object. Blocks that still fail are skipped. Finding no
// records is not an error: the returned Result is simply empty.
func (p *Parser) Recover(raw string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("recovery: unexpected failure: %v", r)
		}
	}()

	res = newResult()
	text := LocateBoundary(strings.TrimSpace(sanitize(raw)))
	if !strings.HasPrefix(text, "{") {
		// Pure prose holds no candidate block.
		return res, nil
	}
	for _, block := range SplitBlocks(text) {
		if !p.mergeBlock(res, Normalize(block)) {
			res.Dropped++
		}
	}
	return res, nil
}

// sanitize replaces invalid UTF-8 with U+FFFD and drops NUL bytes, so a character cut in half
// at the end of a truncated response only costs the record it belongs to.
func sanitize(raw string) string {
	raw = strings.ToValidUTF8(raw, "\uFFFD")
	return strings.ReplaceAll(raw, "\x00", "")
}

func (p *Parser) mergeBlock(res *Result, block string) bool {
	members, err := decodeObject(block)
	if err != nil && p.repair {
		repaired, repairErr := jsonrepair.JSONRepair(block)
		if repairErr != nil {
			return false
		}
		members, err = decodeObject(repaired)
	}
	if err != nil {
		return false
	}
	for _, m := range members {
		res.set(m.key, m.value)
	}
	return true
}

// LocateBoundary drops any prose before the first opening brace.
// Text without a brace is returned unchanged.
func LocateBoundary(raw string) string {
	if idx := strings.IndexByte(raw, '{'); idx >= 0 {
		return raw[idx:]
	}
	return raw
}

// SplitBlocks cuts text in front of every record start, so each piece after the first begins
// exactly at a boundary. A single-quoted record start always cuts. A double-quoted one cuts only
// at brace depth zero outside any string, so nested objects with integer keys in valid JSON stay
// whole. Pieces are trimmed, one trailing comma is removed, and anything after the last closing
// brace is discarded. Empty pieces are skipped.
func SplitBlocks(text string) []string {
	cuts := []int{0}
	depth := braceDepth{text: text}
	for _, loc := range recordStart.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] == 0 {
			continue
		}
		if text[loc[2]] == '"' && !depth.topLevel(loc[0]) {
			continue
		}
		cuts = append(cuts, loc[0])
		depth = braceDepth{text: text, pos: loc[0]}
	}
	cuts = append(cuts, len(text))

	blocks := make([]string, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		piece := strings.TrimSpace(text[cuts[i]:cuts[i+1]])
		piece = strings.TrimSuffix(piece, ",")
		piece = trimTrailingProse(piece)
		if piece == "" {
			continue
		}
		blocks = append(blocks, piece)
	}
	return blocks
}

// braceDepth tracks object nesting while scanning forward through text. Braces inside
// double-quoted strings do not count.
type braceDepth struct {
	text  string
	pos   int
	depth int
	inStr bool
	prev  byte
}

// topLevel scans up to end and reports whether end lies outside every object and string.
func (d *braceDepth) topLevel(end int) bool {
	for ; d.pos < end; d.pos++ {
		c := d.text[d.pos]
		if d.inStr {
			switch c {
			case '\\':
				d.pos++
			case '"':
				d.inStr = false
				d.prev = c
			}
			continue
		}
		switch c {
		case '"':
			d.inStr = opensString(d.prev)
		case '{':
			d.depth++
		case '}':
			if d.depth > 0 {
				d.depth--
			}
		}
		if !isSpace(c) {
			d.prev = c
		}
	}
	return !d.inStr && d.depth == 0
}

// trimTrailingProse cuts everything after the final closing brace, e.g. a closing markdown
// fence or a sign-off line.
func trimTrailingProse(piece string) string {
	if idx := strings.LastIndexByte(piece, '}'); idx >= 0 {
		return piece[:idx+1]
	}
	return piece
}

// Normalize rewrites a candidate block into strict JSON: keys first, then values,
// then trailing commas.
func Normalize(block string) string {
	return StripTrailingCommas(NormalizeValues(NormalizeKeys(block)))
}

type member struct {
	key   string
	value json.RawMessage
}

// decodeObject strictly decodes a single top-level JSON object, keeping member order.
func decodeObject(block string) ([]member, error) {
	dec := json.NewDecoder(strings.NewReader(block))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("recovery: unexpected token %v in key position", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("recovery: bad value for key %q: %w", key, err)
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return members, nil
}
