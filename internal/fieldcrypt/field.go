package fieldcrypt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/finvault/internal/cryptox"
)

// Record is an entity's column values keyed by field name.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// envelope is the stored form of an encrypted field value.
type envelope struct {
	C   string `json:"c"`
	IV  string `json:"iv"`
	Tag string `json:"tag"`
}

// Kind classifies a stored field value.
type Kind int

const (
	// KindPlain is a value that is not an envelope, including empty values.
	KindPlain Kind = iota
	// KindSealed is a well-formed envelope.
	KindSealed
	// KindInvalid is a string that looks like an envelope but cannot be decoded.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindSealed:
		return "sealed"
	default:
		return "invalid"
	}
}

// Field is a parsed field value. Exactly one of Value, Sealed or Err is
// meaningful, depending on Kind.
type Field struct {
	Kind   Kind
	Value  any
	Sealed *cryptox.Sealed
	Err    error
}

// Empty reports whether the field holds no data.
func (f Field) Empty() bool {
	return f.Kind == KindPlain && isEmpty(f.Value)
}

var errNotEnvelope = errors.New("value is not an encrypted envelope")

// ParseField classifies v. Parse failures are returned as KindInvalid,
// never as a panic or error return.
func ParseField(v any) Field {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return Field{Kind: KindPlain, Value: v}
	}

	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return Field{Kind: KindInvalid, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	sealed, err := env.decode()
	if err != nil {
		return Field{Kind: KindInvalid, Err: err}
	}
	return Field{Kind: KindSealed, Sealed: sealed}
}

func (e envelope) decode() (*cryptox.Sealed, error) {
	if e.C == "" && e.IV == "" && e.Tag == "" {
		return nil, errNotEnvelope
	}
	c, err := base64.StdEncoding.DecodeString(e.C)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(e.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(e.Tag)
	if err != nil {
		return nil, fmt.Errorf("decode tag: %w", err)
	}
	return &cryptox.Sealed{Ciphertext: c, IV: iv, Tag: tag}, nil
}

func encodeEnvelope(s *cryptox.Sealed) (string, error) {
	b, err := json.Marshal(envelope{
		C:   base64.StdEncoding.EncodeToString(s.Ciphertext),
		IV:  base64.StdEncoding.EncodeToString(s.IV),
		Tag: base64.StdEncoding.EncodeToString(s.Tag),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// formatNumber renders v as a canonical decimal string. Integers keep their
// exact value, floats use the shortest representation that round-trips.
// The Go type is not kept: an integral float such as 3.0 is written as "3"
// and reads back as int64(3).
func formatNumber(v any) (string, error) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), nil
	case int8:
		return strconv.FormatInt(int64(n), 10), nil
	case int16:
		return strconv.FormatInt(int64(n), 10), nil
	case int32:
		return strconv.FormatInt(int64(n), 10), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case uint:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	case float32:
		return formatFloat(float64(n))
	case float64:
		return formatFloat(n)
	case json.Number:
		return parseAndFormat(n.String())
	case string:
		return parseAndFormat(n)
	}
	return "", fmt.Errorf("unsupported numeric value of type %T", v)
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func parseAndFormat(s string) (string, error) {
	n, err := parseNumber(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return formatNumber(n)
}

// parseNumber returns an int64 when s is integral, a uint64 for integers
// above math.MaxInt64, else a float64.
func parseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %q", s)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), nil
	}
	return f, nil
}
