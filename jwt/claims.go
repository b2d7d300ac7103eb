package jwt

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// maxNumericDate is 9999-12-31T23:59:59Z in seconds since epoch,
// exp, nbf and iat must be within [-maxNumericDate, maxNumericDate]
const maxNumericDate = 253402300799

// Registered claim names
const (
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimID        = "jti"
)

// ClaimSet is an ordered set of claims.
// Claims are serialized in the order they were added.
//
// Values are normalized on Set: integers are stored as int64,
// floats as float64, time.Time as int64 seconds since epoch,
// arrays of strings as []string.
// The zero value is not usable, use NewClaimSet.
type ClaimSet struct {
	names  []string
	values map[string]any
}

// NewClaimSet returns empty claim set
func NewClaimSet() *ClaimSet {
	return &ClaimSet{
		values: map[string]any{},
	}
}

// Set adds or replaces the claim.
// A replaced claim keeps its position.
func (c *ClaimSet) Set(name string, value any) error {
	if name == "" {
		return errorf(ErrInvalidClaim, "claim name must not be empty")
	}
	v, err := normalizeClaim(name, value)
	if err != nil {
		return err
	}
	if _, ok := c.values[name]; !ok {
		c.names = append(c.names, name)
	}
	c.values[name] = v
	return nil
}

// MustSet adds the claim and panics on error,
// it returns the claim set to chain calls
func (c *ClaimSet) MustSet(name string, value any) *ClaimSet {
	if err := c.Set(name, value); err != nil {
		logger.Panicf("unable to set claim: %+v", err)
	}
	return c
}

// Get returns the claim value
func (c *ClaimSet) Get(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Has returns true if the claim is present
func (c *ClaimSet) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Delete removes the claim
func (c *ClaimSet) Delete(name string) {
	if _, ok := c.values[name]; !ok {
		return
	}
	delete(c.values, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}
}

// Names returns claim names in order
func (c *ClaimSet) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of claims
func (c *ClaimSet) Len() int {
	return len(c.names)
}

// Clone returns a copy of the claim set
func (c *ClaimSet) Clone() *ClaimSet {
	cp := &ClaimSet{
		names:  c.Names(),
		values: make(map[string]any, len(c.values)),
	}
	for k, v := range c.values {
		cp.values[k] = cloneValue(v)
	}
	return cp
}

// Merge sets all claims from other, in the order of other
func (c *ClaimSet) Merge(other *ClaimSet) {
	if other == nil {
		return
	}
	for _, name := range other.names {
		if _, ok := c.values[name]; !ok {
			c.names = append(c.names, name)
		}
		c.values[name] = cloneValue(other.values[name])
	}
}

// Map returns a copy of the claims as map
func (c *ClaimSet) Map() map[string]any {
	m := make(map[string]any, len(c.values))
	for k, v := range c.values {
		m[k] = cloneValue(v)
	}
	return m
}

// To converts the claims to the value pointed to by v.
func (c *ClaimSet) To(val any) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return errors.WithStack(err)
	}

	d := json.NewDecoder(bytes.NewReader(raw))
	if err := d.Decode(val); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Marshal returns JSON encoded string
func (c *ClaimSet) Marshal() string {
	raw, _ := json.Marshal(c)
	return string(raw)
}

// String returns the named claim as a string,
// scalar values are formatted
func (c *ClaimSet) String(name string) string {
	switch tv := c.values[name].(type) {
	case string:
		return tv
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	default:
		return ""
	}
}

// Int returns the named claim as int64,
// the bool result is false if the claim is missing or not an integer
func (c *ClaimSet) Int(name string) (int64, bool) {
	switch tv := c.values[name].(type) {
	case int64:
		return tv, true
	case float64:
		if tv == math.Trunc(tv) && math.Abs(tv) < math.MaxInt64 {
			return int64(tv), true
		}
	case string:
		i, err := strconv.ParseInt(tv, 10, 64)
		if err == nil {
			return i, true
		}
	}
	return 0, false
}

// Bool returns the named claim as bool
func (c *ClaimSet) Bool(name string) bool {
	b, _ := c.values[name].(bool)
	return b
}

// Time returns the named claim as time,
// or nil if the claim is not a number of seconds since epoch
func (c *ClaimSet) Time(name string) *time.Time {
	var t time.Time
	switch tv := c.values[name].(type) {
	case int64:
		t = time.Unix(tv, 0)
	case float64:
		t = time.Unix(int64(tv), 0)
	default:
		return nil
	}
	return &t
}

// Strings returns the named claim as a list of strings,
// a single string is returned as a list with one element
func (c *ClaimSet) Strings(name string) []string {
	switch tv := c.values[name].(type) {
	case string:
		return []string{tv}
	case []string:
		return append(make([]string, 0, len(tv)), tv...)
	}
	return nil
}

// Issuer returns "iss" claim
func (c *ClaimSet) Issuer() string {
	return c.String(ClaimIssuer)
}

// Subject returns "sub" claim
func (c *ClaimSet) Subject() string {
	return c.String(ClaimSubject)
}

// ID returns "jti" claim
func (c *ClaimSet) ID() string {
	return c.String(ClaimID)
}

// Audience returns "aud" claim
func (c *ClaimSet) Audience() []string {
	return c.Strings(ClaimAudience)
}

// ExpiresAt returns "exp" claim
func (c *ClaimSet) ExpiresAt() *time.Time {
	return c.Time(ClaimExpiresAt)
}

// NotBefore returns "nbf" claim
func (c *ClaimSet) NotBefore() *time.Time {
	return c.Time(ClaimNotBefore)
}

// IssuedAt returns "iat" claim
func (c *ClaimSet) IssuedAt() *time.Time {
	return c.Time(ClaimIssuedAt)
}

// MarshalJSON returns JSON object with claims in order
func (c *ClaimSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		v, err := json.Marshal(c.values[name])
		if err != nil {
			return nil, errors.WithMessagef(err, "unable to encode claim %q", name)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML returns mapping node with claims in their order
func (c *ClaimSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range c.names {
		val := &yaml.Node{}
		if err := val.Encode(c.values[name]); err != nil {
			return nil, errors.WithStack(err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			val)
	}
	return node, nil
}

// UnmarshalJSON decodes JSON object, preserving the order of claims.
// Duplicate claim names are rejected.
func (c *ClaimSet) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return errorf(ErrInvalidClaim, "invalid JSON: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errorf(ErrInvalidClaim, "claims must be JSON object")
	}

	cs := NewClaimSet()
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return errorf(ErrInvalidClaim, "invalid JSON: %v", err)
		}
		name, _ := tok.(string)
		if cs.Has(name) {
			return errorf(ErrInvalidClaim, "duplicate claim: %q", name)
		}

		var val any
		if err = dec.Decode(&val); err != nil {
			return errorf(ErrInvalidClaim, "invalid JSON: %v", err)
		}
		if err = cs.Set(name, val); err != nil {
			return err
		}
	}
	if _, err = dec.Token(); err != nil {
		return errorf(ErrInvalidClaim, "invalid JSON: %v", err)
	}
	if _, err = dec.Token(); err != io.EOF {
		return errorf(ErrInvalidClaim, "unexpected data after claims")
	}

	c.names = cs.names
	c.values = cs.values
	return nil
}

func normalizeClaim(name string, value any) (any, error) {
	v, err := normalizeValue(value)
	if err != nil {
		return nil, markf(err, ErrInvalidClaim, "claim %q", name)
	}

	switch name {
	case ClaimIssuer, ClaimSubject, ClaimID:
		if _, ok := v.(string); !ok {
			return nil, errorf(ErrInvalidClaim, "claim %q must be string: %T", name, value)
		}
	case ClaimAudience:
		switch v.(type) {
		case string, []string:
		default:
			return nil, errorf(ErrInvalidClaim, "claim %q must be string or array of strings: %T", name, value)
		}
	case ClaimExpiresAt, ClaimNotBefore, ClaimIssuedAt:
		switch tv := v.(type) {
		case int64:
			if tv > maxNumericDate || tv < -maxNumericDate {
				return nil, errorf(ErrInvalidClaim, "claim %q is out of range: %d", name, tv)
			}
		case float64:
			if tv > maxNumericDate || tv < -maxNumericDate {
				return nil, errorf(ErrInvalidClaim, "claim %q is out of range: %g", name, tv)
			}
			// foreign issuers may use fractional seconds
			v = int64(tv)
		default:
			return nil, errorf(ErrInvalidClaim, "claim %q must be numeric date: %T", name, value)
		}
	}
	return v, nil
}

func normalizeValue(value any) (any, error) {
	switch tv := value.(type) {
	case nil, string, bool, int64:
		return tv, nil
	case int:
		return int64(tv), nil
	case int8:
		return int64(tv), nil
	case int16:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case uint:
		return normalizeUint(uint64(tv))
	case uint8:
		return int64(tv), nil
	case uint16:
		return int64(tv), nil
	case uint32:
		return int64(tv), nil
	case uint64:
		return normalizeUint(tv)
	case float32:
		return normalizeFloat(float64(tv))
	case float64:
		return normalizeFloat(tv)
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i, nil
		}
		f, err := tv.Float64()
		if err != nil {
			return nil, errors.Errorf("invalid number: %s", tv)
		}
		return normalizeFloat(f)
	case time.Time:
		return tv.Unix(), nil
	case *time.Time:
		if tv == nil {
			return nil, nil
		}
		return tv.Unix(), nil
	case []string:
		return append(make([]string, 0, len(tv)), tv...), nil
	case []any:
		list := make([]any, len(tv))
		allStrings := true
		for i, item := range tv {
			n, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			if _, ok := n.(string); !ok {
				allStrings = false
			}
			list[i] = n
		}
		if allStrings {
			strs := make([]string, len(list))
			for i, item := range list {
				strs[i] = item.(string)
			}
			return strs, nil
		}
		return list, nil
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, item := range tv {
			n, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			m[k] = n
		}
		return m, nil
	default:
		return nil, errors.Errorf("unsupported value type: %T", value)
	}
}

func normalizeUint(v uint64) (any, error) {
	if v > math.MaxInt64 {
		return nil, errors.Errorf("integer overflow: %d", v)
	}
	return int64(v), nil
}

func normalizeFloat(v float64) (any, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errors.Errorf("invalid number: %v", v)
	}
	return v, nil
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case []string:
		return append(make([]string, 0, len(tv)), tv...)
	case []any:
		list := make([]any, len(tv))
		for i, item := range tv {
			list[i] = cloneValue(item)
		}
		return list
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, item := range tv {
			m[k] = cloneValue(item)
		}
		return m
	}
	return v
}
