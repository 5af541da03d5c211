package config

import "github.com/hyperboot/hyper/errs"

// Cursor is the opaque token returned alongside a Value by GetFirstOneOf
// and GetOneOf; pass it to GetNextOneOf to resume scanning for further
// occurrences of the same key in the same scope (spec §4.1's
// get_next/get_next_one_of).
type Cursor struct {
	key string
	off offset
}

func (c *Config) scan(scope Scope, key string) []offset {
	var offs []offset
	for off := c.scopeHead(scope); off != 0; off = c.entry(off).NextInScope {
		e := c.entry(off)
		if e.Tag == TagValue && e.Key == key {
			offs = append(offs, off)
		}
	}
	return offs
}

// GetOneOf is the unique-lookup flavour: a second occurrence of key in
// scope is a ConfigSemanticError, regardless of type. Absence is
// reported as ok=false with a nil error — the lookup API is the one
// place "absent" is not itself an error (spec §7).
func (c *Config) GetOneOf(scope Scope, key string, mask Type) (Value, Cursor, bool, error) {
	return c.lookup(scope, key, mask, true)
}

// GetFirstOneOf permits duplicate keys and returns the first occurrence.
func (c *Config) GetFirstOneOf(scope Scope, key string, mask Type) (Value, Cursor, bool, error) {
	return c.lookup(scope, key, mask, false)
}

func (c *Config) lookup(scope Scope, key string, mask Type, unique bool) (Value, Cursor, bool, error) {
	offs := c.scan(scope, key)
	if len(offs) == 0 {
		return Value{}, Cursor{}, false, nil
	}
	if unique && len(offs) > 1 {
		return Value{}, Cursor{}, false, errs.New(errs.ConfigSemantic,
			"key %q must be unique within its scope, found %d occurrences", key, len(offs))
	}
	v := c.entry(offs[0]).Value
	if !v.Type.has(mask) {
		return Value{}, Cursor{}, false, errs.New(errs.ConfigSemantic,
			"key %q: expected %s, got %s", key, mask, v.Type)
	}
	return v, Cursor{key: key, off: offs[0]}, true, nil
}

// GetNextOneOf resumes scanning after cur for the next entry sharing
// cur's key. If strict is set, an entry with a non-matching type raises
// a ConfigSemanticError instead of being skipped.
func (c *Config) GetNextOneOf(cur Cursor, mask Type, strict bool) (Value, Cursor, bool, error) {
	off := c.entry(cur.off).NextInScope
	for off != 0 {
		e := c.entry(off)
		if e.Tag == TagValue && e.Key == cur.key {
			if !e.Value.Type.has(mask) {
				if strict {
					return Value{}, cur, false, errs.New(errs.ConfigSemantic,
						"key %q: expected %s, got %s", cur.key, mask, e.Value.Type)
				}
				off = e.NextInScope
				continue
			}
			return e.Value, Cursor{key: cur.key, off: off}, true, nil
		}
		off = e.NextInScope
	}
	return Value{}, cur, false, nil
}

// MandatoryGetOneOf is MANDATORY_GET: absence or a type mismatch is
// always a (fatal-kinded) error; callers hand the error straight to
// errs.Fatal.
func (c *Config) MandatoryGetOneOf(scope Scope, key string, mask Type) (Value, error) {
	v, _, ok, err := c.GetOneOf(scope, key, mask)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, errs.New(errs.ConfigSemantic, "missing mandatory key %q", key)
	}
	return v, nil
}

// The per-type helpers below are the "four flavours" of spec §4.1
// specialized to each Value payload type, built on GetOneOf/GetFirstOneOf.

func (c *Config) GetBool(scope Scope, key string) (bool, bool, error) {
	return getTyped[bool](c, scope, key, TypeBool, true)
}

func (c *Config) GetFirstBool(scope Scope, key string) (bool, bool, error) {
	return getTyped[bool](c, scope, key, TypeBool, false)
}

func (c *Config) GetUnsigned(scope Scope, key string) (uint64, bool, error) {
	return getTyped[uint64](c, scope, key, TypeUnsigned, true)
}

func (c *Config) GetFirstUnsigned(scope Scope, key string) (uint64, bool, error) {
	return getTyped[uint64](c, scope, key, TypeUnsigned, false)
}

func (c *Config) GetSigned(scope Scope, key string) (int64, bool, error) {
	return getTyped[int64](c, scope, key, TypeSigned, true)
}

func (c *Config) GetFirstSigned(scope Scope, key string) (int64, bool, error) {
	return getTyped[int64](c, scope, key, TypeSigned, false)
}

func (c *Config) GetString(scope Scope, key string) (string, bool, error) {
	return getTyped[string](c, scope, key, TypeString, true)
}

func (c *Config) GetFirstString(scope Scope, key string) (string, bool, error) {
	return getTyped[string](c, scope, key, TypeString, false)
}

func (c *Config) GetObject(scope Scope, key string) (Scope, bool, error) {
	return getTyped[Scope](c, scope, key, TypeObject, true)
}

func (c *Config) GetFirstObject(scope Scope, key string) (Scope, bool, error) {
	return getTyped[Scope](c, scope, key, TypeObject, false)
}

func (c *Config) MandatoryGetString(scope Scope, key string) (string, error) {
	v, err := c.MandatoryGetOneOf(scope, key, TypeString)
	if err != nil {
		return "", err
	}
	return v.String, nil
}

// getTyped is the generic backbone for the single-type Get*/GetFirst*
// wrappers: look up key with the given mask, then hand the matched
// Value to Coerce to extract the requested Go type.
func getTyped[T any](c *Config, scope Scope, key string, mask Type, unique bool) (T, bool, error) {
	var zero T
	v, _, ok, err := c.lookup(scope, key, mask, unique)
	if err != nil || !ok {
		return zero, ok, err
	}
	var out T
	if err := Coerce(v, &out); err != nil {
		return zero, false, errs.Wrap(err, "key %q", key)
	}
	return out, true, nil
}
