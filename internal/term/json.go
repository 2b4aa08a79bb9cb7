package term

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidJSON = errors.New("invalid term json")

// Encode converts t to its tagged JSON-compatible form:
//
//	{"kind":"atom","name":"a"}
//	{"kind":"var","name":"X"}
//	{"kind":"struct","name":"f","args":[...]}
//	{"kind":"list","elements":[...]}
func Encode(t Term) any {
	switch x := t.(type) {
	case Atom:
		return map[string]any{"kind": string(KindAtom), "name": x.Name}
	case Variable:
		return map[string]any{"kind": string(KindVariable), "name": x.Name}
	case Struct:
		return map[string]any{"kind": string(KindStruct), "name": x.Name, "args": encodeSlice(x.Args)}
	case List:
		return map[string]any{"kind": string(KindList), "elements": encodeSlice(x.Elements)}
	}
	return nil
}

func encodeSlice(terms []Term) []any {
	out := make([]any, len(terms))
	for i, t := range terms {
		out[i] = Encode(t)
	}
	return out
}

// JSONToTerm decodes a value produced by encoding/json (maps, slices,
// strings) into a Term. A bare string decodes to an Atom and a bare array to
// a List; tagged objects decode to their kind. Every other shape is an error.
func JSONToTerm(v any) (Term, error) {
	return decodeValue(v, "$")
}

func decodeValue(v any, path string) (Term, error) {
	switch x := v.(type) {
	case string:
		return Atom{Name: x}, nil
	case []any:
		elems, err := decodeSlice(x, path)
		if err != nil {
			return nil, err
		}
		return List{Elements: elems}, nil
	case map[string]any:
		return decodeObject(x, path)
	case nil:
		return nil, fmt.Errorf("%w: null at %s", ErrInvalidJSON, path)
	default:
		return nil, fmt.Errorf("%w: unsupported %T at %s", ErrInvalidJSON, v, path)
	}
}

func decodeObject(obj map[string]any, path string) (Term, error) {
	kind, _ := obj["kind"].(string)
	name, hasName := obj["name"].(string)

	switch Kind(kind) {
	case KindAtom:
		if !hasName {
			return nil, fmt.Errorf("%w: atom without name at %s", ErrInvalidJSON, path)
		}
		return Atom{Name: name}, nil
	case KindVariable:
		if !hasName || name == "" {
			return nil, fmt.Errorf("%w: variable without name at %s", ErrInvalidJSON, path)
		}
		return Variable{Name: name}, nil
	case KindStruct:
		if !hasName || name == "" {
			return nil, fmt.Errorf("%w: struct without name at %s", ErrInvalidJSON, path)
		}
		raw, ok := obj["args"]
		if !ok {
			return Struct{Name: name, Args: []Term{}}, nil
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: struct args must be an array at %s", ErrInvalidJSON, path)
		}
		args, err := decodeSlice(items, path+"."+name)
		if err != nil {
			return nil, err
		}
		return Struct{Name: name, Args: args}, nil
	case KindList:
		raw, ok := obj["elements"]
		if !ok {
			return List{Elements: []Term{}}, nil
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: list elements must be an array at %s", ErrInvalidJSON, path)
		}
		elems, err := decodeSlice(items, path)
		if err != nil {
			return nil, err
		}
		return List{Elements: elems}, nil
	case "":
		return nil, fmt.Errorf("%w: object without kind at %s", ErrInvalidJSON, path)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q at %s", ErrInvalidJSON, kind, path)
	}
}

func decodeSlice(items []any, path string) ([]Term, error) {
	out := make([]Term, len(items))
	for i, item := range items {
		t, err := decodeValue(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// Value wraps a Term so it can be embedded in JSON documents.
type Value struct {
	Term Term
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Term == nil {
		return []byte("null"), nil
	}
	return json.Marshal(Encode(v.Term))
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if raw == nil {
		v.Term = nil
		return nil
	}
	t, err := JSONToTerm(raw)
	if err != nil {
		return err
	}
	v.Term = t
	return nil
}
