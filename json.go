// The JSON namespace: stringify and parse over our value model.
// Parsing goes through encoding/json's token stream so that object
// key order is preserved and integers survive the round-trip.

package mildew

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/vm"
)

func (i *Interpreter) buildJSON() *object.Instance {
	return namespace(map[string]object.NativeFn{
		"stringify": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			out, err := jsonStringify(arg(args, 0), 64)
			if err != nil {
				return &object.String{Value: err.Error()}, object.ReturnValueIsException
			}
			return &object.String{Value: out}, object.NoError
		},
		"parse": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			s, ok := arg(args, 0).(*object.String)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			val, err := jsonParse(s.Value)
			if err != nil {
				return &object.String{Value: err.Error()}, object.ReturnValueIsException
			}
			return val, object.NoError
		},
	}, []string{"stringify", "parse"})
}

// jsonStringify renders a cycle-free value; the depth limit is how
// cycles are caught.
func jsonStringify(o object.Object, depth int) (string, error) {
	if depth == 0 {
		return "", fmt.Errorf("JSON.stringify: structure too deep (cyclic?)")
	}

	switch v := o.(type) {
	case *object.Undefined, *object.Null:
		return "null", nil

	case *object.Boolean:
		return strconv.FormatBool(v.Value), nil

	case *object.Integer:
		return strconv.FormatInt(v.Value, 10), nil

	case *object.Double:
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return "null", nil
		}
		return strconv.FormatFloat(v.Value, 'g', -1, 64), nil

	case *object.String:
		quoted, err := json.Marshal(v.Value)
		if err != nil {
			return "", err
		}
		return string(quoted), nil

	case *object.Array:
		parts := make([]string, 0, len(v.Elements))
		for _, e := range v.Elements {
			s, err := jsonStringify(e, depth-1)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "[" + strings.Join(parts, ",") + "]", nil

	case *object.Instance:
		parts := make([]string, 0)
		for _, key := range v.Keys() {
			val, ok := v.GetOwn(key)
			if !ok {
				continue
			}
			if _, isFn := val.(*object.Function); isFn {
				continue
			}
			if _, isUndef := val.(*object.Undefined); isUndef {
				continue
			}
			s, err := jsonStringify(val, depth-1)
			if err != nil {
				return "", err
			}
			quoted, err := json.Marshal(key)
			if err != nil {
				return "", err
			}
			parts = append(parts, string(quoted)+":"+s)
		}
		return "{" + strings.Join(parts, ",") + "}", nil

	default:
		return "", fmt.Errorf("JSON.stringify: cannot serialize a %s", object.TypeOf(o))
	}
}

// jsonParse decodes via the token stream, preserving object key
// order.
func jsonParse(src string) (object.Object, error) {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()

	val, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("JSON.parse: %s", err.Error())
	}

	// Trailing garbage is an error too.
	if dec.More() {
		return nil, fmt.Errorf("JSON.parse: unexpected trailing input")
	}
	return val, nil
}

func parseValue(dec *json.Decoder) (object.Object, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (object.Object, error) {
	switch t := tok.(type) {

	case nil:
		return vm.Null, nil

	case bool:
		return boolObj(t), nil

	case string:
		return &object.String{Value: t}, nil

	case json.Number:
		if n, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return &object.Integer{Value: n}, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return &object.Double{Value: f}, nil

	case json.Delim:
		switch t {
		case '[':
			arr := &object.Array{}
			for dec.More() {
				elem, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Elements = append(arr.Elements, elem)
			}
			// consume the closing bracket
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil

		case '{':
			obj := object.NewInstance(nil)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string")
				}
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				obj.SetField(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}
