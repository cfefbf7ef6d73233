package confloader

import (
	"reflect"
	"strings"
)

// KeysOf returns the dotted koanf keys declared by the struct tags of v.
// Nested structs contribute their prefix; untagged fields are skipped.
func KeysOf(v any) []string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	collectKeys(t, "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		// time.Duration and friends are leaves; only plain structs nest.
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			collectKeys(ft, key, keys)
			continue
		}
		*keys = append(*keys, key)
	}
}

// envKey maps a prefix-stripped, lower-cased environment name onto a known
// key. Underscores are ambiguous (separator or part of a key), so the known
// keys win; unknown names fall back to treating every underscore as a dot.
func envKey(name string, known map[string]string) string {
	if key, ok := known[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "_", ".")
}

func indexKeys(keys []string) map[string]string {
	idx := make(map[string]string, len(keys))
	for _, k := range keys {
		idx[strings.ReplaceAll(k, ".", "_")] = k
	}
	return idx
}
