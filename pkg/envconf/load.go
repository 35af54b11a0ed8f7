package envconf

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingRequired = errors.New("missing required environment variable")
	ErrEmptyValue      = errors.New("environment variable must not be empty")
	ErrUnsupportedType = errors.New("unsupported field type")
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load fills dst from the environment. Fields tagged `env:"NAME"` are
// required unless they also carry `envDefault:"value"`; the option
// `env:"NAME,notEmpty"` additionally rejects an empty value. Untagged
// struct fields are walked recursively.
//
// Every field is visited and all problems are returned together, so one
// run reports the complete list of missing or malformed variables.
func Load(dst any) error {
	if dst == nil {
		return errors.New("destination is nil")
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("destination must be a non-nil pointer to a struct")
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.New("destination must point to a struct")
	}

	return errors.Join(loadStruct(v, "")...)
}

type fieldTag struct {
	name       string
	notEmpty   bool
	def        string
	hasDefault bool
}

func parseTag(sf reflect.StructField) (fieldTag, bool) {
	raw := sf.Tag.Get("env")
	if raw == "" || raw == "-" {
		return fieldTag{}, false
	}

	name, opts, _ := strings.Cut(raw, ",")
	tag := fieldTag{name: name}

	for _, opt := range strings.Split(opts, ",") {
		if strings.TrimSpace(opt) == "notEmpty" {
			tag.notEmpty = true
		}
	}

	tag.def, tag.hasDefault = sf.Tag.Lookup("envDefault")

	return tag, true
}

func loadStruct(v reflect.Value, path string) []error {
	var errs []error

	t := v.Type()
	for i := range v.NumField() {
		sf := t.Field(i)
		fv := v.Field(i)

		if !sf.IsExported() {
			continue
		}

		tag, ok := parseTag(sf)
		if !ok {
			errs = append(errs, loadNested(fv, path+sf.Name+".")...)

			continue
		}

		err := loadField(fv, tag)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", path+sf.Name, err))
		}
	}

	return errs
}

// loadNested recurses into struct and pointer-to-struct fields without a
// tag. time.Duration is an int64 and is never walked.
func loadNested(fv reflect.Value, path string) []error {
	switch {
	case fv.Kind() == reflect.Struct && fv.Type() != durationType:
		return loadStruct(fv, path)

	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		return loadStruct(fv.Elem(), path)

	default:
		return nil
	}
}

func loadField(fv reflect.Value, tag fieldTag) error {
	raw, ok := os.LookupEnv(tag.name)
	if !ok {
		if !tag.hasDefault {
			return fmt.Errorf("%w: %s", ErrMissingRequired, tag.name)
		}

		raw = tag.def
	}

	if tag.notEmpty && strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyValue, tag.name)
	}

	err := setValue(fv, raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", tag.name, err)
	}

	return nil
}

//nolint:gocognit,cyclop
func setValue(fv reflect.Value, raw string) error {
	if !fv.CanSet() {
		return fmt.Errorf("field not settable: %w", ErrUnsupportedType)
	}

	// encoding.TextUnmarshaler support
	if fv.CanAddr() {
		u, ok := fv.Addr().Interface().(encoding.TextUnmarshaler)
		if ok {
			err := u.UnmarshalText([]byte(raw))
			if err != nil {
				return fmt.Errorf("unmarshal text: %w", err)
			}

			return nil
		}
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)

		return nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}

		fv.SetBool(b)

		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("parse duration: %w", err)
			}

			fv.SetInt(int64(d))

			return nil
		}

		i, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}

		fv.SetInt(i)

		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse uint: %w", err)
		}

		fv.SetUint(u)

		return nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}

		fv.SetFloat(f)

		return nil
	case reflect.Pointer:
		if fv.IsNil() {
			elem := reflect.New(fv.Type().Elem())

			err := setValue(elem.Elem(), raw)
			if err != nil {
				return fmt.Errorf("parse pointer: %w", err)
			}

			fv.Set(elem)

			return nil
		}

		err := setValue(fv.Elem(), raw)
		if err != nil {
			return fmt.Errorf("parse pointer: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("unsupported type: %w", ErrUnsupportedType)
	}
}
