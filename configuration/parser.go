package configuration

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Version is a major/minor version pair of the form Major.Minor
// Major version upgrades indicate structure or type changes
// Minor version upgrades should be strictly additive
type Version string

// MajorMinorVersion constructs a Version from its Major and Minor components
func MajorMinorVersion(major, minor uint) Version {
	return Version(fmt.Sprintf("%d.%d", major, minor))
}

func (version Version) major() (uint, error) {
	majorPart, _, _ := strings.Cut(string(version), ".")
	major, err := strconv.ParseUint(majorPart, 10, 0)
	return uint(major), err
}

// Major returns the major version portion of a Version
func (version Version) Major() uint {
	major, _ := version.major()
	return major
}

func (version Version) minor() (uint, error) {
	_, minorPart, found := strings.Cut(string(version), ".")
	if !found {
		return 0, fmt.Errorf("version %q has no minor part", string(version))
	}
	minor, err := strconv.ParseUint(minorPart, 10, 0)
	return uint(minor), err
}

// Minor returns the minor version portion of a Version
func (version Version) Minor() uint {
	minor, _ := version.minor()
	return minor
}

// VersionedParseInfo defines how a specific version of a configuration should
// be parsed into the current version
type VersionedParseInfo struct {
	// Version is the version which this parsing information relates to
	Version Version
	// ParseAs defines the type which a configuration file of this version
	// should be parsed into
	ParseAs reflect.Type
	// ConversionFunc defines a method for converting the parsed configuration
	// (of type ParseAs) into the current configuration version
	ConversionFunc func(any) (any, error)
}

type envVar struct {
	name  string
	value string
}

type envVars []envVar

func (a envVars) Len() int           { return len(a) }
func (a envVars) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a envVars) Less(i, j int) bool { return a[i].name < a[j].name }

// Parser can be used to parse a configuration file and environment of a defined
// version into a unified output structure
type Parser struct {
	prefix  string
	mapping map[Version]VersionedParseInfo
	env     envVars
}

// NewParser returns a *Parser with the given environment prefix which handles
// versioned configurations which match the given parseInfos
func NewParser(prefix string, parseInfos []VersionedParseInfo) *Parser {
	p := Parser{prefix: prefix, mapping: make(map[Version]VersionedParseInfo)}

	for _, parseInfo := range parseInfos {
		p.mapping[parseInfo.Version] = parseInfo
	}

	for _, env := range os.Environ() {
		k, v, _ := strings.Cut(env, "=")
		p.env = append(p.env, envVar{k, v})
	}

	// We must sort the environment variables lexically by name so that
	// more specific variables are applied before less specific ones
	// (i.e. EXTGATEWAY_HTTP before EXTGATEWAY_HTTP_ADDR).
	sort.Sort(p.env)

	return &p
}

// Parse reads in the given []byte and environment and writes the resulting
// configuration into the input v
//
// Environment variables may be used to override configuration parameters other
// than version, following the scheme below:
// v.Abc may be replaced by the value of PREFIX_ABC,
// v.Abc.Xyz may be replaced by the value of PREFIX_ABC_XYZ, and so forth.
// Slice elements are addressed by index: PREFIX_ABC_0_XYZ.
func (p *Parser) Parse(in []byte, v any) error {
	var versionedStruct struct {
		Version Version
	}

	if err := yaml.Unmarshal(in, &versionedStruct); err != nil {
		return err
	}

	parseInfo, ok := p.mapping[versionedStruct.Version]
	if !ok {
		return fmt.Errorf("unsupported version: %q", versionedStruct.Version)
	}

	parseAs := reflect.New(parseInfo.ParseAs)
	err := yaml.Unmarshal(in, parseAs.Interface())
	if err != nil {
		return err
	}

	prefix := strings.ToUpper(p.prefix) + "_"
	for _, envVar := range p.env {
		if !strings.HasPrefix(envVar.name, prefix) {
			continue
		}

		path := strings.Split(strings.TrimPrefix(envVar.name, prefix), "_")
		if err := p.overwriteFields(parseAs, envVar.name, path, envVar.value); err != nil {
			return err
		}
	}

	c, err := parseInfo.ConversionFunc(parseAs.Interface())
	if err != nil {
		return err
	}
	reflect.ValueOf(v).Elem().Set(reflect.Indirect(reflect.ValueOf(c)))
	return nil
}

// overwriteFields replaces configuration values with alternate values
// specified through the environment. Precondition: an empty path slice must
// never be passed in.
func (p *Parser) overwriteFields(v reflect.Value, fullpath string, path []string, payload string) error {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			if !v.CanSet() {
				return fmt.Errorf("cannot set %s: nil pointer", fullpath)
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = reflect.Indirect(v)
	}

	switch v.Kind() {
	case reflect.Struct:
		return p.overwriteStruct(v, fullpath, path, payload)
	case reflect.Map:
		return p.overwriteMap(v, fullpath, path, payload)
	case reflect.Slice:
		return p.overwriteSlice(v, fullpath, path, payload)
	}

	logrus.Warnf("ignoring environment variable %s: %s cannot hold nested values", fullpath, v.Type())
	return nil
}

func (p *Parser) overwriteStruct(v reflect.Value, fullpath string, path []string, payload string) error {
	// Generate case-insensitive map of struct fields
	byUpperCase := make(map[string]int)
	for i := 0; i < v.NumField(); i++ {
		sf := v.Type().Field(i)
		upper := strings.ToUpper(sf.Name)
		if _, present := byUpperCase[upper]; present {
			panic(fmt.Sprintf("field name collision in configuration object: %s", sf.Name))
		}
		byUpperCase[upper] = i
	}

	fieldIndex, present := byUpperCase[path[0]]
	if !present {
		logrus.Warnf("ignoring unrecognized environment variable %s", fullpath)
		return nil
	}
	field := v.Field(fieldIndex)
	sf := v.Type().Field(fieldIndex)

	if len(path) == 1 {
		return setFromPayload(field, payload)
	}

	// If the field is nil, reserve space
	switch sf.Type.Kind() {
	case reflect.Map:
		if field.IsNil() {
			field.Set(reflect.MakeMap(sf.Type))
		}
	case reflect.Ptr:
		if field.IsNil() {
			field.Set(reflect.New(sf.Type.Elem()))
		}
	}

	return p.overwriteFields(field, fullpath, path[1:], payload)
}

func (p *Parser) overwriteMap(m reflect.Value, fullpath string, path []string, payload string) error {
	if m.Type().Key().Kind() != reflect.String {
		logrus.Warnf("ignoring environment variable %s involving map with non-string keys", fullpath)
		return nil
	}

	if m.IsNil() {
		if !m.CanSet() {
			return fmt.Errorf("cannot set %s: nil map", fullpath)
		}
		m.Set(reflect.MakeMap(m.Type()))
	}

	mapKey := reflect.ValueOf(strings.ToLower(path[0])).Convert(m.Type().Key())

	if len(path) == 1 {
		mapValue := reflect.New(m.Type().Elem())
		if err := yaml.Unmarshal([]byte(payload), mapValue.Interface()); err != nil {
			return err
		}
		m.SetMapIndex(mapKey, reflect.Indirect(mapValue))
		return nil
	}

	// Map values are not addressable: work on a copy and store it back.
	elem := reflect.New(m.Type().Elem()).Elem()
	if existing := m.MapIndex(mapKey); existing.IsValid() {
		elem.Set(existing)
	}

	if elem.Kind() == reflect.Interface {
		if elem.IsNil() {
			elem.Set(reflect.ValueOf(map[string]any{}))
		}

		inner := elem.Elem()
		if inner.Kind() != reflect.Map {
			logrus.Warnf("ignoring environment variable %s: %s is not a map", fullpath, inner.Type())
			return nil
		}
		if err := p.overwriteMap(inner, fullpath, path[1:], payload); err != nil {
			return err
		}
	} else if err := p.overwriteFields(elem, fullpath, path[1:], payload); err != nil {
		return err
	}

	m.SetMapIndex(mapKey, elem)
	return nil
}

func (p *Parser) overwriteSlice(s reflect.Value, fullpath string, path []string, payload string) error {
	index, err := strconv.Atoi(path[0])
	if err != nil || index < 0 {
		logrus.Warnf("ignoring environment variable %s: %q is not a valid slice index", fullpath, path[0])
		return nil
	}

	if index >= s.Len() {
		if !s.CanSet() {
			return fmt.Errorf("cannot grow %s", fullpath)
		}
		grown := reflect.MakeSlice(s.Type(), index+1, index+1)
		reflect.Copy(grown, s)
		s.Set(grown)
	}

	if len(path) == 1 {
		return setFromPayload(s.Index(index), payload)
	}

	return p.overwriteFields(s.Index(index), fullpath, path[1:], payload)
}

func setFromPayload(v reflect.Value, payload string) error {
	fieldVal := reflect.New(v.Type())
	if err := yaml.Unmarshal([]byte(payload), fieldVal.Interface()); err != nil {
		return err
	}
	v.Set(reflect.Indirect(fieldVal))
	return nil
}
