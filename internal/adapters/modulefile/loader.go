package modulefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dhd-cli/dhd/internal/domain/module"
)

// Format is the encoding of a module file.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseError reports a module file that could not be read, decoded or
// validated.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse module file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrNoModules is returned by Load when a directory holds no module files.
var ErrNoModules = errors.New("no module files found")

// skipDirs are never searched for module files.
var skipDirs = map[string]bool{
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

var (
	moduleName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	octalMode  = regexp.MustCompile(`^0?[0-7]{3,4}$`)
)

// ValidName reports whether name may be used as a module name.
func ValidName(name string) bool {
	return moduleName.MatchString(name)
}

// Loader discovers and parses module files.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("modname", func(fl validator.FieldLevel) bool {
		return ValidName(fl.Field().String())
	})
	_ = v.RegisterValidation("octalmode", func(fl validator.FieldLevel) bool {
		return octalMode.MatchString(fl.Field().String())
	})
	return &Loader{validate: v}
}

// Load discovers module files under dir and parses them. Files are named
// "module.yaml" (the module takes its directory's name) or
// "<name>.dhd.yaml"; ".yml" and ".toml" work too. Hidden directories and
// build output directories are skipped.
func Load(dir string) ([]module.Module, error) {
	return NewLoader().Load(dir)
}

// Load implements the package-level Load.
func (l *Loader) Load(dir string) ([]module.Module, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoModules)
	}

	mods := make([]module.Module, 0, len(paths))
	for _, p := range paths {
		m, err := l.LoadFile(p)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// Discover returns the module files under dir, sorted by path.
func Discover(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, _, ok := classify(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover modules in %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// classify derives the default module name and format from a file name.
func classify(path string) (string, Format, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)

	var format Format
	switch ext {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".toml":
		format = FormatTOML
	default:
		return "", "", false
	}

	stem := strings.TrimSuffix(base, ext)
	switch {
	case stem == "module":
		return filepath.Base(filepath.Dir(path)), format, true
	case strings.HasSuffix(stem, ".dhd") && len(stem) > len(".dhd"):
		return strings.TrimSuffix(stem, ".dhd"), format, true
	default:
		return "", "", false
	}
}

// LoadFile parses one module file.
func (l *Loader) LoadFile(path string) (module.Module, error) {
	name, format, ok := classify(path)
	if !ok {
		return module.Module{}, &ParseError{Path: path, Err: errors.New("not a module file name")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return module.Module{}, &ParseError{Path: path, Err: err}
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return module.Module{}, &ParseError{Path: path, Err: err}
	}

	m, err := l.Parse(data, format, name, dir)
	if err != nil {
		return module.Module{}, &ParseError{Path: path, Err: err}
	}
	return m, nil
}

// Parse decodes one module document. name is used when the document does
// not set one; dir becomes Module.Dir.
func (l *Loader) Parse(data []byte, format Format, name, dir string) (module.Module, error) {
	var doc document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return module.Module{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return module.Module{}, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return module.Module{}, fmt.Errorf("unsupported format %q", format)
	}

	if err := l.validate.Struct(doc); err != nil {
		return module.Module{}, validationError(err)
	}
	if doc.Name == "" && !moduleName.MatchString(name) {
		return module.Module{}, fmt.Errorf("module name %q derived from the file name is invalid; set name explicitly", name)
	}
	return doc.toModule(name, dir)
}

// validationError flattens validator output into one readable error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "document.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "modname":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid module name", field, fe.Value()))
		case "octalmode":
			msgs = append(msgs, fmt.Sprintf("%s %q is not an octal permission", field, fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a URL", field, fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid module: %s", strings.Join(msgs, "; "))
}
