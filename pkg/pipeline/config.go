package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	errs "github.com/matzehuels/rostermap/pkg/errors"
)

// ConfigNames are the file names FindConfig looks for, in order.
var ConfigNames = []string{"rostermap.toml", "rostermap.yaml", "rostermap.yml", "rostermap.json"}

// LoadConfig reads options from a TOML, YAML or JSON file, chosen by
// extension. Relative data paths are resolved against the file's
// directory. Unknown TOML keys are rejected.
func LoadConfig(path string) (Options, error) {
	var o Options
	if err := errs.ValidatePath(path); err != nil {
		return o, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, errs.Wrap(errs.ErrCodeFileNotFound, err, "config %s", path)
		}
		return o, errs.Wrap(errs.ErrCodeInvalidInput, err, "read config %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &o)
		if err != nil {
			return o, errs.Wrap(errs.ErrCodeInvalidFormat, err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return o, errs.New(errs.ErrCodeInvalidFormat, "%s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&o); err != nil {
			return o, errs.Wrap(errs.ErrCodeInvalidFormat, err, "parse %s", path)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return o, errs.Wrap(errs.ErrCodeInvalidFormat, err, "parse %s", path)
		}
	default:
		return o, errs.New(errs.ErrCodeInvalidFormat, "unsupported config format %q (must be .toml, .yaml or .json)", ext)
	}

	o.resolvePaths(filepath.Dir(path))
	return o, nil
}

// FindConfig returns the first of ConfigNames present in dir, or "".
func FindConfig(dir string) string {
	for _, name := range ConfigNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// WriteConfig encodes o as TOML.
func WriteConfig(o Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Options) resolvePaths(dir string) {
	for _, p := range []*string{&o.Data.Members, &o.Data.Territories, &o.Data.Steps, &o.Data.Background} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
