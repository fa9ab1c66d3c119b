// Copyright (c) 2025 The poold developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is a genesis file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf guesses the format from the file extension, defaulting to json.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// Decode reads a custom genesis in the format.
func Decode(r io.Reader, format Format) (*CustomGenesis, error) {
	var gen CustomGenesis
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&gen); err != nil {
			return nil, errors.Wrap(err, "decode yaml genesis")
		}
	case FormatTOML:
		meta, err := toml.NewDecoder(r).Decode(&gen)
		if err != nil {
			return nil, errors.Wrap(err, "decode toml genesis")
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("decode toml genesis: unknown key %s", undecoded[0])
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&gen); err != nil {
			return nil, errors.Wrap(err, "decode json genesis")
		}
	default:
		return nil, errors.Errorf("unsupported genesis format %q", format)
	}
	return &gen, nil
}

// Encode writes a custom genesis in the format.
func Encode(w io.Writer, gen *CustomGenesis, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(gen); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(gen)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(gen)
	}
	return errors.Errorf("unsupported genesis format %q", format)
}

// Load reads a custom genesis file and creates the genesis from it.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis file")
	}
	gen, err := Decode(bytes.NewReader(data), FormatOf(path))
	if err != nil {
		return nil, err
	}
	return NewCustomNet(gen)
}
