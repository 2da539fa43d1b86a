package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// includeKey is the magic document key naming another config file whose
// values the current file layers on top of.
const includeKey = "#include"

// Document is a parsed config file: global keys at the top level plus
// nested per-target sections keyed by target or template name.
type Document map[string]interface{}

// LoadDocument reads a JSON or YAML config file, resolving #include
// directives recursively. Values in the including file win over included
// ones. Include paths are resolved relative to the including file; a
// cycle is reported as an IncludeError.
func LoadDocument(path string) (Document, error) {
	return loadDocument(path, nil)
}

func loadDocument(path string, chain []string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	for _, seen := range chain {
		if seen == abs {
			return nil, &IncludeError{
				File:  path,
				Chain: chain,
				Err:   fmt.Errorf("include cycle"),
			}
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if len(chain) > 0 {
			return nil, &IncludeError{File: path, Chain: chain, Err: err}
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	doc, err := parseDocument(abs, data)
	if err != nil {
		if len(chain) > 0 {
			return nil, &IncludeError{File: path, Chain: chain, Err: err}
		}
		return nil, err
	}

	includePath, hasInclude, err := includeDirective(doc)
	if err != nil {
		return nil, &IncludeError{File: path, Chain: chain, Err: err}
	}
	stripCommentKeys(doc)
	if !hasInclude {
		return doc, nil
	}

	if !filepath.IsAbs(includePath) {
		includePath = filepath.Join(filepath.Dir(abs), includePath)
	}
	base, err := loadDocument(includePath, append(chain, abs))
	if err != nil {
		return nil, err
	}

	return mergeDocuments(base, doc), nil
}

// parseDocument decodes file contents into a Document. YAML files are
// converted through JSON so both syntaxes yield identical value types.
// An empty file is a valid empty document.
func parseDocument(path string, data []byte) (Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Document{}, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var yamlData map[string]interface{}
		if err := yaml.Unmarshal(data, &yamlData); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		jsonData, err := json.Marshal(yamlData)
		if err != nil {
			return nil, fmt.Errorf("converting YAML config: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(jsonData, &doc); err != nil {
			return nil, fmt.Errorf("converting YAML config: %w", err)
		}
		return doc, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON config: %w", err)
	}
	return doc, nil
}

func includeDirective(doc Document) (string, bool, error) {
	raw, ok := doc[includeKey]
	if !ok {
		return "", false, nil
	}
	path, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("%s value must be a string path", includeKey)
	}
	delete(doc, includeKey)
	return path, true, nil
}

// stripCommentKeys drops top-level keys starting with '#'. Config files
// use them as comments; #include has already been consumed at this point.
func stripCommentKeys(doc Document) {
	for k := range doc {
		if strings.HasPrefix(k, "#") {
			delete(doc, k)
		}
	}
}

// mergeDocuments layers overlay on top of base. Top-level keys from the
// overlay win; nested per-target sections merge key-by-key so an including
// file can override a single option inside an included section.
func mergeDocuments(base, overlay Document) Document {
	out := make(Document, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		overlayMap, overlayIsMap := v.(map[string]interface{})
		baseMap, baseIsMap := out[k].(map[string]interface{})
		if overlayIsMap && baseIsMap {
			merged := make(map[string]interface{}, len(baseMap)+len(overlayMap))
			for bk, bv := range baseMap {
				merged[bk] = bv
			}
			for ok2, ov := range overlayMap {
				merged[ok2] = ov
			}
			out[k] = merged
			continue
		}
		out[k] = v
	}
	return out
}

// Lookup finds a value for a bare option name under an optional section
// key. Both the nested section form ({"cheribsd": {"make-jobs": 4}}) and
// the flat form ({"cheribsd/make-jobs": 4}) are accepted. An explicit
// JSON null counts as absent.
func (d Document) Lookup(section, name string) (interface{}, bool) {
	if d == nil {
		return nil, false
	}
	if section == "" {
		if v, ok := d[name]; ok && v != nil {
			return v, true
		}
		return nil, false
	}
	if nested, ok := d[section].(map[string]interface{}); ok {
		if v, ok := nested[name]; ok && v != nil {
			return v, true
		}
	}
	if v, ok := d[section+"/"+name]; ok && v != nil {
		return v, true
	}
	return nil, false
}
