// Package credentials reads the users file consumed by the authentication
// plugin and turns it into an ordered list of username/password records.
//
// The file is a YAML sequence of mappings:
//
//	- username: alice
//	  password: secret1
//	- username: bob
//	  password: secret2
//
// Both keys are required and must hold non-null scalars. Plain scalars that
// YAML would read as numbers, booleans or timestamps are kept as written, so
// "password: 123456" yields the password "123456". Any other key is ignored.
// Nothing is defaulted.
package credentials

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	keyUsername = "username"
	keyPassword = "password"

	tagString = "!!str"
	tagNull   = "!!null"
)

// textTags are the scalar tags whose source text is taken verbatim.
var textTags = map[string]bool{
	tagString:     true,
	"!!int":       true,
	"!!float":     true,
	"!!bool":      true,
	"!!timestamp": true,
}

// Record is one username/password pair as it appears in the users file.
// Records are treated as immutable once returned.
type Record struct {
	Username string `yaml:"username" json:"username" jsonschema:"required,description=Login name presented by the client"`
	Password string `yaml:"password" json:"password" jsonschema:"required,description=Plain-text password compared byte for byte"`
}

// Load reads the whole file at path and parses it with Parse.
//
// The file handle is not retained. Read failures are reported as a
// *LoadError of KindIO wrapping the *fs.PathError.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Kind: KindIO, Path: path, Err: err}
	}

	records, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return records, nil
}

// Parse decodes a users document. An empty document, a null root or an
// empty sequence yields zero records. Records come back in document order.
func Parse(data []byte) ([]Record, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Kind: KindParse, Err: err}
	}

	root := resolve(&doc)
	if root.Kind == 0 {
		return []Record{}, nil
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return []Record{}, nil
		}
		root = resolve(root.Content[0])
	}

	if root.Kind == yaml.ScalarNode && root.ShortTag() == tagNull {
		return []Record{}, nil
	}
	if root.Kind != yaml.SequenceNode {
		return nil, parseErrorf("line %d: root must be a sequence of users, got %s", root.Line, kindName(root))
	}

	records := make([]Record, 0, len(root.Content))
	for i, item := range root.Content {
		rec, err := parseRecord(i, resolve(item))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(index int, node *yaml.Node) (Record, error) {
	if node.Kind != yaml.MappingNode {
		return Record{}, parseErrorf("user %d (line %d): expected a mapping, got %s", index, node.Line, kindName(node))
	}

	var (
		rec                  Record
		haveUser, havePasswd bool
	)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := resolve(node.Content[i]), resolve(node.Content[i+1])
		if key.Kind != yaml.ScalarNode {
			continue
		}

		switch key.Value {
		case keyUsername:
			if haveUser {
				return Record{}, parseErrorf("user %d (line %d): duplicate key %q", index, key.Line, keyUsername)
			}
			s, err := stringValue(index, keyUsername, value)
			if err != nil {
				return Record{}, err
			}
			rec.Username, haveUser = s, true
		case keyPassword:
			if havePasswd {
				return Record{}, parseErrorf("user %d (line %d): duplicate key %q", index, key.Line, keyPassword)
			}
			s, err := stringValue(index, keyPassword, value)
			if err != nil {
				return Record{}, err
			}
			rec.Password, havePasswd = s, true
		}
	}

	if !haveUser {
		return Record{}, parseErrorf("user %d (line %d): missing required key %q", index, node.Line, keyUsername)
	}
	if !havePasswd {
		return Record{}, parseErrorf("user %d (line %d): missing required key %q", index, node.Line, keyPassword)
	}
	return rec, nil
}

func stringValue(index int, key string, node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode || !textTags[node.ShortTag()] {
		return "", parseErrorf("user %d (line %d): %q must be a scalar value, got %s", index, node.Line, key, kindName(node))
	}
	return node.Value, nil
}

// resolve follows alias nodes to their anchor.
func resolve(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return node.ShortTag()
	case yaml.DocumentNode:
		return "document"
	case yaml.AliasNode:
		return "alias"
	default:
		return "nothing"
	}
}

// Duplicates returns the usernames that appear more than once, in the order
// their first repeat occurs. Folding into a store still keeps the last one.
func Duplicates(records []Record) []string {
	seen := make(map[string]int, len(records))
	var dups []string
	for _, r := range records {
		seen[r.Username]++
		if seen[r.Username] == 2 {
			dups = append(dups, r.Username)
		}
	}
	return dups
}
