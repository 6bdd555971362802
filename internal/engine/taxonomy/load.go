package taxonomy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hejijunhao/amber/internal/model"
)

// ErrInvalidTree is returned when a tree source is malformed or misses a
// required field.
var ErrInvalidTree = errors.New("taxonomy: invalid tree")

// Format is a tree source encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// sourceNode is one declared intent. Every field but Children is required;
// an empty examples list is allowed, a missing one is not.
type sourceNode struct {
	Intent   string         `json:"intent" yaml:"intent" validate:"required"`
	Label    string         `json:"label" yaml:"label" validate:"required"`
	Examples []string       `json:"examples" yaml:"examples" validate:"required"`
	Response model.Response `json:"response" yaml:"response" validate:"required"`
	Children []sourceNode   `json:"children,omitempty" yaml:"children,omitempty" validate:"dive"`
}

type source struct {
	Response model.Response `json:"response" yaml:"response" validate:"required"`
	Children []sourceNode   `json:"children,omitempty" yaml:"children,omitempty" validate:"dive"`
}

var validate = validator.New()

// FormatFor picks the format from a file extension: .yaml and .yml are YAML,
// anything else is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// TopicFor returns the root topic for a source file: its base name without
// extension.
func TopicFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFile reads and parses a tree source. The root topic is the file stem.
func LoadFile(path string) (*model.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}
	return Parse(data, FormatFor(path), TopicFor(path))
}

// Parse builds a tree from source data. The root gets topic, the label
// model.RootLabel and the source's top-level response. Children keep
// declaration order. The returned tree has no embedding cache yet.
func Parse(data []byte, format Format, topic string) (*model.Tree, error) {
	var src source
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &src)
	default:
		err = json.Unmarshal(data, &src)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTree, topic, err)
	}
	if err := validate.Struct(src); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidTree, topic, describe(err))
	}

	t := model.NewTree(topic, src.Response)
	var add func(parent model.NodeID, nodes []sourceNode)
	add = func(parent model.NodeID, nodes []sourceNode) {
		for _, n := range nodes {
			id := t.Add(parent, n.Intent, n.Label, n.Examples, n.Response)
			add(id, n.Children)
		}
	}
	add(t.Root(), src.Children)
	return t, nil
}

// describe flattens validator output into "field is required" phrases.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is %s", strings.TrimPrefix(fe.Namespace(), "source."), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
