package vectorstore

import (
	"io"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

var ErrEmptyDocument = goerr.New("document text is empty")

type batchFile struct {
	Documents []batchEntry `yaml:"documents"`
}

// batchEntry accepts either a bare string or a {text, metadata} mapping
type batchEntry struct {
	model.Document
}

func (e *batchEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.Text)
	}
	return node.Decode(&e.Document)
}

// LoadBatch reads documents for ingestion from YAML. The input is either a
// sequence of entries or a mapping with a "documents" sequence:
//
//	documents:
//	  - text: Slack integration FAQ
//	    metadata: {source: faq}
//	  - Pricing tiers overview
func LoadBatch(r io.Reader) ([]model.Document, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to decode document batch")
	}

	var entries []batchEntry
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&entries); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document list")
		}
	case yaml.MappingNode:
		var f batchFile
		if err := node.Decode(&f); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document batch")
		}
		entries = f.Documents
	default:
		return nil, goerr.New("document batch must be a list or a mapping with documents")
	}

	docs := make([]model.Document, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			return nil, goerr.Wrap(ErrEmptyDocument, "invalid document batch", goerr.V("index", i))
		}
		docs = append(docs, e.Document)
	}
	return docs, nil
}
