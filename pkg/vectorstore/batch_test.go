package vectorstore_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/inflect-gtm/inflect/pkg/vectorstore"
	"github.com/m-mizutani/gt"
)

func TestLoadBatchMapping(t *testing.T) {
	docs, err := vectorstore.LoadBatch(strings.NewReader(`
documents:
  - text: Slack integration FAQ
    metadata:
      source: faq
      year: 2024
  - Pricing tiers overview
`))
	gt.NoError(t, err)
	gt.A(t, docs).Length(2)
	gt.Equal(t, docs[0].Text, "Slack integration FAQ")
	gt.Equal(t, docs[0].Metadata["source"], any("faq"))
	gt.Equal(t, docs[0].Metadata["year"], any(2024))
	gt.Equal(t, docs[1].Text, "Pricing tiers overview")
	gt.Equal(t, len(docs[1].Metadata), 0)
}

func TestLoadBatchSequence(t *testing.T) {
	docs, err := vectorstore.LoadBatch(strings.NewReader("- first\n- text: second\n"))
	gt.NoError(t, err)
	gt.A(t, docs).Length(2)
	gt.Equal(t, docs[1].Text, "second")
}

func TestLoadBatchEmptyText(t *testing.T) {
	_, err := vectorstore.LoadBatch(strings.NewReader("- text: \"  \"\n"))
	gt.True(t, errors.Is(err, vectorstore.ErrEmptyDocument))
}

func TestLoadBatchEmptyInput(t *testing.T) {
	docs, err := vectorstore.LoadBatch(strings.NewReader(""))
	gt.NoError(t, err)
	gt.A(t, docs).Length(0)
}

func TestLoadBatchScalar(t *testing.T) {
	_, err := vectorstore.LoadBatch(strings.NewReader("just a string"))
	gt.Error(t, err)
}
