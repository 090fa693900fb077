package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	apperrors "indexer/pkg/errors"
)

// QuoteHelper is the only function registered on document templates.
const QuoteHelper = "maybeQuote"

// Transformer renders a record through one pre-compiled template. It is
// read-only after construction and safe for concurrent use.
type Transformer struct {
	tmpl *template.Template
	name string
}

func NewTransformer(name, text string) (*Transformer, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(template.FuncMap{QuoteHelper: MaybeQuote}).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}
	return &Transformer{tmpl: tmpl, name: name}, nil
}

// LoadTransformer reads the template source from fs.
func LoadTransformer(fs billy.Filesystem, path, name string) (*Transformer, error) {
	text, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	return NewTransformer(name, string(text))
}

func (t *Transformer) Name() string {
	return t.name
}

func (t *Transformer) Transform(record string) (string, error) {
	data, err := decodeRecord(record)
	if err != nil {
		return "", apperrors.ErrTransform.WithCause(err)
	}

	var out strings.Builder
	if err := t.tmpl.ExecuteTemplate(&out, t.name, data); err != nil {
		return "", apperrors.ErrTransform.WithCause(fmt.Errorf("render: %w", err))
	}

	doc := out.String()
	if !json.Valid([]byte(doc)) {
		return "", apperrors.ErrTransform.WithCause(errors.New("rendered document is not valid JSON"))
	}
	return doc, nil
}

// decodeRecord keeps numbers as json.Number so their text survives rendering.
func decodeRecord(record string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(record))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if data == nil {
		return nil, errors.New("record is not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after record")
	}
	return data, nil
}
