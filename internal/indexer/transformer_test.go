package indexer

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "indexer/pkg/errors"
)

const recordTemplate = `{"name":{{maybeQuote .title}},"yr":{{maybeQuote .year}}}`

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	tr, err := NewTransformer("record", recordTemplate)
	require.NoError(t, err)
	return tr
}

func TestTransform(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   string
	}{
		{"year retyped", `{"title":"T","year":"2020"}`, `{"name":"T","yr":2020}`},
		{"numbers kept verbatim", `{"title":"T","year":2020.50}`, `{"name":"T","yr":2020.50}`},
		{"object passes through", `{"title":{"en":"T"},"year":"unknown"}`, `{"name":{"en":"T"},"yr":"unknown"}`},
		{"null becomes empty string", `{"title":null,"year":1}`, `{"name":"","yr":1}`},
		{"digit separators stay text", `{"title":"T","year":"1_000"}`, `{"name":"T","yr":"1_000"}`},
		{"trailing whitespace ok", "{\"title\":\"T\",\"year\":1}\n  ", `{"name":"T","yr":1}`},
	}

	tr := newTestTransformer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Transform(tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransform_Failures(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"malformed json", `{"title":`},
		{"array record", `[{"title":"T"}]`},
		{"null record", `null`},
		{"trailing value", `{"title":"T","year":1} {}`},
		{"missing field", `{"title":"T"}`},
		{"invalid output", `{"title":"T","year":"007"}`},
	}

	tr := newTestTransformer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Transform(tt.record)
			assert.ErrorIs(t, err, apperrors.ErrTransform)
		})
	}
}

func TestNewTransformer_ParseError(t *testing.T) {
	_, err := NewTransformer("record", `{"name":{{maybeQuote .title}`)
	assert.Error(t, err)

	_, err = NewTransformer("record", `{"name":{{unknownHelper .title}}}`)
	assert.Error(t, err)
}

func TestLoadTransformer(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "templates/record.json.tmpl", []byte(recordTemplate), 0o644))

	tr, err := LoadTransformer(fs, "templates/record.json.tmpl", "record")
	require.NoError(t, err)
	assert.Equal(t, "record", tr.Name())

	_, err = LoadTransformer(fs, "templates/missing.tmpl", "record")
	assert.Error(t, err)
}
