package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathro/autotransform/internal/config"
)

var registerFakesOnce sync.Once

// registerFakes adds the fake components to the registries for bundle tests.
func registerFakes() {
	registerFakesOnce.Do(func() {
		RegisterInput("fake_input", func(data json.RawMessage) (Input, error) {
			var f fakeInput
			err := json.Unmarshal(data, &f)
			return &f, err
		})
		RegisterFilter("fake_prefix_filter", func(data json.RawMessage) (Filter, error) {
			var f prefixFilter
			err := json.Unmarshal(data, &f)
			return &f, err
		})
		RegisterBatcher("fake_single_batcher", func(data json.RawMessage) (Batcher, error) {
			var b singleFakeBatcher
			err := json.Unmarshal(data, &b)
			return &b, err
		})
		RegisterTransformer("fake_transformer", func(data json.RawMessage) (Transformer, error) {
			var tr recordingTransformer
			err := json.Unmarshal(data, &tr)
			return &tr, err
		})
		RegisterValidator("fake_validator", func(data json.RawMessage) (Validator, error) {
			var v staticValidator
			err := json.Unmarshal(data, &v)
			return &v, err
		})
		RegisterCommand("fake_command", func(data json.RawMessage) (Command, error) {
			var c recordingCommand
			err := json.Unmarshal(data, &c)
			return &c, err
		})
		RegisterRepo("fake_repo", func(data json.RawMessage) (Repo, error) {
			var r fakeRepo
			err := json.Unmarshal(data, &r)
			return &r, err
		})
	})
}

func TestEncodeComponent_InjectsName(t *testing.T) {
	encoded, err := EncodeComponent(&prefixFilter{Prefix: "src/"})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(encoded, &m))
	assert.Equal(t, "fake_prefix_filter", m["name"])
	assert.Equal(t, "src/", m["prefix"])
}

func TestDecode_UnknownNameIsConfigError(t *testing.T) {
	registerFakes()
	_, err := DecodeFilter(json.RawMessage(`{"name":"no_such_filter"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestDecode_MissingNameIsConfigError(t *testing.T) {
	registerFakes()
	_, err := DecodeInput(json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestComponent_BundleRoundTrip(t *testing.T) {
	registerFakes()

	original := &prefixFilter{Prefix: "src/", Inverted: true}
	encoded, err := EncodeComponent(original)
	require.NoError(t, err)

	decoded, err := DecodeFilter(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestSchema_BundleRoundTrip(t *testing.T) {
	registerFakes()

	s := &Schema{
		Input:       &fakeInput{Keys: []string{"a", "b"}},
		Filters:     []Filter{&prefixFilter{Prefix: "a"}},
		Batcher:     &singleFakeBatcher{Title: "t"},
		Transformer: &recordingTransformer{Data: "d"},
		Validators:  []Validator{&staticValidator{Level: ValidationLevelNone}},
		Commands:    []Command{&recordingCommand{Pre: true}},
		Repo:        &fakeRepo{Changed: true},
		Config: SchemaConfig{
			SchemaName:             "RoundTrip",
			AllowedValidationLevel: ValidationLevelWarning,
			MaxSubmissions:         3,
			Owners:                 []string{"team-a"},
		},
	}

	bundle, err := s.Bundle()
	require.NoError(t, err)

	decoded, err := FromBundle(bundle)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	// Equal bundles encode identically.
	bundle2, err := decoded.Bundle()
	require.NoError(t, err)
	assert.JSONEq(t, string(bundle), string(bundle2))
}

func TestSchema_FromBundle_NoRepo(t *testing.T) {
	registerFakes()
	s := testSchema()
	bundle, err := s.Bundle()
	require.NoError(t, err)
	decoded, err := FromBundle(bundle)
	require.NoError(t, err)
	assert.Nil(t, decoded.Repo)
}

func TestSchema_FromBundle_MissingName(t *testing.T) {
	_, err := FromBundle(json.RawMessage(`{"input":{"name":"fake_input"},"batcher":{"name":"fake_single_batcher"},"transformer":{"name":"fake_transformer"},"config":{}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestLoadCustomComponents(t *testing.T) {
	registerFakes()

	dir := t.TempDir()
	declarations := `{
		"filters": {
			"src_only": {"name": "fake_prefix_filter", "prefix": "src/"}
		}
	}`
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, CustomComponentsFileName), []byte(declarations), 0o644))
	require.NoError(t, LoadCustomComponents(dir))

	// The custom component decodes with its preset attributes.
	f, err := DecodeFilter(json.RawMessage(`{"name":"custom/src_only"}`))
	require.NoError(t, err)
	assert.Equal(t, &prefixFilter{Prefix: "src/"}, f)

	// Instance attributes override preset ones.
	f, err = DecodeFilter(json.RawMessage(`{"name":"custom/src_only","inverted":true}`))
	require.NoError(t, err)
	assert.Equal(t, &prefixFilter{Prefix: "src/", Inverted: true}, f)
}

func TestLoadCustomComponents_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadCustomComponents(t.TempDir()))
	assert.NoError(t, LoadCustomComponents(""))
}

func TestValidationLevel(t *testing.T) {
	assert.True(t, ValidationLevelError.Exceeds(ValidationLevelWarning))
	assert.True(t, ValidationLevelWarning.Exceeds(ValidationLevelNone))
	assert.False(t, ValidationLevelNone.Exceeds(ValidationLevelNone))
	assert.False(t, ValidationLevelWarning.Exceeds(ValidationLevelError))

	var lvl ValidationLevel
	require.NoError(t, json.Unmarshal([]byte(`"warning"`), &lvl))
	assert.Equal(t, ValidationLevelWarning, lvl)
	require.NoError(t, json.Unmarshal([]byte(`2`), &lvl))
	assert.Equal(t, ValidationLevelError, lvl)
	assert.Error(t, json.Unmarshal([]byte(`"bogus"`), &lvl))
}
