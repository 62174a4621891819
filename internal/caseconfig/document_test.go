package caseconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const template = `# case template
foam:
  system:
    controlDict:
      endTime: 1000 # seconds
      writeInterval: 100
    setFieldsDict:
      regions:
        - box: [0, 0, 0]
          value: 1
        - box: [1, 1, 1]
          value: 2
  constant:
    defaults: &defaults
      nu: 0.01
    transportProperties: *defaults
`

func mustParse(t *testing.T) *Document {
	t.Helper()
	d, err := Parse([]byte(template))
	require.NoError(t, err)
	return d
}

func TestParse_RejectsNonMappingRoot(t *testing.T) {
	_, err := Parse([]byte("- a\n- b\n"))
	require.Error(t, err)

	_, err = Parse([]byte(""))
	require.Error(t, err)

	_, err = Parse([]byte("a: [\n"))
	require.Error(t, err)
}

func TestGet(t *testing.T) {
	d := mustParse(t)

	v, err := d.Get(Keys("foam", "system", "controlDict", "endTime"))
	require.NoError(t, err)
	assert.Equal(t, 1000, v)

	path, err := PathOf("foam", "system", "setFieldsDict", "regions", 1, "value")
	require.NoError(t, err)
	v, err = d.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// Aliases resolve to their anchor.
	v, err = d.Get(Keys("foam", "constant", "transportProperties", "nu"))
	require.NoError(t, err)
	assert.Equal(t, 0.01, v)
}

func TestSet_ReplacesExistingValue(t *testing.T) {
	d := mustParse(t)
	path := Keys("foam", "system", "controlDict", "endTime")

	require.NoError(t, d.Set(path, 1e-5))

	v, err := d.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 1e-5, v)

	out, err := d.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "# seconds", "line comment must survive")
	assert.Contains(t, string(out), "writeInterval: 100")
}

func TestSet_StructuredValue(t *testing.T) {
	d := mustParse(t)
	path, err := PathOf("foam", "system", "setFieldsDict", "regions", 0, "box")
	require.NoError(t, err)

	require.NoError(t, d.Set(path, []any{0.5, 0.5, 0.5}))

	v, err := d.Get(path)
	require.NoError(t, err)
	assert.Equal(t, []any{0.5, 0.5, 0.5}, v)
}

func TestSet_InvalidPaths(t *testing.T) {
	testCases := []struct {
		name    string
		path    KeyPath
		wantErr error
	}{
		{name: "missing key", path: Keys("foam", "system", "fvSchemes"), wantErr: ErrPathNotFound},
		{name: "key into sequence", path: Keys("foam", "system", "setFieldsDict", "regions", "first"), wantErr: ErrPathNotFound},
		{name: "index out of range", path: KeyPath{Key("foam"), Key("system"), Key("setFieldsDict"), Key("regions"), Index(5)}, wantErr: ErrPathNotFound},
		{name: "through a scalar", path: Keys("foam", "system", "controlDict", "endTime", "unit"), wantErr: ErrNotContainer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := mustParse(t)
			before, err := d.Marshal()
			require.NoError(t, err)

			err = d.Set(tc.path, 1)

			require.ErrorIs(t, err, tc.wantErr)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, ScopeSweep, cfgErr.Scope)
			assert.False(t, IsPointScoped(err))

			after, err := d.Marshal()
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after), "failed set must not modify the document")
		})
	}

	d := mustParse(t)
	require.Error(t, d.Set(nil, 1), "empty path")
}

func TestClone_IsIndependent(t *testing.T) {
	d := mustParse(t)
	c := d.Clone()
	nu := Keys("foam", "constant", "transportProperties", "nu")
	end := Keys("foam", "system", "controlDict", "endTime")

	require.NoError(t, c.Apply(
		Override{Path: end, Value: 5},
		Override{Path: nu, Value: 0.02},
	))

	v, err := d.Get(end)
	require.NoError(t, err)
	assert.Equal(t, 1000, v)
	v, err = d.Get(nu)
	require.NoError(t, err)
	assert.Equal(t, 0.01, v, "alias target in the original must be untouched")

	v, err = c.Get(nu)
	require.NoError(t, err)
	assert.Equal(t, 0.02, v)
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	d := mustParse(t)
	err := d.Apply(
		Override{Path: Keys("foam", "system", "controlDict", "endTime"), Value: 1},
		Override{Path: Keys("foam", "nope"), Value: 2},
	)
	require.ErrorIs(t, err, ErrPathNotFound)
	assert.Contains(t, err.Error(), "foam/nope")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.yaml")
	require.NoError(t, os.WriteFile(path, []byte(template), 0o644))

	d, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, d.Validate(Keys("foam", "system")))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
