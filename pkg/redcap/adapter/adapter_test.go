package adapter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/redcap/pkg/redcap/params"
	"github.com/hashicorp-forge/redcap/pkg/redcap/version"
)

func TestNewBase_Defaults(t *testing.T) {
	a := NewBase(Options{Name: "base", Versions: version.AtLeast(version.New(1, 0, 0))})

	assert.Equal(t, "base", a.Name())
	for _, op := range []Operation{OpVersion, OpExportRecords, OpFileRepository, "anything"} {
		assert.True(t, a.IsOperationAvailable(op), op)
	}

	in := params.Params{"a": "1"}
	assert.Equal(t, in, a.TransformExportParams(in))
	assert.Equal(t, in, a.TransformImportParams(in))
	assert.Empty(t, a.DefaultParams())
}

func TestNewBase_Overrides(t *testing.T) {
	a := NewBase(Options{
		Name:                 "custom",
		IsOperationAvailable: func(op Operation) bool { return op == OpVersion },
		TransformExportParams: func(p params.Params) params.Params {
			p["added"] = "yes"
			return p
		},
	})

	assert.True(t, a.IsOperationAvailable(OpVersion))
	assert.False(t, a.IsOperationAvailable(OpPDF))

	in := params.Params{"a": "1"}
	out := a.TransformExportParams(in)
	assert.Equal(t, "yes", out["added"])
	assert.NotContains(t, in, "added", "transform must not modify its input")

	// Import transform was not overridden.
	assert.Equal(t, in, a.TransformImportParams(in))
}

func TestDefaultRegistry_Select(t *testing.T) {
	r := Default()

	tests := []struct {
		version string
		want    string
		ok      bool
	}{
		{"13.0.0", "", false},
		{"13.99.99", "", false},
		{"0.0.0", "", false},
		{"14.0.0", NameV14, true},
		{"14.5.10", NameV14, true},
		{"14.99.99", NameV14, true},
		{"15.0.0", NameV15, true},
		{"15.9.3", NameV15, true},
		{"16.0.0", NameV16, true},
		{"16.1.2", NameV16, true},
		{"27.0.0", NameV16, true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			v := version.MustParse(tt.version)
			a, ok := r.Select(v)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ok, r.IsSupported(v))
			if tt.ok {
				assert.Equal(t, tt.want, a.Name())
			}
		})
	}
}

func TestDefaultRegistry_ExactlyOneAdapterPerVersion(t *testing.T) {
	r := Default()
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 1000; i++ {
		v := version.New(uint64(rng.Intn(30)), uint64(rng.Intn(20)), uint64(rng.Intn(20)))
		matches := 0
		for _, a := range r.All() {
			if a.Supports(v) {
				matches++
			}
		}
		if v.IsAtLeast(r.MinimumSupported()) {
			assert.Equal(t, 1, matches, v.String())
		} else {
			assert.Equal(t, 0, matches, v.String())
		}
	}
}

func TestDefaultRegistry_Lookup(t *testing.T) {
	r := Default()

	latest := r.Latest()
	assert.Equal(t, NameV16, latest.Name())
	assert.True(t, latest.Versions().IsOpenEnded())

	a, ok := r.GetByName(NameV15)
	require.True(t, ok)
	assert.Equal(t, NameV15, a.Name())

	_, ok = r.GetByName("redcap-9")
	assert.False(t, ok)

	assert.Equal(t, []string{NameV16, NameV15, NameV14}, r.Names())
	assert.Equal(t, version.New(14, 0, 0), r.MinimumSupported())
}

func TestReleases_Features(t *testing.T) {
	v14, v15, v16 := V14(), V15(), V16()

	assert.False(t, v14.Features().FileRepository)
	assert.False(t, v14.IsOperationAvailable(OpFileRepository))
	assert.False(t, v14.IsOperationAvailable(OpProjectSettings))
	assert.True(t, v14.IsOperationAvailable(OpExportRecords))

	assert.True(t, v15.Features().FileRepository)
	assert.True(t, v15.IsOperationAvailable(OpProjectSettings))
	assert.False(t, v15.Features().FileInfo)

	assert.True(t, v16.Features().FileInfo)
	for _, a := range []Adapter{v14, v15, v16} {
		assert.Equal(t, params.Params{"returnFormat": "json"}, a.DefaultParams(), a.Name())
	}
}

func TestDefaultParams_ReturnsCopy(t *testing.T) {
	a := NewBase(Options{
		Name:          "custom",
		DefaultParams: func() params.Params { return params.Params{"x": "1"} },
	})
	p := a.DefaultParams()
	p["x"] = "2"
	assert.Equal(t, "1", a.DefaultParams()["x"])
}

func TestReleases_Transforms(t *testing.T) {
	export := params.Params{"content": "record", "exportBlankForGrayFormStatus": "true"}
	imp := params.Params{"content": "record", "backgroundProcess": "true"}

	assert.NotContains(t, V14().TransformExportParams(export), "exportBlankForGrayFormStatus")
	assert.NotContains(t, V14().TransformImportParams(imp), "backgroundProcess")
	assert.Equal(t, export, V15().TransformExportParams(export))
	assert.Equal(t, imp, V16().TransformImportParams(imp))
}

func TestNewRegistry_Invalid(t *testing.T) {
	v := version.New
	mk := func(name string, r version.Range) Adapter {
		return NewBase(Options{Name: name, Versions: r})
	}

	tests := []struct {
		name     string
		adapters []Adapter
		errMsg   string
	}{
		{
			name:   "empty",
			errMsg: "at least one adapter",
		},
		{
			name: "gap",
			adapters: []Adapter{
				mk("a", version.Between(v(1, 0, 0), v(2, 0, 0))),
				mk("b", version.AtLeast(v(3, 0, 0))),
			},
			errMsg: "gap",
		},
		{
			name: "overlap",
			adapters: []Adapter{
				mk("a", version.Between(v(1, 0, 0), v(2, 5, 0))),
				mk("b", version.AtLeast(v(2, 0, 0))),
			},
			errMsg: "overlaps",
		},
		{
			name: "two open-ended",
			adapters: []Adapter{
				mk("a", version.AtLeast(v(1, 0, 0))),
				mk("b", version.AtLeast(v(2, 0, 0))),
			},
			errMsg: "open-ended",
		},
		{
			name: "newest bounded",
			adapters: []Adapter{
				mk("a", version.Between(v(1, 0, 0), v(2, 0, 0))),
			},
			errMsg: "must be open-ended",
		},
		{
			name: "duplicate names",
			adapters: []Adapter{
				mk("a", version.Between(v(1, 0, 0), v(2, 0, 0))),
				mk("a", version.AtLeast(v(2, 0, 0))),
			},
			errMsg: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.adapters...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewRegistry_OrdersNewestFirst(t *testing.T) {
	r, err := NewRegistry(V14(), V16(), V15())
	require.NoError(t, err)
	assert.Equal(t, []string{NameV16, NameV15, NameV14}, r.Names())
}
