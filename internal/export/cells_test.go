package export

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_Unmarshal(t *testing.T) {
	t.Run("single string", func(t *testing.T) {
		var s Source
		require.NoError(t, json.Unmarshal([]byte(`"# Heading\n"`), &s))
		assert.Equal(t, Source("# Heading\n"), s)
	})

	t.Run("line list", func(t *testing.T) {
		var s Source
		require.NoError(t, json.Unmarshal([]byte(`["line one\n", "line two"]`), &s))
		assert.Equal(t, Source("line one\nline two"), s)
	})

	t.Run("neither", func(t *testing.T) {
		var s Source
		assert.Error(t, json.Unmarshal([]byte(`{"x": 1}`), &s))
	})
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument(json.RawMessage(`{
		"cells": [{"cell_type": "markdown", "source": "# Hi"}],
		"metadata": {"name": "My Narrative", "creator": "alice"}
	}`), 43666)
	require.NoError(t, err)
	assert.Equal(t, 43666, doc.Metadata.WsID)
	assert.Equal(t, "My Narrative", doc.Metadata.Name)
	require.Len(t, doc.Cells, 1)
	assert.Equal(t, "markdown", doc.Cells[0].CellType)
}

func TestIsUPA(t *testing.T) {
	assert.True(t, isUPA("43666/7/1"))
	assert.False(t, isUPA("43666/7"))
	assert.False(t, isUPA("[43666]/7/1"))
	assert.False(t, isUPA("43666/7/1/2"))
	assert.False(t, isUPA("genome_name"))
}

func TestDeserializeUPA(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"43666/7/1", "43666/7/1"},
		{"[99]/7/1", "678/7/1"},
		{"[99]/7", "678/7"},
		{"7/1", ""},
		{"object_name", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, deserializeUPA(tc.in, 678), "input %q", tc.in)
	}
}

func TestDataCellRef(t *testing.T) {
	t.Run("nil meta", func(t *testing.T) {
		assert.Empty(t, dataCellRef(nil, 678))
	})

	t.Run("upas entry wins", func(t *testing.T) {
		meta := &dataCellMeta{
			UPAs:       map[string]string{"id": "[678]/7/1"},
			ObjectInfo: &dataObjectInfo{Ref: "1/2/3"},
		}
		assert.Equal(t, "678/7/1", dataCellRef(meta, 678))
	})

	t.Run("object info ref", func(t *testing.T) {
		meta := &dataCellMeta{ObjectInfo: &dataObjectInfo{Ref: "678/4/2"}}
		assert.Equal(t, "678/4/2", dataCellRef(meta, 678))
	})

	t.Run("object info parts", func(t *testing.T) {
		meta := &dataCellMeta{ObjectInfo: &dataObjectInfo{WsIDAlt: 678, ID: 4, Version: 2}}
		assert.Equal(t, "678/4/2", dataCellRef(meta, 678))
	})

	t.Run("object info without version", func(t *testing.T) {
		meta := &dataCellMeta{ObjectInfo: &dataObjectInfo{WsID: 678, ID: 4}}
		assert.Equal(t, "678/4", dataCellRef(meta, 678))
	})

	t.Run("nothing resolvable", func(t *testing.T) {
		meta := &dataCellMeta{UPAs: map[string]string{"id": "not_a_ref"}}
		assert.Empty(t, dataCellRef(meta, 678))
	})
}

func TestCellIcon(t *testing.T) {
	t.Run("data cell", func(t *testing.T) {
		meta := &kbMeta{Type: KindData, DataCell: &dataCellMeta{
			ObjectInfo: &dataObjectInfo{TypeName: "Genome"},
		}}
		icon := cellIcon(meta, "")
		assert.Equal(t, "#3F51B5", icon.Color)
	})

	t.Run("app cell with custom icon", func(t *testing.T) {
		meta := &kbMeta{Type: KindApp, AppCell: &appCellMeta{}}
		meta.AppCell.App.Spec.Info.Icon.URL = "img/app.png"
		icon := cellIcon(meta, "https://nms.example/images/")
		assert.Equal(t, "image", icon.Kind)
		assert.Equal(t, "https://nms.example/images/img/app.png", icon.Icon)
	})

	t.Run("app cell without icon falls back", func(t *testing.T) {
		meta := &kbMeta{Type: KindApp, AppCell: &appCellMeta{}}
		icon := cellIcon(meta, "https://nms.example/images/")
		assert.Equal(t, "fa-cube", icon.Icon)
		assert.Equal(t, "#673ab7", icon.Color)
	})

	t.Run("output cell", func(t *testing.T) {
		icon := cellIcon(&kbMeta{Type: KindOutput}, "")
		assert.Equal(t, "fa-arrow-right", icon.Icon)
		assert.Equal(t, "silver", icon.Color)
	})

	t.Run("unknown type", func(t *testing.T) {
		icon := cellIcon(&kbMeta{Type: "widget"}, "")
		assert.Equal(t, "fa-question-circle-o", icon.Icon)
	})
}

func TestParseKBMeta(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		meta, ok, err := parseKBMeta(nil)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, meta)
	})

	t.Run("present", func(t *testing.T) {
		meta, ok, err := parseKBMeta(json.RawMessage(`{"type": "app", "attributes": {"title": "Assemble"}}`))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, KindApp, meta.Type)
		assert.Equal(t, "Assemble", meta.Attributes.Title)
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := parseKBMeta(json.RawMessage(`"not an object"`))
		assert.Error(t, err)
	})
}
