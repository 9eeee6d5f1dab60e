package catalog

import (
	"encoding/binary"
	"testing"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/collision"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testGLTF = `{
	"asset": {"version": "2.0", "generator": "garth-test"},
	"meshes": [
		{"primitives": [{"attributes": {"POSITION": 0, "NORMAL": 2}}]},
		{"primitives": [{"attributes": {"POSITION": 1}}]}
	],
	"nodes": [{}, {}, {}],
	"accessors": [
		{"type": "VEC3", "min": [-1, 0, -1], "max": [1, 2, 1]},
		{"type": "VEC3", "min": [0, -3, 0], "max": [5, 1, 0.5]},
		{"type": "VEC3"}
	]
}`

func glbContainer(jsonDoc []byte) []byte {
	buf := binary.LittleEndian.AppendUint32(nil, glbMagic)
	buf = binary.LittleEndian.AppendUint32(buf, glbVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(glbHeaderLen+glbChunkLen+len(jsonDoc)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(jsonDoc)))
	buf = binary.LittleEndian.AppendUint32(buf, glbChunkJSON)
	return append(buf, jsonDoc...)
}

func TestParseTemplateGLTF(t *testing.T) {
	key := models.AssetKey{Category: "buildings", Name: "house.gltf"}

	template, err := ParseTemplate(key, []byte(testGLTF))
	require.NoError(t, err)
	require.Equal(t, key, template.Key)
	require.Equal(t, "gltf", template.Format)
	require.Equal(t, []byte(testGLTF), template.Payload)
	require.Equal(t, 2, template.MeshCount)
	require.Equal(t, 3, template.NodeCount)
	require.Equal(t, "2.0", template.Attributes["version"])
	require.Equal(t, "garth-test", template.Attributes["generator"])

	// bounds are the union of both position accessors:
	require.Equal(t, collision.Vector3f{X: -1, Y: -3, Z: -1}, template.Bounds.Min)
	require.Equal(t, collision.Vector3f{X: 5, Y: 2, Z: 1}, template.Bounds.Max)
}

func TestParseTemplateGLB(t *testing.T) {
	key := models.AssetKey{Category: "buildings", Name: "house.glb"}
	data := glbContainer([]byte(testGLTF))

	template, err := ParseTemplate(key, data)
	require.NoError(t, err)
	require.Equal(t, "glb", template.Format)
	require.Equal(t, data, template.Payload)
	require.Equal(t, collision.Vector3f{X: 5, Y: 2, Z: 1}, template.Bounds.Max)
}

func TestParseTemplateMalformed(t *testing.T) {
	tests := []struct {
		scenario string
		name     string
		data     []byte
	}{
		{
			scenario: "unsupported extension",
			name:     "house.fbx",
			data:     []byte(testGLTF),
		},
		{
			scenario: "gltf document is not json",
			name:     "house.gltf",
			data:     []byte("{broken"),
		},
		{
			scenario: "gltf document has no asset version",
			name:     "house.gltf",
			data:     []byte(`{"meshes": [], "accessors": []}`),
		},
		{
			scenario: "gltf document has no position bounds",
			name:     "house.gltf",
			data:     []byte(`{"asset": {"version": "2.0"}, "meshes": []}`),
		},
		{
			scenario: "position accessor index out of range",
			name:     "house.gltf",
			data: []byte(`{
				"asset": {"version": "2.0"},
				"meshes": [{"primitives": [{"attributes": {"POSITION": 4}}]}],
				"accessors": []
			}`),
		},
		{
			scenario: "position accessor min/max are not 3d",
			name:     "house.gltf",
			data: []byte(`{
				"asset": {"version": "2.0"},
				"meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
				"accessors": [{"min": [0], "max": [1]}]
			}`),
		},
		{
			scenario: "glb container is truncated",
			name:     "house.glb",
			data:     []byte("glTF"),
		},
		{
			scenario: "glb magic mismatch",
			name:     "house.glb",
			data:     append([]byte("NOPE"), glbContainer([]byte(testGLTF))[4:]...),
		},
		{
			scenario: "glb version is not 2",
			name:     "house.glb",
			data: func() []byte {
				data := glbContainer([]byte(testGLTF))
				binary.LittleEndian.PutUint32(data[4:8], 1)
				return data
			}(),
		},
		{
			scenario: "glb first chunk is not json",
			name:     "house.glb",
			data: func() []byte {
				data := glbContainer([]byte(testGLTF))
				binary.LittleEndian.PutUint32(data[16:20], 0x004E4942)
				return data
			}(),
		},
		{
			scenario: "glb json chunk is truncated",
			name:     "house.glb",
			data: func() []byte {
				data := glbContainer([]byte(testGLTF))
				return data[:len(data)-8]
			}(),
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			key := models.AssetKey{Category: "buildings", Name: test.name}

			_, err := ParseTemplate(key, test.data)
			require.Error(t, err)
			require.True(t, errors.IsType(err, assetcache.ErrTypeMalformed))
		})
	}
}
