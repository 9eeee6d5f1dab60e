package catalog

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/collision"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// GLB container constants, per the glTF 2.0 binary layout.
const (
	glbMagic     = 0x46546C67
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A

	glbHeaderLen = 12
	glbChunkLen  = 8
)

// gltfDocument is the subset of a glTF document the server reads. Position
// accessors carry min and max, which is where model bounds come from.
type gltfDocument struct {
	Asset struct {
		Version   string `json:"version"`
		Generator string `json:"generator"`
	} `json:"asset"`

	Meshes []struct {
		Primitives []struct {
			Attributes map[string]int `json:"attributes"`
		} `json:"primitives"`
	} `json:"meshes"`

	Nodes []json.RawMessage `json:"nodes"`

	Accessors []struct {
		Min []float32 `json:"min"`
		Max []float32 `json:"max"`
	} `json:"accessors"`
}

// ParseTemplate parses raw .glb or .gltf bytes into an asset template.
// Structural violations yield ErrTypeMalformed errors.
func ParseTemplate(key models.AssetKey, data []byte) (*models.AssetTemplate, error) {
	var (
		format string
		doc    []byte
		err    error
	)

	switch strings.ToLower(filepath.Ext(key.Name)) {
	case ".glb":
		format = "glb"
		doc, err = glbJSON(key, data)
		if err != nil {
			return nil, err
		}

	case ".gltf":
		format = "gltf"
		doc = data

	default:
		return nil, errors.New("unsupported asset format").
			WithType(assetcache.ErrTypeMalformed).
			WithTag("asset", key.ID())
	}

	var gltf gltfDocument
	if err := json.Unmarshal(doc, &gltf); err != nil {
		return nil, errors.New("decoding gltf document failed").
			WithType(assetcache.ErrTypeMalformed).
			WithTag("asset", key.ID()).
			Wrap(err)
	}

	if gltf.Asset.Version == "" {
		return nil, errors.New("gltf document has no asset version").
			WithType(assetcache.ErrTypeMalformed).
			WithTag("asset", key.ID())
	}

	bounds, err := positionBounds(key, gltf)
	if err != nil {
		return nil, err
	}

	attributes := map[string]string{
		"version": gltf.Asset.Version,
	}
	if gltf.Asset.Generator != "" {
		attributes["generator"] = gltf.Asset.Generator
	}

	return &models.AssetTemplate{
		Key:        key,
		Format:     format,
		Payload:    data,
		Bounds:     bounds,
		MeshCount:  len(gltf.Meshes),
		NodeCount:  len(gltf.Nodes),
		Attributes: attributes,
	}, nil
}

// glbJSON extracts the JSON chunk from a GLB container.
func glbJSON(key models.AssetKey, data []byte) ([]byte, error) {
	malformed := func(msg string) error {
		return errors.New(msg).
			WithType(assetcache.ErrTypeMalformed).
			WithTag("asset", key.ID())
	}

	if len(data) < glbHeaderLen+glbChunkLen {
		return nil, malformed("glb container is truncated")
	}

	if binary.LittleEndian.Uint32(data[0:4]) != glbMagic {
		return nil, malformed("glb magic mismatch")
	}

	if version := binary.LittleEndian.Uint32(data[4:8]); version != glbVersion {
		return nil, malformed("unsupported glb version")
	}

	if length := binary.LittleEndian.Uint32(data[8:12]); int64(length) > int64(len(data)) {
		return nil, malformed("glb container is shorter than its declared length")
	}

	chunkLen := binary.LittleEndian.Uint32(data[12:16])
	if binary.LittleEndian.Uint32(data[16:20]) != glbChunkJSON {
		return nil, malformed("first glb chunk is not JSON")
	}

	start := glbHeaderLen + glbChunkLen
	end := int64(start) + int64(chunkLen)
	if end > int64(len(data)) {
		return nil, malformed("glb JSON chunk is truncated")
	}

	return data[start:end], nil
}

// positionBounds unions the min/max of every accessor referenced as a
// POSITION attribute.
func positionBounds(key models.AssetKey, gltf gltfDocument) (collision.Volume, error) {
	var (
		bounds collision.Volume
		found  bool
	)

	for _, mesh := range gltf.Meshes {
		for _, primitive := range mesh.Primitives {
			idx, ok := primitive.Attributes["POSITION"]
			if !ok {
				continue
			}
			if idx < 0 || idx >= len(gltf.Accessors) {
				return collision.Volume{}, errors.New("position accessor index out of range").
					WithType(assetcache.ErrTypeMalformed).
					WithTag("asset", key.ID())
			}

			accessor := gltf.Accessors[idx]
			if len(accessor.Min) != 3 || len(accessor.Max) != 3 {
				return collision.Volume{}, errors.New("position accessor has no 3d min/max").
					WithType(assetcache.ErrTypeMalformed).
					WithTag("asset", key.ID())
			}

			volume := collision.NewVolume(
				collision.Vector3f{X: accessor.Min[0], Y: accessor.Min[1], Z: accessor.Min[2]},
				collision.Vector3f{X: accessor.Max[0], Y: accessor.Max[1], Z: accessor.Max[2]},
			)

			if !found {
				bounds = volume
				found = true
				continue
			}
			bounds = bounds.Union(volume)
		}
	}

	if !found {
		return collision.Volume{}, errors.New("gltf document has no position bounds").
			WithType(assetcache.ErrTypeMalformed).
			WithTag("asset", key.ID())
	}
	return bounds, nil
}
