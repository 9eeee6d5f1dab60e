package models

import (
	"github.com/aukilabs/garth/collision"
	"github.com/aukilabs/garth/messages"
)

// AssetKey identifies one catalog asset. Keys are case sensitive and
// comparable, they are used directly as map and cache keys.
type AssetKey struct {
	Category string
	Name     string
}

// ID is the canonical string form used for filter elements, logs and wire
// payloads.
func (k AssetKey) ID() string {
	return k.Category + "/" + k.Name
}

func (k AssetKey) ToMessage() messages.AssetRef {
	return messages.AssetRef{
		Category: k.Category,
		Name:     k.Name,
	}
}

func AssetKeyFromMessage(ref messages.AssetRef) AssetKey {
	return AssetKey{
		Category: ref.Category,
		Name:     ref.Name,
	}
}

// AssetTemplate is the canonical parsed form of a fetched asset. Cached
// templates are never handed out directly, readers always get a Clone.
type AssetTemplate struct {
	Key        AssetKey
	Format     string
	Payload    []byte
	Bounds     collision.Volume
	MeshCount  int
	NodeCount  int
	Attributes map[string]string
}

// Clone returns a deep copy. The payload and attributes are never aliased
// between the clone and the original.
func (t *AssetTemplate) Clone() *AssetTemplate {
	clone := *t

	if t.Payload != nil {
		clone.Payload = make([]byte, len(t.Payload))
		copy(clone.Payload, t.Payload)
	}

	if t.Attributes != nil {
		clone.Attributes = make(map[string]string, len(t.Attributes))
		for k, v := range t.Attributes {
			clone.Attributes[k] = v
		}
	}

	return &clone
}

// Size is the payload size in bytes.
func (t *AssetTemplate) Size() int {
	return len(t.Payload)
}

func VolumeToMessage(v collision.Volume) messages.Volume {
	return messages.Volume{
		Min: messages.Point{X: v.Min.X, Y: v.Min.Y, Z: v.Min.Z},
		Max: messages.Point{X: v.Max.X, Y: v.Max.Y, Z: v.Max.Z},
	}
}
