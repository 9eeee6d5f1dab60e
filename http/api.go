package http

import (
	"net/http"
	"time"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/catalog"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/garth/snapshot"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

// HandleCatalog serves the scanned model catalog. The catalog is immutable
// once scanned so the response body is marshaled once.
func HandleCatalog(c *catalog.Catalog) http.HandlerFunc {
	payload := struct {
		Settings struct {
			NonBlocking []string `json:"non_blocking"`
			GridSnap    float32  `json:"grid_snap"`
		} `json:"settings"`
		Categories map[string][]string `json:"categories"`
	}{
		Categories: c.All(),
	}
	payload.Settings.NonBlocking = c.Settings.NonBlocking
	payload.Settings.GridSnap = c.Settings.GridSnap

	body, err := json.Marshal(payload)
	if err != nil {
		logs.Error(errors.New("encoding catalog failed").Wrap(err))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if body == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

// HandleAsset serves an asset payload through the shared loader, so HTTP
// downloads populate the same cache and filters as scene resolutions. Every
// request runs under a scratch load identity.
func HandleAsset(loader *assetcache.Loader, ids *models.SequentialIDGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := models.AssetKey{
			Category: r.PathValue("category"),
			Name:     r.PathValue("name"),
		}

		identity := ids.New()
		defer ids.Reuse(identity)

		template, err := loader.Load(r.Context(), key, identity)
		if err != nil {
			switch {
			case errors.IsType(err, assetcache.ErrTypeNotFound):
				http.NotFound(w, r)

			case errors.IsType(err, assetcache.ErrTypeCanceled):
				// The client went away, there is nobody to answer.

			case errors.IsType(err, assetcache.ErrTypeMalformed):
				logs.WithTag("asset", key.ID()).Warn(err)
				w.WriteHeader(http.StatusBadGateway)

			default:
				logs.WithTag("asset", key.ID()).Warn(err)
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		contentType := "model/gltf+json"
		if template.Format == "glb" {
			contentType = "model/gltf-binary"
		}

		w.Header().Set("Content-Type", contentType)
		w.Write(template.Payload)
	}
}

// HandleStats serves the read only diagnostics: loader and cache state plus
// the live scene count.
func HandleStats(loader *assetcache.Loader, scenes *models.SceneStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Loader assetcache.Stats `json:"loader"`
			Scenes int              `json:"scenes"`
		}{
			Loader: loader.Stats(),
			Scenes: scenes.Count(),
		}

		body, err := json.Marshal(payload)
		if err != nil {
			logs.Error(errors.New("encoding stats failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

// HandleSnapshotList serves snapshot summaries, most recent first.
func HandleSnapshotList(store *snapshot.Store) http.HandlerFunc {
	type summary struct {
		ID          string    `json:"id"`
		SceneID     string    `json:"scene_id"`
		SceneUUID   string    `json:"scene_uuid"`
		SavedAt     time.Time `json:"saved_at"`
		ObjectCount int       `json:"object_count"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		snapshots, err := store.List()
		if err != nil {
			logs.Error(errors.New("listing snapshots failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		summaries := make([]summary, len(snapshots))
		for i, s := range snapshots {
			summaries[i] = summary{
				ID:          s.ID,
				SceneID:     s.SceneID,
				SceneUUID:   s.SceneUUID,
				SavedAt:     s.SavedAt,
				ObjectCount: len(s.Objects),
			}
		}

		body, err := json.Marshal(summaries)
		if err != nil {
			logs.Error(errors.New("encoding snapshot summaries failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

// HandleSnapshot serves one full snapshot document.
func HandleSnapshot(store *snapshot.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.Load(r.PathValue("id"))
		if err != nil {
			if errors.IsType(err, snapshot.ErrTypeNotFound) {
				http.NotFound(w, r)
				return
			}
			logs.Error(errors.New("loading snapshot failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		body, err := json.Marshal(doc)
		if err != nil {
			logs.Error(errors.New("encoding snapshot failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}
