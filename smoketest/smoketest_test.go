package smoketest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/bloom"
	"github.com/aukilabs/garth/catalog"
	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/garth/modules"
	"github.com/aukilabs/garth/modules/fehu"
	"github.com/aukilabs/garth/modules/raido"
	"github.com/aukilabs/garth/snapshot"
	garthws "github.com/aukilabs/garth/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

const testGLTF = `{
	"asset": {"version": "2.0"},
	"meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
	"nodes": [{}],
	"accessors": [{"type": "VEC3", "min": [-1, 0, -1], "max": [1, 2, 1]}]
}`

// newTestServer starts a garth server with one catalog asset and returns its
// endpoint.
func newTestServer(t *testing.T) *httptest.Server {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "buildings"), 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "buildings", "house_modern.gltf"),
		[]byte(testGLTF),
		0644,
	))

	cat, err := catalog.Scan(dir)
	require.NoError(t, err)

	loader := assetcache.NewLoader(
		catalog.DiskFetcher{Dir: dir},
		assetcache.New(8),
		bloom.New(64, 0.01),
		bloom.New(64, 0.01),
	)
	ids := &models.SequentialIDGenerator{}
	scenes := &models.SceneStore{}

	snapshotStore := &snapshot.Store{Dir: t.TempDir()}
	snapshotChan := make(chan snapshot.Snapshot, 16)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	snapshot.Handler{Store: snapshotStore, SnapshotChan: snapshotChan}.HandleSnapshots(ctx)

	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			h := &garthws.RealtimeHandler{
				ClientSyncClockInterval: time.Millisecond * 250,
				ClientIdleTimeout:       time.Minute,
				FrameDuration:           time.Millisecond * 50,
				Scenes:                  scenes,
				Modules: []modules.Module{
					&fehu.Module{Loader: loader, IDs: ids},
					&raido.Module{
						Loader:      loader,
						IDs:         ids,
						NonBlocking: cat.Settings.NonBlocking,
					},
				},
				Snapshots:    snapshotStore,
				SnapshotChan: snapshotChan,
			}
			defer h.Close()

			garthws.Handle(context.Background(), conn, h)
		},
	})
	t.Cleanup(server.Close)

	return server
}

func TestRunSmokeTest(t *testing.T) {
	server := newTestServer(t)

	results := Run(context.Background(), Options{
		Endpoint:  server.URL,
		UserAgent: "garth-smoketest",
		Asset:     messages.AssetRef{Category: "buildings", Name: "house_modern.gltf"},
		Timeout:   time.Second * 5,
	})

	require.True(t, results.OK, "results: %+v", results)
	require.Len(t, results.Steps, 9)

	names := make([]string, len(results.Steps))
	for i, step := range results.Steps {
		require.True(t, step.OK, "step %q failed: %s", step.Name, step.Error)
		names[i] = step.Name
	}
	require.Equal(t, []string{
		"connect",
		"ping",
		"scene join",
		"asset resolve",
		"placement check",
		"object add",
		"object revalidate",
		"snapshot save",
		"object delete",
	}, names)
}

func TestRunSmokeTestWithoutAsset(t *testing.T) {
	server := newTestServer(t)

	results := Run(context.Background(), Options{
		Endpoint: server.URL,
		Timeout:  time.Second * 5,
	})

	require.True(t, results.OK)
	require.Len(t, results.Steps, 3)
}

func TestRunSmokeTestMissingAsset(t *testing.T) {
	server := newTestServer(t)

	results := Run(context.Background(), Options{
		Endpoint: server.URL,
		Asset:    messages.AssetRef{Category: "buildings", Name: "gone.gltf"},
		Timeout:  time.Second * 5,
	})

	require.False(t, results.OK)

	last := results.Steps[len(results.Steps)-1]
	require.Equal(t, "asset resolve", last.Name)
	require.False(t, last.OK)
}

func TestHandleSmokeTest(t *testing.T) {
	server := newTestServer(t)

	var sent bool
	handler := HandleSmokeTest(context.Background(), Options{
		Endpoint: server.URL,
		Asset:    messages.AssetRef{Category: "buildings", Name: "house_modern.gltf"},
		Timeout:  time.Second * 5,
		SendResult: func(ctx context.Context, results Results) error {
			sent = true
			return nil
		},
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/smoke-test", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, sent)

	var results Results
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.True(t, results.OK)
	require.Equal(t, server.URL, results.Endpoint)
}
