// Package smoketest runs a scripted end to end exchange against a running
// garth endpoint: join a scene, resolve an asset, check and place it, save a
// snapshot and clean up.
package smoketest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/garth/messages"
	garthws "github.com/aukilabs/garth/websocket"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// DefaultTimeout bounds a whole smoke test run.
const DefaultTimeout = time.Second * 10

type Options struct {
	// The http(s) endpoint of the server under test.
	Endpoint string

	UserAgent string

	// The catalog asset exercised by the resolve, placement and add steps.
	// With a zero Asset the run stops after the scene join.
	Asset messages.AssetRef

	Timeout time.Duration

	// Called with the results after every run, when set.
	SendResult func(context.Context, Results) error
}

// StepResult is the outcome of one scripted step.
type StepResult struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Results is the outcome of a whole run. OK is true when every step passed.
type Results struct {
	Endpoint  string        `json:"endpoint"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	OK        bool          `json:"ok"`
	Steps     []StepResult  `json:"steps"`
}

// Run plays the smoke test script against the endpoint. A failed step skips
// the remaining ones.
func Run(ctx context.Context, opts Options) Results {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	results := Results{
		Endpoint:  opts.Endpoint,
		StartedAt: time.Now(),
	}
	defer func() {
		results.Duration = time.Since(results.StartedAt)
	}()

	run := newRunner(&results)

	var conn *websocket.Conn
	run.step("connect", func() error {
		var err error
		conn, err = dial(opts)
		return err
	})
	if conn != nil {
		defer conn.Close()
	}

	run.step("ping", func() error {
		return garthws.NewScenario(conn).
			Send(func() messages.Message {
				return messages.PingRequest{
					Type:      messages.TypePingRequest,
					Timestamp: time.Now(),
					RequestID: 1,
				}
			}).
			Receive(expectResponse(messages.TypePingResponse, nil),
				garthws.FilterByRequestID(1),
				garthws.FilterByType(messages.TypePingResponse, messages.TypeError),
			).
			Run(ctx)
	})

	run.step("scene join", func() error {
		return garthws.NewScenario(conn).
			Send(func() messages.Message {
				return messages.SceneJoinRequest{
					Type:      messages.TypeSceneJoinRequest,
					Timestamp: time.Now(),
					RequestID: 2,
				}
			}).
			Receive(expectResponse(messages.TypeSceneJoinResponse, nil),
				garthws.FilterByRequestID(2),
				garthws.FilterByType(messages.TypeSceneJoinResponse, messages.TypeError),
			).
			Receive(nil,
				garthws.FilterByType(messages.TypeSceneState),
			).
			Run(ctx)
	})

	if opts.Asset.Category == "" || opts.Asset.Name == "" {
		return results
	}

	run.step("asset resolve", func() error {
		return garthws.NewScenario(conn).
			Send(func() messages.Message {
				return messages.AssetResolveRequest{
					Type:      messages.TypeAssetResolveRequest,
					Timestamp: time.Now(),
					RequestID: 3,
					Asset:     opts.Asset,
				}
			}).
			Receive(expectResponse(messages.TypeAssetResolveResponse, nil),
				garthws.FilterByRequestID(3),
				garthws.FilterByType(messages.TypeAssetResolveResponse, messages.TypeError),
			).
			Run(ctx)
	})

	pose := messages.Pose{RW: 1}

	run.step("placement check", func() error {
		return garthws.NewScenario(conn).
			Send(func() messages.Message {
				return messages.PlacementCheckRequest{
					Type:      messages.TypePlacementCheckRequest,
					Timestamp: time.Now(),
					RequestID: 4,
					Asset:     opts.Asset,
					Pose:      pose,
				}
			}).
			Receive(expectResponse(messages.TypePlacementCheckResponse, func(msg messages.Msg) error {
				var res messages.PlacementCheckResponse
				if err := msg.DataTo(&res); err != nil {
					return err
				}
				if !res.Valid {
					return errors.New("placement in an empty scene is invalid").
						WithTag("colliding_object_id", res.CollidingObjectID)
				}
				return nil
			}),
				garthws.FilterByRequestID(4),
				garthws.FilterByType(messages.TypePlacementCheckResponse, messages.TypeError),
			).
			Run(ctx)
	})

	var objectID uint32
	run.step("object add", func() error {
		return garthws.NewScenario(conn).
			Send(func() messages.Message {
				return messages.ObjectAddRequest{
					Type:      messages.TypeObjectAddRequest,
					Timestamp: time.Now(),
					RequestID: 5,
					Asset:     opts.Asset,
					Pose:      pose,
				}
			}).
			Receive(expectResponse(messages.TypeObjectAddResponse, func(msg messages.Msg) error {
				var res messages.ObjectAddResponse
				if err := msg.DataTo(&res); err != nil {
					return err
				}
				objectID = res.ObjectID
				return nil
			}),
				garthws.FilterByRequestID(5),
				garthws.FilterByType(messages.TypeObjectAddResponse, messages.TypeError),
			).
			Run(ctx)
	})

	run.step("object revalidate", func() error {
		return garthws.NewScenario(conn).
			Send(func() messages.Message {
				return messages.PlacementCheckRequest{
					Type:      messages.TypePlacementCheckRequest,
					Timestamp: time.Now(),
					RequestID: 6,
					ObjectID:  objectID,
				}
			}).
			Receive(expectResponse(messages.TypePlacementCheckResponse, func(msg messages.Msg) error {
				var res messages.PlacementCheckResponse
				if err := msg.DataTo(&res); err != nil {
					return err
				}
				if !res.Valid {
					return errors.New("the placed object collides with itself").
						WithTag("colliding_object_id", res.CollidingObjectID)
				}
				return nil
			}),
				garthws.FilterByRequestID(6),
				garthws.FilterByType(messages.TypePlacementCheckResponse, messages.TypeError),
			).
			Run(ctx)
	})

	run.step("snapshot save", func() error {
		return garthws.NewScenario(conn).
			Send(func() messages.Message {
				return messages.SnapshotSaveRequest{
					Type:      messages.TypeSnapshotSaveRequest,
					Timestamp: time.Now(),
					RequestID: 7,
				}
			}).
			Receive(expectResponse(messages.TypeSnapshotSaveResponse, func(msg messages.Msg) error {
				var res messages.SnapshotSaveResponse
				if err := msg.DataTo(&res); err != nil {
					return err
				}
				if res.ObjectCount != 1 {
					return errors.New("snapshot does not hold the placed object").
						WithTag("object_count", res.ObjectCount)
				}
				return nil
			}),
				garthws.FilterByRequestID(7),
				garthws.FilterByType(messages.TypeSnapshotSaveResponse, messages.TypeError),
			).
			Run(ctx)
	})

	run.step("object delete", func() error {
		return garthws.NewScenario(conn).
			Send(func() messages.Message {
				return messages.ObjectDeleteRequest{
					Type:      messages.TypeObjectDeleteRequest,
					Timestamp: time.Now(),
					RequestID: 8,
					ObjectID:  objectID,
				}
			}).
			Receive(expectResponse(messages.TypeObjectDeleteResponse, nil),
				garthws.FilterByRequestID(8),
				garthws.FilterByType(messages.TypeObjectDeleteResponse, messages.TypeError),
			).
			Run(ctx)
	})

	return results
}

// HandleSmokeTest triggers a run over HTTP and answers with the results. The
// request body may carry an optional timeout override.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Timeout time.Duration `json:"timeout"`
		}
		if r.Body != nil {
			// An empty or unreadable body keeps the configured timeout.
			json.NewDecoder(r.Body).Decode(&req)
		}

		runOpts := opts
		if req.Timeout > 0 {
			runOpts.Timeout = req.Timeout
		}

		results := Run(ctx, runOpts)

		if opts.SendResult != nil {
			if err := opts.SendResult(ctx, results); err != nil {
				logs.WithTag("endpoint", opts.Endpoint).
					Warn(errors.New("sending smoke test results failed").Wrap(err))
			}
		}

		body, err := json.Marshal(results)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !results.OK {
			w.WriteHeader(http.StatusBadGateway)
		}
		w.Write(body)
	}
}

// expectResponse fails the step when the server answered with an error
// response, otherwise hands the message to handle.
func expectResponse(okType messages.Type, handle func(messages.Msg) error) func(messages.Msg) error {
	return func(msg messages.Msg) error {
		if msg.Type == messages.TypeError {
			var res messages.ErrorResponse
			if err := msg.DataTo(&res); err != nil {
				return err
			}
			return errors.New("request failed").
				WithTag("code", res.Code).
				WithTag("expected_type", okType)
		}
		if handle != nil {
			return handle(msg)
		}
		return nil
	}
}

type runner struct {
	results *Results
	failed  bool
}

func newRunner(results *Results) *runner {
	results.OK = true
	return &runner{results: results}
}

// step runs fn and records its outcome. Steps after a failure are not run.
func (r *runner) step(name string, fn func() error) {
	if r.failed {
		return
	}

	start := time.Now()
	err := fn()

	result := StepResult{
		Name:     name,
		OK:       err == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
		r.failed = true
		r.results.OK = false
	}
	r.results.Steps = append(r.results.Steps, result)
}

func dial(opts Options) (*websocket.Conn, error) {
	endpoint := strings.ReplaceAll(opts.Endpoint, "http://", "ws://")
	endpoint = strings.ReplaceAll(endpoint, "https://", "wss://")

	config, err := websocket.NewConfig(endpoint, "http://localhost")
	if err != nil {
		return nil, errors.New("configuring smoke test connection failed").
			WithTag("endpoint", opts.Endpoint).
			Wrap(err)
	}
	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, errors.New("dialing smoke test connection failed").
			WithTag("endpoint", opts.Endpoint).
			Wrap(err)
	}
	return conn, nil
}
