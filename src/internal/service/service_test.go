// FILE: synctrack/src/internal/service/service_test.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"synctrack/src/internal/auth"
	"synctrack/src/internal/core"
	"synctrack/src/internal/shipper"
	"synctrack/src/internal/syncclient"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

type recordingPrinter struct {
	mu    sync.Mutex
	lines []string
}

func (p *recordingPrinter) Print(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}

func (p *recordingPrinter) Error(format string, args ...any) {
	p.Print("ERROR: "+format, args...)
}

func (p *recordingPrinter) output() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// backend serves a target app with Person, Dog and an embedded Address class
type backend struct {
	mu      sync.Mutex
	logins  int
	logouts int
	uploads int
	bodies  [][]byte
}

func (b *backend) handle(ctx *fasthttp.RequestCtx) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := string(ctx.Path())
	switch {
	case strings.HasSuffix(path, "/login"):
		b.logins++
		fmt.Fprintf(ctx, `{"access_token":"a","refresh_token":"r","user_id":"user-%d"}`, b.logins)
	case path == "/api/client/v2.0/auth/session":
		b.logouts++
	case strings.HasSuffix(path, "/sync/schema"):
		body, _ := json.Marshal([]syncclient.ClassSchema{
			{Name: "Person"}, {Name: "Address", Embedded: true}, {Name: "Dog"},
		})
		ctx.SetBody(body)
	case strings.HasSuffix(path, "/sync/download"):
		body, _ := bson.MarshalExtJSON(bson.M{"objects": []bson.M{
			{"class": "Dog", "doc": bson.M{"_id": primitive.NewObjectID()}},
			{"class": "Dog", "doc": bson.M{"_id": primitive.NewObjectID()}},
			{"class": "Person", "doc": bson.M{"_id": primitive.NewObjectID()}},
		}}, false, false)
		ctx.SetBody(body)
	case strings.HasSuffix(path, "/sync/upload"):
		b.uploads++
		b.bodies = append(b.bodies, append([]byte(nil), ctx.PostBody()...))
	default:
		ctx.SetStatusCode(http.StatusNotFound)
	}
}

func newTestApp(t *testing.T, id string, b *backend) *syncclient.App {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: b.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	app, err := syncclient.NewApp(syncclient.AppOptions{
		ID:       id,
		BaseURL:  "http://backend.test",
		Timeout:  5 * time.Second,
		CacheDir: t.TempDir(),
		Dial:     func(string) (net.Conn, error) { return ln.Dial() },
	}, newTestLogger())
	require.NoError(t, err)
	return app
}

type fakeSession struct {
	mu       sync.Mutex
	startErr error
	started  int
	stopped  int
	host     shipper.HostApp
	level    core.Severity
}

func (f *fakeSession) StartSession(_ context.Context, host shipper.HostApp, _ int, level core.Severity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	f.host = host
	f.level = level
	return nil
}

func (f *fakeSession) StopSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeSession) GetStats() shipper.Stats {
	return shipper.Stats{}
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	b := &backend{}
	app := newTestApp(t, "target", b)
	session := &fakeSession{}
	out := &recordingPrinter{}

	svc := New(app, session, Options{
		Credential: auth.Anonymous(),
		StoreDir:   t.TempDir(),
		LogLevel:   core.SeverityDetail,
	}, out, newTestLogger())

	require.NoError(t, svc.Run(ctx))
	assert.Equal(t, map[string]int{"Dog": 2, "Person": 1}, svc.Counts())
	assert.Equal(t, 1, session.started)
	assert.Equal(t, core.SeverityDetail, session.level)
	assert.Equal(t, "target", session.host.ID())

	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, 1, session.stopped)

	lines := out.output()
	assert.Contains(t, lines, "Logged in as user-1")
	assert.Contains(t, lines, "Got 2 Dog objects")
	assert.Contains(t, lines, "Got 1 Person objects")
	assert.Equal(t, "Done", lines[len(lines)-1])

	// Classes are reported in name order
	var got []string
	for _, l := range lines {
		if strings.HasPrefix(l, "Got ") {
			got = append(got, l)
		}
	}
	assert.Equal(t, []string{"Got 2 Dog objects", "Got 1 Person objects"}, got)
}

func TestService_CleanLogsOutCachedUser(t *testing.T) {
	ctx := context.Background()
	b := &backend{}
	app := newTestApp(t, "target", b)

	_, err := app.LogIn(ctx, auth.Anonymous())
	require.NoError(t, err)

	out := &recordingPrinter{}
	svc := New(app, nil, Options{
		Credential: auth.Anonymous(),
		StoreDir:   t.TempDir(),
		Clean:      true,
		LogLevel:   core.SeverityOff,
	}, out, newTestLogger())

	require.NoError(t, svc.Run(ctx))
	require.NoError(t, svc.Shutdown(ctx))

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 1, b.logouts)
	assert.Equal(t, 2, b.logins)
	assert.Contains(t, out.output(), "Logged out cached user user-1")
}

func TestService_StartFailureStillShutsDown(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, "target", &backend{})
	session := &fakeSession{startErr: shipper.ErrAuthUnavailable}

	svc := New(app, session, Options{Credential: auth.Anonymous(), StoreDir: t.TempDir()},
		&recordingPrinter{}, newTestLogger())

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, shipper.ErrAuthUnavailable)
	assert.NoError(t, svc.Shutdown(ctx))
	assert.Zero(t, session.stopped, "no session to stop")
}

func TestService_LingerCancelled(t *testing.T) {
	app := newTestApp(t, "target", &backend{})
	session := &fakeSession{}
	svc := New(app, session, Options{
		Credential: auth.Anonymous(),
		StoreDir:   t.TempDir(),
		Linger:     time.Hour,
	}, &recordingPrinter{}, newTestLogger())
	require.NoError(t, svc.Run(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Shutdown(ctx) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not honour cancelled linger")
	}
	assert.Equal(t, 1, session.stopped)
}

// End to end: target app diagnostics shipped to a separate logging app
func TestService_ShipsDiagnostics(t *testing.T) {
	ctx := context.Background()
	target := newTestApp(t, "target", &backend{})
	logBackend := &backend{}
	logApp := newTestApp(t, "logs", logBackend)

	ship := shipper.New(shipper.NewAppClient(logApp, t.TempDir()), auth.APIKey("log-key"), newTestLogger())
	svc := New(target, ship, Options{
		Credential: auth.Anonymous(),
		StoreDir:   t.TempDir(),
		BatchSize:  2,
		LogLevel:   core.SeverityAll,
	}, &recordingPrinter{}, newTestLogger())

	require.NoError(t, svc.Run(ctx))
	stats := ship.GetStats()
	assert.True(t, stats.Active)
	assert.Greater(t, stats.TotalEvents, uint64(0))

	require.NoError(t, svc.Shutdown(ctx))
	assert.False(t, ship.GetStats().Active)

	logBackend.mu.Lock()
	defer logBackend.mu.Unlock()
	assert.Equal(t, 1, logBackend.uploads)
}

func TestService_ShippedRecordShape(t *testing.T) {
	ctx := context.Background()
	target := newTestApp(t, "target", &backend{})
	logBackend := &backend{}
	logApp := newTestApp(t, "logs", logBackend)

	ship := shipper.New(shipper.NewAppClient(logApp, t.TempDir()), auth.APIKey("log-key"), newTestLogger())
	svc := New(target, ship, Options{
		Credential: auth.Anonymous(),
		StoreDir:   t.TempDir(),
		BatchSize:  3,
		LogLevel:   core.SeverityAll,
	}, &recordingPrinter{}, newTestLogger())

	require.NoError(t, svc.Run(ctx))
	require.NoError(t, svc.Shutdown(ctx))

	logBackend.mu.Lock()
	bodies := append([][]byte(nil), logBackend.bodies...)
	logBackend.mu.Unlock()
	require.Len(t, bodies, 1)

	var upload struct {
		Changes []struct {
			Class string   `bson:"class"`
			Doc   bson.Raw `bson:"doc"`
		} `bson:"changes"`
	}
	require.NoError(t, bson.UnmarshalExtJSON(bodies[0], false, &upload))
	require.NotEmpty(t, upload.Changes)

	allowed := map[string]bool{
		"_id": true, "appId": true, "logLevel": true, "logSessionId": true,
		"message": true, "timestamp": true, "userId": true,
	}
	ids := make(map[primitive.ObjectID]bool)
	sessions := make(map[primitive.ObjectID]bool)
	withUser := 0

	for _, change := range upload.Changes {
		assert.Equal(t, core.LogEntryClass, change.Class)
		doc := change.Doc

		elems, err := doc.Elements()
		require.NoError(t, err)
		for _, e := range elems {
			assert.True(t, allowed[e.Key()], "unexpected field %s", e.Key())
		}

		id, ok := doc.Lookup("_id").ObjectIDOK()
		require.True(t, ok, "_id is an ObjectId")
		assert.False(t, ids[id], "duplicate _id")
		ids[id] = true

		appID, ok := doc.Lookup("appId").StringValueOK()
		require.True(t, ok, "appId is a string")
		assert.Equal(t, "target", appID)

		level, ok := doc.Lookup("logLevel").AsInt64OK()
		require.True(t, ok, "logLevel is an integer")
		assert.GreaterOrEqual(t, level, int64(core.SeverityAll))
		assert.Less(t, level, int64(core.SeverityOff))

		session, ok := doc.Lookup("logSessionId").ObjectIDOK()
		require.True(t, ok, "logSessionId is an ObjectId")
		sessions[session] = true

		message, ok := doc.Lookup("message").StringValueOK()
		require.True(t, ok, "message is a string")
		assert.NotEmpty(t, message)

		assert.Equal(t, bsontype.DateTime, doc.Lookup("timestamp").Type, "timestamp is a date")

		if v, err := doc.LookupErr("userId"); err == nil {
			user, ok := v.StringValueOK()
			require.True(t, ok, "userId is a string")
			assert.Equal(t, "user-1", user)
			withUser++
		}
	}

	assert.Len(t, sessions, 1, "one log session per run")
	assert.Greater(t, withUser, 0, "events after login carry the user id")
}

func TestDescribeError(t *testing.T) {
	assert.Empty(t, DescribeError(nil))
	assert.Equal(t, "plain", DescribeError(errors.New("plain")))

	se := &syncclient.StatusError{Method: "POST", Path: "/x", Code: 400, Body: `{"error":"bad","code":{"$numberInt":"7"}}`}
	described := DescribeError(fmt.Errorf("wrapped: %w", se))
	assert.Contains(t, described, "status 400")
	assert.Contains(t, described, `"code": 7`)

	notDoc := &syncclient.StatusError{Method: "GET", Path: "/y", Code: 500, Body: "oops"}
	assert.Equal(t, notDoc.Error(), DescribeError(notDoc))
}

func TestService_LocalDiagnostics(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, "target", &backend{})

	var mu sync.Mutex
	var got []string
	svc := New(app, nil, Options{
		Credential: auth.Anonymous(),
		StoreDir:   t.TempDir(),
		LogLevel:   core.SeverityInfo,
		LocalDiagnostics: func(level core.Severity, message string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, message)
		},
	}, &recordingPrinter{}, newTestLogger())

	require.NoError(t, svc.Run(ctx))
	require.NoError(t, svc.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, got, "Logged in user user-1 to target")
}
