// FILE: synctrack/src/internal/shipper/adapter.go
package shipper

import (
	"context"

	"synctrack/src/internal/auth"
	"synctrack/src/internal/core"
	"synctrack/src/internal/syncclient"
)

// LogEntrySchema is the single class of the logging app's store
func LogEntrySchema() []syncclient.ClassSchema {
	return []syncclient.ClassSchema{{Name: core.LogEntryClass, Asymmetric: true}}
}

// AppClient serves Client from a sync client app connected to the logging backend
type AppClient struct {
	app      *syncclient.App
	storeDir string
}

// NewAppClient keeps log stores under storeDir
func NewAppClient(app *syncclient.App, storeDir string) *AppClient {
	return &AppClient{app: app, storeDir: storeDir}
}

func (c *AppClient) CurrentUser() *auth.User {
	return c.app.CurrentUser()
}

func (c *AppClient) LogIn(ctx context.Context, cred auth.Credential) (*auth.User, error) {
	return c.app.LogIn(ctx, cred)
}

func (c *AppClient) OpenStore(ctx context.Context, user *auth.User) (Store, error) {
	var userID string
	if user != nil {
		userID = user.ID
	}
	store, err := c.app.OpenStore(ctx, user, syncclient.StoreOptions{
		Path:   syncclient.DefaultStorePath(c.storeDir, c.app.ID(), userID),
		Schema: LogEntrySchema(),
	})
	if err != nil {
		return nil, err
	}
	return &logStore{store: store}, nil
}

type logStore struct {
	store *syncclient.Store
}

func (l *logStore) WriteBatch(ctx context.Context, events []core.LogEvent) error {
	docs := make([]syncclient.Document, len(events))
	for i := range events {
		docs[i] = events[i]
	}
	return l.store.WriteBatch(ctx, core.LogEntryClass, docs)
}

func (l *logStore) UploadAllLocalChanges(ctx context.Context) error {
	return l.store.UploadAllLocalChanges(ctx)
}

func (l *logStore) Close() error {
	return l.store.Close()
}
