package jobs

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fabworks/backoffice/internal/objstore"
	"github.com/fabworks/backoffice/internal/store"
)

// Context bundles the collaborators a handler may need. Handlers never
// construct their own connections; everything shared comes through here.
type Context struct {
	JobID    uuid.UUID
	OrgID    string
	Username string
	Progress func(percent int)

	store      store.Store
	objects    objstore.ObjectStore
	scratchDir string
}

func NewContext(jobID uuid.UUID, orgID, username string, s store.Store, objects objstore.ObjectStore, scratchRoot string) *Context {
	return &Context{
		JobID:      jobID,
		OrgID:      orgID,
		Username:   username,
		Progress:   func(int) {},
		store:      s,
		objects:    objects,
		scratchDir: filepath.Join(scratchRoot, jobID.String()),
	}
}

// Store exposes the shared data-access handle.
func (c *Context) Store() store.Store {
	return c.store
}

// Objects exposes the durable object store, for handlers that read
// previously stored documents.
func (c *Context) Objects() objstore.ObjectStore {
	return c.objects
}

// ScratchPath allocates a path for name under the job's scratch directory,
// creating the directory tree on first use. The whole tree is removed by
// the materializer once the artifact is durable.
func (c *Context) ScratchPath(name string) (string, error) {
	if err := os.MkdirAll(c.scratchDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(c.scratchDir, name), nil
}

// ScratchDir returns the job's scratch directory root.
func (c *Context) ScratchDir() string {
	return c.scratchDir
}
