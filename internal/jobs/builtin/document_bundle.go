package builtin

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/fabworks/backoffice/internal/jobs"
)

const KindDocumentBundle = "docs.package"

// DocumentBundle packages a set of stored documents into a single zip
// artifact. Only keys under the caller's own artifact prefix are accepted,
// so a payload can never reach into another organization's documents.
//
// Payload:
//
//	keys  []string  durable-store keys to bundle (required)
//	name  string    archive file name (default "documents.zip")
func DocumentBundle(ctx context.Context, jc *jobs.Context, payload map[string]any) (*jobs.Result, error) {
	rawKeys, _ := payload["keys"].([]any)
	if len(rawKeys) == 0 {
		return nil, fmt.Errorf("document bundle: no keys in payload")
	}

	archiveName, _ := payload["name"].(string)
	if archiveName == "" {
		archiveName = "documents.zip"
	}

	orgPrefix := fmt.Sprintf("jobs/%s/", jc.OrgID)

	outPath, err := jc.ScratchPath(archiveName)
	if err != nil {
		return nil, err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	for i, raw := range rawKeys {
		key, ok := raw.(string)
		if !ok || !strings.HasPrefix(key, orgPrefix) {
			return nil, fmt.Errorf("document bundle: key %d is not accessible", i+1)
		}

		object, _, err := jc.Objects().Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("document bundle: fetching %s: %w", key, err)
		}

		entry, err := zw.Create(path.Base(key))
		if err != nil {
			object.Close()
			return nil, err
		}
		if _, err := io.Copy(entry, object); err != nil {
			object.Close()
			return nil, err
		}
		object.Close()

		jc.Progress(90 * (i + 1) / len(rawKeys))
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return &jobs.Result{
		LocalPath: outPath,
		Name:      archiveName,
		Mime:      "application/zip",
	}, nil
}
