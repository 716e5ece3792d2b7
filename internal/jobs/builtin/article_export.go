package builtin

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/fabworks/backoffice/internal/jobs"
)

const KindArticleExport = "export.articles"

// ArticleExport writes the article master data handed over in the payload
// as a CSV file.
//
// Payload:
//
//	articles  []map  rows: number, description, unit, weight
func ArticleExport(ctx context.Context, jc *jobs.Context, payload map[string]any) (*jobs.Result, error) {
	rows, _ := payload["articles"].([]any)
	if len(rows) == 0 {
		return nil, fmt.Errorf("article export: no articles in payload")
	}

	path, err := jc.ScratchPath("articles.csv")
	if err != nil {
		return nil, err
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"number", "description", "unit", "weight"}); err != nil {
		return nil, err
	}

	for i, raw := range rows {
		article, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("article export: row %d is malformed", i+1)
		}
		record := []string{
			toString(article["number"]),
			toString(article["description"]),
			toString(article["unit"]),
			toString(article["weight"]),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
		jc.Progress(90 * (i + 1) / len(rows))
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &jobs.Result{
		LocalPath: path,
		Name:      "articles.csv",
		Mime:      "text/csv",
	}, nil
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
