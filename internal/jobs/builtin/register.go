package builtin

import (
	"github.com/fabworks/backoffice/internal/jobs"
)

// RegisterAll installs the shipped handlers into the registry.
func RegisterAll(r *jobs.Registry) {
	r.Register(KindProductionReport, ProductionReport)
	r.Register(KindArticleExport, ArticleExport)
	r.Register(KindDocumentBundle, DocumentBundle)
}
