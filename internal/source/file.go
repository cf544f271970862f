package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/orchestrator"
)

// FileSource serves pre-extracted candidates from
// <dir>/<company-id>/<source-type>.json. A missing file means the source
// observed nothing for that company, not an error.
type FileSource struct {
	dir string
	typ model.SourceType
}

// NewFile creates a local-file source for one source type.
func NewFile(dir string, typ model.SourceType) *FileSource {
	return &FileSource{dir: dir, typ: typ}
}

// Type implements orchestrator.Source.
func (s *FileSource) Type() model.SourceType { return s.typ }

// Domain implements orchestrator.Source. All file sources share one
// bucket; disk reads don't need throttling but the engine expects a key.
func (s *FileSource) Domain() string { return "local" }

// Collect reads the company's candidate file for this source type.
func (s *FileSource) Collect(_ context.Context, company orchestrator.CompanyRef) ([]model.Candidate, error) {
	path := filepath.Join(s.dir, company.ID, string(s.typ)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Debug("no candidate file",
				zap.String("company_id", company.ID),
				zap.String("source", string(s.typ)),
			)
			return nil, nil
		}
		return nil, eris.Wrapf(err, "source: read %s", path)
	}

	var cands []model.Candidate
	if err := json.Unmarshal(data, &cands); err != nil {
		return nil, eris.Wrapf(err, "source: parse %s", path)
	}
	return cands, nil
}
