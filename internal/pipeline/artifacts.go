package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TedTes/genres-sub000/internal/storage"
	"github.com/TedTes/genres-sub000/internal/types"
)

// artifactOutcome collects per-format locations and failures.
type artifactOutcome struct {
	locations types.ArtifactLocations
	failures  []string
}

func (a artifactOutcome) errMessage() string {
	sort.Strings(a.failures)
	return strings.Join(a.failures, "; ")
}

// storeArtifacts renders and uploads each format concurrently. A failed
// format leaves its location nil and never fails the request.
func (o *Optimizer) storeArtifacts(ctx context.Context, requestID string, r *types.OptimizedResume, includePDF bool) artifactOutcome {
	var out artifactOutcome
	if o.deps.Store == nil {
		return out
	}

	formats := []string{"docx"}
	if includePDF {
		formats = append(formats, "pdf")
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, ext := range formats {
		g.Go(func() error {
			loc, err := o.storeOne(ctx, requestID, ext, r)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.failures = append(out.failures, err.Error())
				o.logger.Warn("artifact not stored",
					zap.String("request_id", requestID),
					zap.String("format", ext),
					zap.Error(err))
				return nil
			}
			switch ext {
			case "docx":
				out.locations.DOCX = &loc
			case "pdf":
				out.locations.PDF = &loc
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Optimizer) storeOne(ctx context.Context, requestID, ext string, r *types.OptimizedResume) (string, error) {
	formatter, ok := o.deps.Formatters[ext]
	if !ok {
		return "", fmt.Errorf("no formatter registered for %s", ext)
	}
	data, err := formatter.Format(r, r.Contact)
	if err != nil {
		return "", err
	}
	return o.deps.Store.Store(ctx, data, storage.ArtifactKey(requestID, formatter.Extension()), formatter.ContentType())
}
