// Package loader bootstraps the product catalog from a flat CSV export into
// a SQL store or an object-store Parquet snapshot.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopassist/shopassist/internal/catalog"
)

type Target interface {
	Name() string
	Populated(ctx context.Context) (bool, error)
	Write(ctx context.Context, products []catalog.Product) (int, error)
}

type Options struct {
	// Force reloads a target that already holds products.
	Force  bool
	Logger *slog.Logger
}

type Report struct {
	Target  string
	Read    int
	Written int
	Skipped bool
}

func Load(ctx context.Context, source io.Reader, target Target, opts Options) (Report, error) {
	if target == nil {
		return Report{}, fmt.Errorf("load target is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := Report{Target: target.Name()}

	if !opts.Force {
		populated, err := target.Populated(ctx)
		if err != nil {
			return report, err
		}
		if populated {
			report.Skipped = true
			logger.Info("catalog already loaded; skipping", slog.String("target", report.Target))
			return report, nil
		}
	}

	products, err := ReadCSV(source)
	if err != nil {
		return report, err
	}
	report.Read = len(products)
	if len(products) == 0 {
		return report, fmt.Errorf("csv has no products")
	}

	written, err := target.Write(ctx, products)
	if err != nil {
		return report, fmt.Errorf("write %s: %w", report.Target, err)
	}
	report.Written = written
	logger.Info("catalog loaded", slog.String("target", report.Target), slog.Int("products", written))
	return report, nil
}
