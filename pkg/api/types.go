// pkg/api/types.go
package api

import (
	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/pipeline"
	"github.com/valpere/StoreScrapexter/internal/quality"
	"github.com/valpere/StoreScrapexter/internal/spiders"
	"github.com/valpere/StoreScrapexter/internal/store"
)

// Re-export types from internal packages for public API
type (
	Config       = config.Config
	OutputConfig = config.OutputConfig
	SpiderConfig = config.SpiderConfig

	Store = store.Store
	Point = store.Point

	Hours    = hours.Hours
	Interval = hours.Interval

	SpiderInfo = spiders.Info
	RunResult  = pipeline.RunResult

	Report = quality.Report
)
