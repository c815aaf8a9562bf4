package classify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/marketlens/internal/fetcher"
	"github.com/sells-group/marketlens/internal/model"
)

// DetectFileContext reads the header row of a stored file and classifies it.
// It never fails: unreadable files and empty header rows yield the
// fully-UNKNOWN guess with a descriptive signal.
func DetectFileContext(ctx context.Context, path string, fileType model.FileType) model.FileContextGuess {
	log := zap.L().With(zap.String("path", path), zap.String("file_type", string(fileType)))

	if err := ctx.Err(); err != nil {
		return model.UnknownGuess(fmt.Sprintf("Error: %v", err))
	}
	headers, err := fetcher.ReadHeaders(path, fileType)
	if err != nil {
		log.Warn("classify: header read failed", zap.Error(err))
		return model.UnknownGuess(fmt.Sprintf("Error: %v", err))
	}

	guess := ClassifyHeaders(headers)
	log.Debug("classify: file context detected",
		zap.String("platform", string(guess.Platform)),
		zap.Float64("platform_confidence", guess.PlatformConfidence),
		zap.String("report_type", string(guess.ReportType)),
		zap.String("granularity", string(guess.Granularity)),
	)
	return guess
}

// ClassifyHeaders classifies a raw header row.
func ClassifyHeaders(rawHeaders []string) model.FileContextGuess {
	obs := Observe(rawHeaders)
	if !obs.hasAnyHeader() {
		return model.UnknownGuess("No headers found")
	}

	platform, platformConf, platformSignals := detectPlatform(obs)
	reportType, reportConf, reportSignals := detectReportType(obs)
	granularity, granConf, granSignals := detectGranularity(obs)

	signals := make([]string, 0, 1+len(platformSignals)+len(reportSignals)+len(granSignals))
	signals = append(signals, fmt.Sprintf("Headers found: %d", obs.ColumnCount))
	signals = append(signals, platformSignals...)
	signals = append(signals, reportSignals...)
	signals = append(signals, granSignals...)

	return model.FileContextGuess{
		Platform:              platform,
		PlatformConfidence:    platformConf,
		ReportType:            reportType,
		ReportTypeConfidence:  reportConf,
		Granularity:           granularity,
		GranularityConfidence: granConf,
		LanguageHint:          obs.LanguageHint,
		Signals:               signals,
	}
}
