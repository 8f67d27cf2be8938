package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/calcq/message"
)

// Logging returns middleware that logs request start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *message.CalculationRequest, next Handler) error {
		logger.Info("calculation started",
			slog.String("request_id", req.RequestID.String()),
			slog.String("asset_id", req.AssetID),
			slog.String("column", req.ColumnName),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("calculation failed",
				slog.String("request_id", req.RequestID.String()),
				slog.String("asset_id", req.AssetID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("calculation completed",
				slog.String("request_id", req.RequestID.String()),
				slog.String("asset_id", req.AssetID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
