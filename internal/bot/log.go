package bot

import (
	"context"

	"log/slog"

	"github.com/m3rciful/otpbot/internal/logger"
)

func logFailure(ctx context.Context, event string, err error) {
	logger.Error(ctx, "bot", event,
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}
