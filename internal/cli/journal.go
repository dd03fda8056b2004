package cli

import (
	"context"
	"log/slog"

	"github.com/fieldmaps/webmapctl/internal/journal"
)

// recordRun appends one run to the journal. Journal failures are logged
// and never fail the command; the mutation has already happened.
func recordRun(ctx context.Context, path string, entry journal.Entry) {
	if path == "" {
		return
	}
	j, err := journal.Open(path)
	if err != nil {
		slog.Warn("run journal unavailable", "path", path, "error", err)
		return
	}
	defer j.Close()

	if _, err := j.Append(ctx, entry); err != nil {
		slog.Warn("failed to record run", "path", path, "error", err)
	}
}
