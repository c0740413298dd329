package httpapi

import (
	"context"
	"strconv"

	"github.com/bifrosttrader/hedge-daemon/pkg/pgsink"
)

func writeControlCommand(ctx context.Context, sink *pgsink.Sink, command string) error {
	return sink.WriteControlCommand(ctx, command)
}

func writeRunStatus(ctx context.Context, sink *pgsink.Sink, suspended bool) error {
	return sink.WriteRunStatus(ctx, suspended)
}

func writeHeartbeatInterval(ctx context.Context, sink *pgsink.Sink, sec int) error {
	return sink.WriteHeartbeatIntervalSec(ctx, sec)
}

func writeIBConfig(ctx context.Context, sink *pgsink.Sink, host, portType string) error {
	return sink.WriteIBConfig(ctx, host, portType)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
