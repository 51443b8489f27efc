// Package logging provides the operator diagnostic channel for secretsh.
//
// Logger wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Output to stderr (stdout is reserved for the MCP transport) and,
//     optionally, OpenTelemetry
//   - Automatic context field injection (trace_id, session.id, execution.id)
//   - Field-name and pattern redaction in the encoder, so a secret passed
//     as a log field by mistake is never written
//   - Per-level sampling (errors never sampled)
//
// Create logger from config:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithExecutionID(ctx, uuid.NewString())
//	logger.Warn(ctx, "redaction gap", zap.String("secret", name))
//
// Tests use NewTestLogger, which records every entry in memory:
//
//	tl := logging.NewTestLogger()
//	svc := runner.New(store, exec, nil, tl.Logger)
//	tl.AssertLogged(t, zapcore.WarnLevel, "redaction gap")
package logging
