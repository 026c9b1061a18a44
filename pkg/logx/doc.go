// Package logx configures netoptimizer's structured logging.
//
// logx.Logger is a small wrapper on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured and size-rotated
package logx
