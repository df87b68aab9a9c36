// Package logx is auctionwatch's structured logging layer.
//
// A thin wrapper (logx.Logger) over zerolog keeps:
//   - Console output readable (short timestamp + file:line caller)
//   - File output as JSON lines
//   - An optional chat sink that forwards warnings to an operator chat,
//     filtered by level and rate limited
package logx
