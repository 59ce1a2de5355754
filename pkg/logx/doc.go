// Package logx is a thin structured-logging layer over zerolog.
//
// It exposes a small Logger value with field helpers so services don't
// import zerolog directly. The zero value is a safe no-op logger.
package logx
