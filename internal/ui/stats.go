package ui

import "sync/atomic"

type Stats struct {
	TotalSources   atomic.Int64
	TotalArtifacts atomic.Int64
	TotalBytes     atomic.Int64
	Failed         atomic.Int64
}
