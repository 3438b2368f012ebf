package cache

import (
	"context"
	"time"
)

// Nop never stores anything. Useful where caching must be disabled.
type Nop struct{}

func (Nop) Get(context.Context, string, any) bool           { return false }
func (Nop) Set(context.Context, string, any, time.Duration) {}
func (Nop) Invalidate(context.Context, ...string)           {}
func (Nop) InvalidatePrefix(context.Context, string)        {}
func (Nop) InvalidateAll(context.Context)                   {}
func (Nop) InvalidateAggregates(context.Context)            {}
