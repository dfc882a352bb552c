// Package sampler polls an external count source on a fixed interval and
// stores the result in a gauge.
//
// The first sample runs synchronously inside [Sampler.Start] so the gauge is
// populated before the first scrape. Later samples run on one background
// goroutine driven by a [time.Ticker]; a sample that overruns the interval
// causes the ticks that fall inside it to be dropped rather than queued.
//
// A failed sample is logged and leaves the gauge at its last good value.
package sampler
