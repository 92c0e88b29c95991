// Package pagetimer accumulates per-session dwell time and page transitions.
package pagetimer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront/pkg/session"
)

// Session keys written by the timer.
const (
	KeyTimer            = "timer"
	KeyStats            = "stats"
	KeyTotalSeconds     = "total_seconds"
	KeyTotalTransitions = "total_transitions"
)

// TimestampLayout is the marker format, always in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// PageStat is the accumulated dwell time and number of times a page was left.
// It is stored as a two element array [seconds, count].
type PageStat struct {
	Seconds float64
	Count   int
}

func (p PageStat) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Seconds, p.Count})
}

func (p *PageStat) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	p.Seconds = pair[0]
	p.Count = int(pair[1])
	return nil
}

// Marker records the page currently being viewed, stored as [path, timestamp].
type Marker struct {
	Path string
	At   string
}

func (m Marker) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{m.Path, m.At})
}

func (m *Marker) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	m.Path, m.At = pair[0], pair[1]
	return nil
}

// Transition describes the page that was just left.
type Transition struct {
	Page    string
	Elapsed time.Duration
}

// Stats is the read model returned to clients.
type Stats struct {
	Pages            map[string]PageStat `json:"pages"`
	TotalSeconds     float64             `json:"total_seconds"`
	TotalTransitions int                 `json:"total_transitions"`
	CurrentPage      string              `json:"current_page,omitempty"`
}

// OnRequestStart charges the time since the previous marker to the previous
// page, then moves the marker to path. It returns the transition that was
// recorded, or nil on the first request of a session.
func OnRequestStart(kv session.KV, path string, now time.Time) (*Transition, error) {
	now = now.UTC()

	var transition *Transition
	if prev, at, ok := loadMarker(kv); ok {
		elapsed := now.Sub(at)
		if elapsed < 0 {
			elapsed = 0
		}
		if err := accumulate(kv, prev.Path, elapsed.Seconds()); err != nil {
			return nil, err
		}
		transition = &Transition{Page: prev.Path, Elapsed: elapsed}
	}

	marker := Marker{Path: path, At: now.Format(TimestampLayout)}
	if err := kv.Set(KeyTimer, marker); err != nil {
		return nil, err
	}
	return transition, nil
}

func loadMarker(kv session.KV) (Marker, time.Time, bool) {
	var marker Marker
	found, err := kv.Get(KeyTimer, &marker)
	if !found || err != nil {
		return Marker{}, time.Time{}, false
	}
	at, err := time.ParseInLocation(TimestampLayout, marker.At, time.UTC)
	if err != nil {
		return Marker{}, time.Time{}, false
	}
	return marker, at, true
}

func accumulate(kv session.KV, page string, elapsed float64) error {
	stats := loadPages(kv)
	entry := stats[page]
	entry.Seconds += elapsed
	entry.Count++
	stats[page] = entry
	if err := kv.Set(KeyStats, stats); err != nil {
		return fmt.Errorf("store page stats: %w", err)
	}

	var totalSeconds float64
	var totalTransitions int
	_, _ = kv.Get(KeyTotalSeconds, &totalSeconds)
	_, _ = kv.Get(KeyTotalTransitions, &totalTransitions)
	if err := kv.Set(KeyTotalSeconds, totalSeconds+elapsed); err != nil {
		return err
	}
	return kv.Set(KeyTotalTransitions, totalTransitions+1)
}

// loadPages returns the stored per-page map; unreadable data starts over.
func loadPages(kv session.KV) map[string]PageStat {
	stats := map[string]PageStat{}
	if _, err := kv.Get(KeyStats, &stats); err != nil || stats == nil {
		return map[string]PageStat{}
	}
	return stats
}

// Snapshot reads the accumulated statistics without modifying them.
func Snapshot(kv session.KV) Stats {
	out := Stats{Pages: loadPages(kv)}
	_, _ = kv.Get(KeyTotalSeconds, &out.TotalSeconds)
	_, _ = kv.Get(KeyTotalTransitions, &out.TotalTransitions)
	if marker, _, ok := loadMarker(kv); ok {
		out.CurrentPage = marker.Path
	}
	return out
}
