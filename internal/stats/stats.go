// Package stats keeps in-process counters for the server and exposes them as JSON.
package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

const (
	WSClients      = "ws_clients"
	PartiesLive    = "parties_live"
	EventsSent     = "events_sent"
	EventsDropped  = "events_dropped"
	SignalsRelayed = "signals_relayed"
	BlobsStored    = "blobs_stored"
	SearchRequests = "search_requests"
)

// Recorder is what the party engine and HTTP handlers count against.
type Recorder interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// Updater serializes counter updates through a channel drained by [Updater.Run].
type Updater struct {
	vars    *expvar.Map
	updates chan update
	done    chan struct{}
	once    sync.Once
}

type update struct {
	name  string
	value int64
}

// NewUpdater creates an updater with the default amply metrics registered.
//
// The map is not published to the global expvar registry so more than one updater can exist per process.
func NewUpdater() *Updater {
	u := &Updater{
		vars:    new(expvar.Map).Init(),
		updates: make(chan update, 512),
		done:    make(chan struct{}),
	}

	started := time.Now()
	u.vars.Set("uptime_ms", expvar.Func(func() any {
		return time.Since(started).Milliseconds()
	}))
	for _, name := range []string{WSClients, PartiesLive, EventsSent, EventsDropped, SignalsRelayed, BlobsStored, SearchRequests} {
		u.RegisterMetric(name)
	}
	return u
}

// Register mounts the JSON handler at GET /debug/vars.
func (u *Updater) Register(mux *http.ServeMux) {
	mux.Handle("GET /debug/vars", u.Handler())
}

func (u *Updater) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(u.Snapshot())
	})
}

// Snapshot decodes every metric into a plain map.
func (u *Updater) Snapshot() map[string]any {
	out := make(map[string]any)
	u.vars.Do(func(kv expvar.KeyValue) {
		var value any
		if err := json.Unmarshal([]byte(kv.Value.String()), &value); err == nil {
			out[kv.Key] = value
		}
	})
	return out
}

// Value returns the current value of an integer metric, or 0 when it is unknown.
func (u *Updater) Value(name string) int64 {
	if v, ok := u.vars.Get(name).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

func (u *Updater) RegisterMetric(name string) {
	if u.vars.Get(name) != nil {
		return
	}
	u.vars.Set(name, new(expvar.Int))
}

func (u *Updater) Incr(name string) { u.send(name, 1) }

func (u *Updater) Decr(name string) { u.send(name, -1) }

func (u *Updater) send(name string, value int64) {
	select {
	case u.updates <- update{name: name, value: value}:
	case <-u.done:
	}
}

// Run starts the goroutine applying updates. It returns immediately.
func (u *Updater) Run() {
	go u.loop()
}

func (u *Updater) loop() {
	for {
		select {
		case req := <-u.updates:
			metric, ok := u.vars.Get(req.name).(*expvar.Int)
			if !ok {
				metric = new(expvar.Int)
				u.vars.Set(req.name, metric)
			}
			metric.Add(req.value)
		case <-u.done:
			return
		}
	}
}

// Stop ends the update loop. Later updates are discarded.
func (u *Updater) Stop() {
	u.once.Do(func() { close(u.done) })
}

// Discard is a [Recorder] that records nothing.
type Discard struct{}

func (Discard) Incr(string)           {}
func (Discard) Decr(string)           {}
func (Discard) RegisterMetric(string) {}
func (Discard) Run()                  {}
