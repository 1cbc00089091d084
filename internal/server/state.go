package server

import (
	"context"
	"sync"
	"time"

	"rootfinder/internal/rootfinder"
)

// параметры запуска поиска корня
type RunParams struct {
	Func    string   `json:"func"`
	Lo      float64  `json:"lo"`
	Hi      float64  `json:"hi"`
	Initial *float64 `json:"initial,omitempty"`

	AbsoluteAccuracy      float64 `json:"absoluteAccuracy"`
	RelativeAccuracy      float64 `json:"relativeAccuracy"`
	FunctionValueAccuracy float64 `json:"functionValueAccuracy"`
	MaxEvaluations        int     `json:"maxEvaluations"`

	// Method: "brent" (по умолчанию) или "bisection"
	Method string `json:"method"`
}

func (p RunParams) problem() rootfinder.Problem {
	pr := rootfinder.Problem{Lo: p.Lo, Hi: p.Hi, MaxEvaluations: p.MaxEvaluations}
	if p.Initial != nil {
		pr.Initial = *p.Initial
		pr.HasInitial = true
	}
	return pr
}

// состояние одного запуска
type RunState struct {
	ID        string
	Params    RunParams
	CreatedAt time.Time
	Cancel    context.CancelFunc

	mu     sync.Mutex
	iters  []rootfinder.Iter
	result rootfinder.Result
	err    error
	done   bool

	// события в порядке публикации; closed ставится вместе с последним
	events []string
	closed bool
}

func (rs *RunState) addIter(it rootfinder.Iter) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.iters = append(rs.iters, it)
}

func (rs *RunState) finish(res rootfinder.Result, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.result = res
	rs.err = err
	rs.done = true
}

// record дописывает событие в журнал запуска. last отмечает финальное
// событие (done, error или stopped).
func (rs *RunState) record(msg string, last bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, msg)
	rs.closed = rs.closed || last
}

// eventsFrom возвращает события начиная с номера n и признак того,
// что журнал закрыт.
func (rs *RunState) eventsFrom(n int) ([]string, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if n > len(rs.events) {
		n = len(rs.events)
	}
	return append([]string(nil), rs.events[n:]...), rs.closed
}

// snapshot возвращает копию состояния, безопасную для чтения.
func (rs *RunState) snapshot() (iters []rootfinder.Iter, res rootfinder.Result, done bool, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]rootfinder.Iter(nil), rs.iters...), rs.result, rs.done, rs.err
}

// runs хранит запуски по id
type runs struct {
	mu sync.Mutex
	m  map[string]*RunState
}

func (r *runs) save(rs *RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = map[string]*RunState{}
	}
	r.m[rs.ID] = rs
}

func (r *runs) get(id string) *RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id]
}
