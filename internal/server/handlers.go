package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"rootfinder/internal/rootfinder"
	"rootfinder/internal/sse"
)

// Config задаёт значения по умолчанию для параметров, не указанных
// в запросе.
type Config struct {
	AbsoluteAccuracy      float64
	RelativeAccuracy      float64
	FunctionValueAccuracy float64
	MaxEvaluations        int

	// PlotPoints задаёт число точек предварительного графика функции.
	PlotPoints int
}

func DefaultConfig() Config {
	return Config{
		AbsoluteAccuracy:      1e-6,
		RelativeAccuracy:      1e-14,
		FunctionValueAccuracy: 1e-15,
		MaxEvaluations:        rootfinder.DefaultMaxEvaluations,
		PlotPoints:            400,
	}
}

// Server обслуживает запуски поиска корня.
type Server struct {
	cfg  Config
	log  *log.Logger
	hub  sse.Hub
	runs runs
	wg   sync.WaitGroup
}

func New(cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.PlotPoints < 2 {
		cfg.PlotPoints = 2
	}
	return &Server{cfg: cfg, log: logger}
}

// Wait ждёт завершения всех запущенных вычислений.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) withDefaults(p RunParams) RunParams {
	if p.AbsoluteAccuracy <= 0 {
		p.AbsoluteAccuracy = s.cfg.AbsoluteAccuracy
	}
	if p.RelativeAccuracy <= 0 {
		p.RelativeAccuracy = s.cfg.RelativeAccuracy
	}
	if p.FunctionValueAccuracy <= 0 {
		p.FunctionValueAccuracy = s.cfg.FunctionValueAccuracy
	}
	if p.MaxEvaluations <= 0 {
		p.MaxEvaluations = s.cfg.MaxEvaluations
	}
	if p.Method == "" {
		p.Method = "brent"
	}
	return p
}

// StartRun запускает новый поиск корня
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}

	var p RunParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "ошибка JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	p = s.withDefaults(p)

	if !(p.Lo <= p.Hi) {
		http.Error(w, "требуется lo <= hi", http.StatusBadRequest)
		return
	}
	if p.Initial != nil && !(p.Lo < *p.Initial && *p.Initial < p.Hi) {
		http.Error(w, "требуется lo < initial < hi", http.StatusBadRequest)
		return
	}

	var method func(rootfinder.Func, rootfinder.Problem, func(rootfinder.Iter) error) (rootfinder.Result, error)
	solver, err := rootfinder.NewSolver(p.AbsoluteAccuracy, p.RelativeAccuracy, p.FunctionValueAccuracy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch p.Method {
	case "brent":
		method = solver.Solve
	case "bisection":
		method = solver.Bisect
	default:
		http.Error(w, "неизвестный метод: "+p.Method, http.StatusBadRequest)
		return
	}

	f, err := rootfinder.NewEvalFunc(p.Func)
	if err != nil {
		http.Error(w, "ошибка в выражении функции: "+err.Error(), http.StatusBadRequest)
		return
	}

	// предварительно считаем значения функции для графика
	xs := make([]float64, s.cfg.PlotPoints)
	floats.Span(xs, p.Lo, p.Hi)
	ys := make([]*float64, len(xs))
	for i, x := range xs {
		y, err := f.Eval(x)
		if err != nil || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		ys[i] = &y
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	rs := &RunState{
		ID:        id,
		Params:    p,
		CreatedAt: time.Now(),
		Cancel:    cancel,
	}
	s.runs.save(rs)
	s.log.Printf("run %s: %s on [%g, %g], method %s, accuracy abs=%g rel=%g f=%g",
		id, p.Func, p.Lo, p.Hi, p.Method,
		solver.AbsoluteAccuracy(), solver.RelativeAccuracy(), solver.FunctionValueAccuracy())

	// асинхронный запуск поиска
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		s.publish(rs, map[string]any{
			"type": "start",
			"id":   id,
		})

		onIter := func(it rootfinder.Iter) error {
			select {
			case <-ctx.Done():
				return rootfinder.ErrStopped
			default:
			}

			rs.addIter(it)
			s.publish(rs, map[string]any{
				"type": "iter",
				"iter": it,
			})
			return nil
		}

		res, err := method(f, p.problem(), onIter)
		rs.finish(res, err)

		if err != nil {
			if errors.Is(err, rootfinder.ErrStopped) {
				s.log.Printf("run %s: stopped after %d evaluations", id, res.Evaluations)
				s.publish(rs, map[string]any{
					"type": "stopped",
				})
				return
			}

			s.log.Printf("run %s: %v", id, err)
			msg := map[string]any{
				"type":        "error",
				"err":         "ошибка при вычислении: " + err.Error(),
				"evaluations": res.Evaluations,
			}
			var se *rootfinder.SolverError
			if errors.As(err, &se) {
				msg["kind"] = se.Kind.String()
			}
			s.publish(rs, msg)
			return
		}

		s.log.Printf("run %s: root %g after %d evaluations", id, res.Root, res.Evaluations)
		s.publish(rs, map[string]any{
			"type":        "done",
			"x":           res.Root,
			"fx":          res.Value,
			"evaluations": res.Evaluations,
			"iterations":  res.Iterations,
		})
	}()

	resp := map[string]any{
		"id": id,
		"xs": xs,
		"ys": ys,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// publish пишет событие в журнал запуска и будит подписчиков.
// Сами события клиенты читают из журнала, канал хаба служит сигналом.
func (s *Server) publish(rs *RunState, payload map[string]any) {
	typ := payload["type"]
	msg, err := json.Marshal(payload)
	if err != nil {
		s.log.Printf("run %s: encode %v event: %v", rs.ID, typ, err)
		// NaN и Inf не кодируются в JSON; тип события сохраняем
		msg, _ = json.Marshal(map[string]any{"type": typ, "err": err.Error()})
	}
	rs.record(string(msg), typ == "done" || typ == "error" || typ == "stopped")
	s.hub.Publish(rs.ID, string(msg))
}

// StopRun прерывает поиск корня
func (s *Server) StopRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}
	rs := s.lookup(w, r)
	if rs == nil {
		return
	}

	if rs.Cancel != nil {
		rs.Cancel()
	}

	w.WriteHeader(http.StatusNoContent)
}

// Result возвращает текущее состояние запуска
func (s *Server) Result(w http.ResponseWriter, r *http.Request) {
	rs := s.lookup(w, r)
	if rs == nil {
		return
	}

	iters, res, done, err := rs.snapshot()
	resp := map[string]any{
		"id":         rs.ID,
		"params":     rs.Params,
		"createdAt":  rs.CreatedAt,
		"done":       done,
		"iterations": len(iters),
	}
	switch {
	case done && err != nil:
		resp["err"] = err.Error()
		resp["evaluations"] = res.Evaluations
		var se *rootfinder.SolverError
		if errors.As(err, &se) {
			resp["kind"] = se.Kind.String()
		}
	case done:
		resp["result"] = res
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Printf("run %s: encode result: %v", rs.ID, err)
	}
}

// ExportCSV экспортирует итерации в CSV
func (s *Server) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rs := s.lookup(w, r)
	if rs == nil {
		return
	}
	iters, _, _, _ := rs.snapshot()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=iterations_"+rs.ID+".csv")

	cw := csv.NewWriter(w)
	defer cw.Flush()

	_ = cw.Write([]string{"k", "kind", "a", "b", "c", "f(b)", "|c-b|", "evaluations"})

	for _, it := range iters {
		_ = cw.Write([]string{
			strconv.Itoa(it.K),
			it.Kind.String(),
			fmtFloat(it.A),
			fmtFloat(it.B),
			fmtFloat(it.C),
			fmtFloat(it.FB),
			fmtFloat(it.Width),
			strconv.Itoa(it.Evaluations),
		})
	}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 16, 64)
}

// Stream отдаёт события запуска через SSE. Клиент, подключившийся
// позже, сначала получает уже опубликованные события. Ответ
// завершается после done, error или stopped.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	rs := s.lookup(w, r)
	if rs == nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// подписка раньше чтения журнала: событие, записанное между ними,
	// всё равно разбудит цикл
	wake, cancel := s.hub.Subscribe(rs.ID)
	defer cancel()

	// заголовки уходят клиенту сразу, до первого события
	flusher.Flush()

	ctx := r.Context()
	next := 0

	for {
		events, closed := rs.eventsFrom(next)
		for _, msg := range events {
			fmt.Fprintf(w, "event: msg\n")
			fmt.Fprintf(w, "data: %s\n\n", msg)
		}
		next += len(events)
		if len(events) > 0 {
			flusher.Flush()
		}
		if closed {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		}
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *RunState {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return nil
	}

	rs := s.runs.get(id)
	if rs == nil {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return nil
	}
	return rs
}
