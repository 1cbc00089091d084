package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rootfinder/internal/server"
)

func main() {
	cfg := server.DefaultConfig()

	addr := flag.String("addr", ":8080", "адрес HTTP-сервера")
	flag.Float64Var(&cfg.AbsoluteAccuracy, "abs", cfg.AbsoluteAccuracy, "абсолютная точность по умолчанию")
	flag.Float64Var(&cfg.RelativeAccuracy, "rel", cfg.RelativeAccuracy, "относительная точность по умолчанию")
	flag.Float64Var(&cfg.FunctionValueAccuracy, "fva", cfg.FunctionValueAccuracy, "точность по значению функции по умолчанию")
	flag.IntVar(&cfg.MaxEvaluations, "maxeval", cfg.MaxEvaluations, "максимальное число вычислений функции по умолчанию")
	flag.IntVar(&cfg.PlotPoints, "plot", cfg.PlotPoints, "число точек графика")
	flag.Parse()

	srv := server.New(cfg, log.Default())
	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           server.NewRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Сервер запущен на http://localhost%s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Остановка сервера")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	srv.Wait()
}
