package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"rootfinder/internal/rootfinder"
)

var (
	expr    = flag.String("f", "", "функция f(x), например \"sin(x)\" или \"x ** 3 - 2 * x - 5\"")
	lo      = flag.Float64("lo", math.NaN(), "левый конец интервала")
	hi      = flag.Float64("hi", math.NaN(), "правый конец интервала")
	guess   = flag.Float64("guess", math.NaN(), "начальное приближение внутри (lo, hi)")
	absAcc  = flag.Float64("abs", 1e-6, "абсолютная точность")
	relAcc  = flag.Float64("rel", 1e-14, "относительная точность")
	fva     = flag.Float64("fva", 1e-15, "точность по значению функции")
	maxEval = flag.Int("maxeval", rootfinder.DefaultMaxEvaluations, "максимальное число вычислений функции")
	method  = flag.String("method", "brent", "метод: brent или bisection")
	trace   = flag.Bool("v", false, "печатать итерации")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s -f <expr> -lo <a> -hi <b> [-guess <x0>] [flags]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	log.SetFlags(0)

	if *expr == "" || math.IsNaN(*lo) || math.IsNaN(*hi) {
		usage()
		os.Exit(2)
	}

	f, err := rootfinder.NewEvalFunc(*expr)
	if err != nil {
		log.Fatalf("ошибка в выражении функции: %v", err)
	}
	solver, err := rootfinder.NewSolver(*absAcc, *relAcc, *fva)
	if err != nil {
		log.Fatal(err)
	}

	p := rootfinder.Problem{Lo: *lo, Hi: *hi, MaxEvaluations: *maxEval}
	if !math.IsNaN(*guess) {
		p.Initial = *guess
		p.HasInitial = true
	}

	var onIter func(rootfinder.Iter) error
	if *trace {
		fmt.Printf("abs=%g rel=%g f=%g\n", solver.AbsoluteAccuracy(), solver.RelativeAccuracy(), solver.FunctionValueAccuracy())
		onIter = func(it rootfinder.Iter) error {
			fmt.Printf("%3d %-17s b=%-22.16g f(b)=%-12.4g |c-b|=%.3g\n", it.K, it.Kind, it.B, it.FB, it.Width)
			return nil
		}
	}

	var res rootfinder.Result
	switch *method {
	case "brent":
		res, err = solver.Solve(f, p, onIter)
	case "bisection":
		res, err = solver.Bisect(f, p, onIter)
	default:
		log.Fatalf("неизвестный метод: %s", *method)
	}
	if err != nil {
		var se *rootfinder.SolverError
		if errors.As(err, &se) {
			log.Fatalf("%s: %v", se.Kind, err)
		}
		log.Fatal(err)
	}

	fmt.Printf("x = %.16g\nf(x) = %g\nevaluations = %d\n", res.Root, res.Value, res.Evaluations)
}
