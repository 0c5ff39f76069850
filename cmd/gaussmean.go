package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mxk/go-sqlite/sqlite3"
	"golang.org/x/exp/rand"

	"github.com/rwcarlsen/abc"
	"github.com/rwcarlsen/abc/bench"
	"github.com/rwcarlsen/abc/visual"
)

const (
	npart  = 200
	ngen   = 8
	calib  = 1000
	dbfile = "gaussmean.sqlite"
)

func main() {
	abc.Rand = rand.New(rand.NewSource(uint64(time.Now().Unix())))

	os.Remove(dbfile)
	db, err := sql.Open("sqlite3", dbfile)
	if err != nil {
		panic(err.Error())
	}
	defer db.Close()

	fn := bench.NewGaussMean()
	s := bench.Solve(fn, npart, ngen)
	s.Calib = calib
	s.Sampler = abc.Parallel{W: 4}
	s.Db = db

	for s.Next() {
		st := s.Stats()[s.Gen()-1]
		fmt.Printf("gen %v: eps=%.4g accepted=%v nsim=%v next=%v\n", st.Gen, st.Eps, st.N, st.Nsim, st.NextN)
	}
	if err := s.Err(); err != nil {
		panic(err.Error())
	}

	pop := s.Pop()
	fmt.Printf("posterior mean: %.4g (exact %.4g)\n", pop.Mean()[0], fn.PosteriorMean())
	fmt.Printf("effective sample size: %.1f of %v\n", pop.ESS(), len(pop))

	if err := visual.SaveTrace(s.Stats(), "trace.png"); err != nil {
		panic(err.Error())
	}
	if err := visual.SavePosterior(pop, 0, "posterior.png"); err != nil {
		panic(err.Error())
	}
}
