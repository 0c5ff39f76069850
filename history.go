package abc

import (
	"fmt"
)

const (
	// TblGens is the name of the sql table that contains one row per
	// generation: the threshold, the accepted count, the simulations spent,
	// and the size decided for the following generation.
	TblGens = "abcgens"
	// TblModels is the name of the sql table that contains per-generation
	// model probabilities.
	TblModels = "abcmodels"
	// TblParticles is the name of the sql table that contains the accepted
	// particles for each generation: weight, distance, and position.  There
	// is one x column per parameter dimension of the widest model; narrower
	// models are padded with nulls.
	TblParticles = "abcparticles"
)

func (s *Solver) maxdim() int {
	d := 0
	for _, m := range s.Models {
		if m.Prior.Dim() > d {
			d = m.Prior.Dim()
		}
	}
	return d
}

func (s *Solver) initdb() {
	if s.Db == nil {
		return
	}

	q := "CREATE TABLE IF NOT EXISTS " + TblGens + " (gen INTEGER, eps REAL, nparticles INTEGER, nsim INTEGER, nextsize INTEGER);"
	_, err := s.Db.Exec(q)
	panicif(err)

	q = "CREATE TABLE IF NOT EXISTS " + TblModels + " (gen INTEGER, model INTEGER, prob REAL);"
	_, err = s.Db.Exec(q)
	panicif(err)

	q = "CREATE TABLE IF NOT EXISTS " + TblParticles + " (gen INTEGER, model INTEGER, weight REAL, dist REAL" + s.xdbsql("define") + ");"
	_, err = s.Db.Exec(q)
	panicif(err)
}

func (s *Solver) xdbsql(op string) string {
	q := ""
	for i := 0; i < s.maxdim(); i++ {
		if op == "?" {
			q += ",?"
		} else if op == "define" {
			q += fmt.Sprintf(",x%v REAL", i)
		} else if op == "x" {
			q += fmt.Sprintf(",x%v", i)
		} else {
			panic("invalid db op " + op)
		}
	}
	return q
}

func pos2iface(pos []float64, dim int) []interface{} {
	iface := []interface{}{}
	for _, v := range pos {
		iface = append(iface, v)
	}
	for len(iface) < dim {
		iface = append(iface, nil)
	}
	return iface
}

func (s *Solver) updateDb(st GenStats, pop Population) {
	if s.Db == nil {
		return
	}

	tx, err := s.Db.Begin()
	panicif(err)
	defer tx.Commit()

	q := "INSERT INTO " + TblGens + " (gen,eps,nparticles,nsim,nextsize) VALUES (?,?,?,?,?);"
	_, err = tx.Exec(q, st.Gen, st.Eps, st.N, st.Nsim, st.NextN)
	panicif(err)

	q = "INSERT INTO " + TblModels + " (gen,model,prob) VALUES (?,?,?);"
	for m, pr := range st.Probs {
		_, err = tx.Exec(q, st.Gen, m, pr)
		panicif(err)
	}

	q = "INSERT INTO " + TblParticles + " (gen,model,weight,dist" + s.xdbsql("x") + ") VALUES (?,?,?,?" + s.xdbsql("?") + ");"
	for _, p := range pop {
		args := []interface{}{st.Gen, p.Model, p.W, p.Dist}
		args = append(args, pos2iface(p.Par.Pos(), s.maxdim())...)
		_, err = tx.Exec(q, args...)
		panicif(err)
	}
}

// TODO: remove all uses of this
func panicif(err error) {
	if err != nil {
		panic(err.Error())
	}
}
