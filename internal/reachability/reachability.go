// Package reachability decides statically which entry operations and sinks
// the composed routing table can invoke.
package reachability

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/scenario"
)

// Named is implemented by endpoints bound to an entry operation.
type Named interface {
	OperationName() string
}

// Route is one mounted endpoint.
type Route struct {
	Method    string
	Pattern   string
	Operation string
}

// Report is the result of an analysis.
type Report struct {
	Routes []Route

	ReachableOperations   []string
	UnreachableOperations []string

	ReachableSinks   []domain.SinkID
	UnreachableSinks []domain.SinkID

	// RoutesBySink lists the routes that can reach each reachable sink.
	RoutesBySink map[domain.SinkID][]Route
}

// OperationReachable reports whether name is invoked by a mounted route.
func (r Report) OperationReachable(name string) bool {
	return contains(r.ReachableOperations, name)
}

// SinkReachable reports whether id is invoked by a mounted route.
func (r Report) SinkReachable(id domain.SinkID) bool {
	return contains(r.ReachableSinks, id)
}

// Analyze walks routes and resolves every endpoint against catalog. An
// endpoint naming an operation missing from the catalog is an error; one
// not bound to any operation is ignored.
func Analyze(routes chi.Routes, catalog []scenario.Operation) (Report, error) {
	ops := make(map[string]scenario.Operation, len(catalog))
	for _, op := range catalog {
		ops[op.Name] = op
	}

	report := Report{RoutesBySink: map[domain.SinkID][]Route{}}
	reachedOps := map[string]bool{}
	reachedSinks := map[domain.SinkID]bool{}

	err := chi.Walk(routes, func(method, pattern string, handler http.Handler, _ ...func(http.Handler) http.Handler) error {
		named, ok := handler.(Named)
		if !ok {
			return nil
		}
		op, ok := ops[named.OperationName()]
		if !ok {
			return fmt.Errorf("route %s %s names unknown operation %q", method, pattern, named.OperationName())
		}

		rt := Route{Method: method, Pattern: pattern, Operation: op.Name}
		report.Routes = append(report.Routes, rt)
		reachedOps[op.Name] = true
		for _, s := range op.Sinks {
			reachedSinks[s] = true
			report.RoutesBySink[s] = append(report.RoutesBySink[s], rt)
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	for _, op := range catalog {
		if reachedOps[op.Name] {
			report.ReachableOperations = append(report.ReachableOperations, op.Name)
		} else {
			report.UnreachableOperations = append(report.UnreachableOperations, op.Name)
		}
	}
	for _, s := range domain.AllSinks {
		if reachedSinks[s] {
			report.ReachableSinks = append(report.ReachableSinks, s)
		} else {
			report.UnreachableSinks = append(report.UnreachableSinks, s)
		}
	}

	sort.Slice(report.Routes, func(i, j int) bool {
		if report.Routes[i].Pattern != report.Routes[j].Pattern {
			return report.Routes[i].Pattern < report.Routes[j].Pattern
		}
		return report.Routes[i].Method < report.Routes[j].Method
	})
	return report, nil
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
