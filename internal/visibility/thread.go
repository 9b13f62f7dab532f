package visibility

import "fmt"

// threadGuard records the render thread and checks later callers
// against it.
type threadGuard struct {
	owner uint64
	bound bool
}

func (g *threadGuard) bind() {
	g.owner = currentThreadID()
	g.bound = true
}

func (g *threadGuard) release() {
	g.bound = false
}

func (g *threadGuard) check(op string) {
	if !g.bound {
		return
	}
	if id := currentThreadID(); id != g.owner {
		panic(fmt.Sprintf("visibility: %s called from thread %d, render thread is %d", op, id, g.owner))
	}
}
