package playground

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Port is a top-level port of a verilated model.
type Port struct {
	Name  string
	Dir   string // "in", "out" or "inout"
	Width int
}

// Simulation is the model produced by the simulate action. It is owned by
// the pipeline runner, which closes it before the next run.
type Simulation struct {
	Top   string
	Ports []Port

	mu     sync.Mutex
	closed bool
}

// portDecl matches verilator port macros such as VL_IN8(&a,7,0);
var portDecl = regexp.MustCompile(`VL_(IN|OUT|INOUT)(?:8|16|64|W)?\(&?(\w+),\s*(\d+),\s*(\d+)`)

// ParseModel reads the ports of a verilator model header.
func ParseModel(top, header string) (*Simulation, error) {
	sim := &Simulation{Top: top}
	scanner := bufio.NewScanner(strings.NewReader(header))
	for scanner.Scan() {
		m := portDecl.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		msb, _ := strconv.Atoi(m[3])
		lsb, _ := strconv.Atoi(m[4])
		sim.Ports = append(sim.Ports, Port{
			Name:  m[2],
			Dir:   strings.ToLower(m[1]),
			Width: msb - lsb + 1,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(sim.Ports) == 0 {
		return nil, fmt.Errorf("no ports found in model of %s", top)
	}
	return sim, nil
}

// Closed reports whether the simulation was released.
func (s *Simulation) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the simulation.
func (s *Simulation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// String summarises the model interface.
func (s *Simulation) String() string {
	parts := make([]string, 0, len(s.Ports))
	for _, p := range s.Ports {
		parts = append(parts, fmt.Sprintf("%s %s[%d]", p.Dir, p.Name, p.Width))
	}
	return fmt.Sprintf("%s(%s)", s.Top, strings.Join(parts, ", "))
}
