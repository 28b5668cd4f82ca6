package registry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"workbench/internal/dbclient"
	"workbench/internal/domain"
)

// ProbeResult is the payload of a successful connection test.
type ProbeResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Version      string `json:"version"`
	ResponseTime int64  `json:"responseTime"` // milliseconds
}

// Prober checks reachability of a connection without touching registry state.
type Prober interface {
	// Probe tests a not-yet-saved connection and reports the server version.
	Probe(ctx context.Context, in domain.ConnectionInput) (ProbeResult, error)

	// Dial checks that a saved connection can be reached before it is activated.
	Dial(ctx context.Context, conn domain.ConnectionDescriptor) error
}

// Sentinel inputs recognized by SimulatedProber.
const (
	MissingDatabase = "nonexistent"
	InvalidUsername = "invalid"
)

var simulatedVersions = map[domain.EngineKind]string{
	domain.EnginePostgreSQL: "14.2 (PostgreSQL)",
	domain.EngineMySQL:      "8.0.36 (MySQL)",
	domain.EngineSQLite:     "3.45.1 (SQLite)",
}

// SimulatedProber answers connection tests from sentinel values instead of the network.
type SimulatedProber struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedProber creates a SimulatedProber. The seed fixes the reported latencies.
func NewSimulatedProber(seed int64) *SimulatedProber {
	return &SimulatedProber{rng: rand.New(rand.NewSource(seed))}
}

func (p *SimulatedProber) Probe(_ context.Context, in domain.ConnectionInput) (ProbeResult, error) {
	switch {
	case in.Database == "" || (!in.Engine.FileBased() && in.Host == ""):
		return ProbeResult{}, domain.NewConnectionError(domain.FailureMissingParameters, nil)
	case in.Host == domain.UnreachableHost:
		return ProbeResult{}, domain.NewConnectionError(domain.FailureHostRefused, nil)
	case in.Database == MissingDatabase:
		return ProbeResult{}, domain.NewConnectionError(domain.FailureDatabaseMissing, nil)
	case in.Username == InvalidUsername:
		return ProbeResult{}, domain.NewConnectionError(domain.FailureBadCredentials, nil)
	}

	p.mu.Lock()
	latency := 50 + p.rng.Int63n(100)
	p.mu.Unlock()

	return ProbeResult{
		Success:      true,
		Message:      "Connection successful",
		Version:      simulatedVersions[in.Engine],
		ResponseTime: latency,
	}, nil
}

func (p *SimulatedProber) Dial(_ context.Context, conn domain.ConnectionDescriptor) error {
	if conn.Host == domain.UnreachableHost {
		return domain.NewConnectionError(domain.FailureUnreachable, nil)
	}
	return nil
}

// DriverProber tests connections by opening them with the real driver.
type DriverProber struct{}

func (DriverProber) Probe(ctx context.Context, in domain.ConnectionInput) (ProbeResult, error) {
	if in.Database == "" || (!in.Engine.FileBased() && in.Host == "") {
		return ProbeResult{}, domain.NewConnectionError(domain.FailureMissingParameters, nil)
	}

	c, err := dbclient.NewConnector(descriptorFromInput(in))
	if err != nil {
		return ProbeResult{}, domain.NewConnectionError(domain.FailureUnreachable, err)
	}
	defer c.Close()

	start := time.Now()
	if err := c.Ping(ctx); err != nil {
		return ProbeResult{}, domain.NewConnectionError(dbclient.ClassifyError(err), err)
	}
	elapsed := time.Since(start).Milliseconds()

	version, err := c.Version(ctx)
	if err != nil {
		version = string(in.Engine)
	}
	return ProbeResult{
		Success:      true,
		Message:      "Connection successful",
		Version:      version,
		ResponseTime: elapsed,
	}, nil
}

func (DriverProber) Dial(ctx context.Context, conn domain.ConnectionDescriptor) error {
	c, err := dbclient.NewConnector(conn)
	if err != nil {
		return domain.NewConnectionError(domain.FailureUnreachable, err)
	}
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		return &domain.ConnectionError{
			Failure: domain.FailureUnreachable,
			Message: domain.FailureUnreachable.Message() + ": " + dbclient.ClassifyError(err).Message(),
			Err:     err,
		}
	}
	return nil
}
