package query

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"

	"workbench/internal/domain"
)

// missingRelation matches a read from the "nonexistent" table, the fixture for a failing statement.
var missingRelation = regexp.MustCompile(`(?i)\b(from|join|into|update)\s+nonexistent\b`)

// SimulatedBackend answers statements from fixture data chosen by the table names
// the SQL mentions. It never touches the network.
type SimulatedBackend struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedBackend creates a SimulatedBackend. The seed fixes random counts.
func NewSimulatedBackend(seed int64) *SimulatedBackend {
	return &SimulatedBackend{rng: rand.New(rand.NewSource(seed))}
}

func (b *SimulatedBackend) intn(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Intn(n)
}

func (b *SimulatedBackend) Query(ctx context.Context, _ domain.ConnectionDescriptor, sql string) ([]string, []domain.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if missingRelation.MatchString(sql) {
		return nil, nil, fmt.Errorf(`relation "nonexistent" does not exist`)
	}

	lower := strings.ToLower(sql)
	switch {
	case strings.Contains(lower, "users"):
		cols, rows := fixtureUsers.copyRows()
		return cols, rows, nil
	case strings.Contains(lower, "products"):
		cols, rows := fixtureProducts.copyRows()
		return cols, rows, nil
	case strings.Contains(lower, "orders"):
		cols, rows := fixtureOrders.copyRows()
		return cols, rows, nil
	case strings.Contains(lower, "count(*)"):
		return []string{"count"}, []domain.Row{{"count": 100 + b.intn(1000)}}, nil
	default:
		cols, rows := fixtureDefault.copyRows()
		return cols, rows, nil
	}
}

// QueryReadOnly answers like Query; fixtures never change.
func (b *SimulatedBackend) QueryReadOnly(ctx context.Context, conn domain.ConnectionDescriptor, sql string) ([]string, []domain.Row, error) {
	return b.Query(ctx, conn, sql)
}

func (b *SimulatedBackend) Exec(ctx context.Context, _ domain.ConnectionDescriptor, sql string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if missingRelation.MatchString(sql) {
		return 0, fmt.Errorf(`relation "nonexistent" does not exist`)
	}
	switch Classify(sql) {
	case domain.StatementInsert:
		return 1, nil
	case domain.StatementUpdate:
		return int64(1 + b.intn(5)), nil
	case domain.StatementDelete:
		return int64(1 + b.intn(3)), nil
	default:
		return 0, nil
	}
}

func (b *SimulatedBackend) Tables(ctx context.Context, _ domain.ConnectionDescriptor) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), fixtureTables...), nil
}
