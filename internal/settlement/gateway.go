package settlement

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"welfare/pkg/domain"
)

// ErrDeclined is returned by a Disburser when the bank refuses a transfer.
var ErrDeclined = errors.New("bank transaction declined")

// Disbursement is one transfer request.
type Disbursement struct {
	MatchID     domain.MatchID
	CitizenID   domain.CitizenID
	Amount      int64
	BankAccount string
	IFSC        string
}

// Disburser moves money. Any returned error means the transfer did not
// happen.
type Disburser interface {
	Disburse(ctx context.Context, d Disbursement) error
}

// SimulatedGateway succeeds with a fixed probability.
type SimulatedGateway struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	successRate float64
}

// NewSimulatedGateway builds a gateway from a success probability in [0,1]
// and a random seed. Seed 0 seeds from the clock.
func NewSimulatedGateway(successRate float64, seed int64) *SimulatedGateway {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedGateway{
		rnd:         rand.New(rand.NewSource(seed)), //nolint:gosec // simulation only
		successRate: successRate,
	}
}

func (g *SimulatedGateway) Disburse(ctx context.Context, _ Disbursement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	roll := g.rnd.Float64()
	g.mu.Unlock()
	if roll >= g.successRate {
		return ErrDeclined
	}
	return nil
}

// TxIDGenerator issues transaction IDs of the form TXN_<unixmillis>_<uuid>.
// The random UUID keeps IDs unique across processes settling in the same
// millisecond; the ledger's unique index on transaction_id backs it.
type TxIDGenerator struct {
	newID func() uuid.UUID
}

func NewTxIDGenerator() *TxIDGenerator {
	return &TxIDGenerator{newID: uuid.New}
}

func (g *TxIDGenerator) Next(now time.Time) string {
	id := g.newID()
	return fmt.Sprintf("TXN_%d_%s", now.UnixMilli(), hex.EncodeToString(id[:]))
}
