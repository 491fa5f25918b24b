package services

import (
	"math"

	"casino-core/internal/fairness"
	"casino-core/internal/models"
)

// MinesEngine runs the grid-reveal game: k mines hidden in n cells, the
// multiplier after r safe reveals being the product of the reciprocal
// survival probabilities scaled by the RTP factor.
type MinesEngine struct {
	rtp      float64
	gridSize int
}

func NewMinesEngine(rtp float64, gridSize int) *MinesEngine {
	return &MinesEngine{rtp: rtp, gridSize: gridSize}
}

func (e *MinesEngine) GridSize() int { return e.gridSize }

// MinePositions derives the secret mine set: minesCount distinct cells
// sampled without replacement from the round's digest stream.
func (e *MinesEngine) MinePositions(serverSeed, clientSeed string, nonce int64, minesCount int) []int {
	digest := fairness.Roll(serverSeed, clientSeed, nonce, "mines")
	return fairness.SampleDistinct(digest, e.gridSize, minesCount)
}

// NewBoard commits a seed pair and places the mines.
func (e *MinesEngine) NewBoard(clientSeed string, nonce int64, minesCount int) (*models.MinesState, error) {
	if minesCount < 1 || minesCount > e.gridSize-1 {
		return nil, ErrInvalidMines
	}

	pair, err := fairness.Commit()
	if err != nil {
		return nil, err
	}

	return &models.MinesState{
		ServerSeed:     pair.Seed,
		ServerSeedHash: pair.Hash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		GridSize:       e.gridSize,
		MinesCount:     minesCount,
		Mines:          e.MinePositions(pair.Seed, clientSeed, nonce, minesCount),
		Revealed:       []int{},
		Multiplier:     1.0,
	}, nil
}

// Multiplier after r safe reveals: rtp * Π_{i=0}^{r-1} (n-i)/(n-m-i).
// Each factor is the reciprocal of the probability of surviving the next
// draw, so the sequence is strictly increasing in r.
func (e *MinesEngine) Multiplier(revealed, minesCount int) float64 {
	if revealed == 0 {
		return 1.0
	}
	n := float64(e.gridSize)
	m := float64(minesCount)
	mult := e.rtp
	for i := 0; i < revealed; i++ {
		mult *= (n - float64(i)) / (n - m - float64(i))
	}
	return mult
}

// Reveal uncovers one cell. Returns true when the cell held a mine, which
// ends the hand; otherwise the revealed set and multiplier advance.
func (e *MinesEngine) Reveal(st *models.MinesState, pos int) (bool, error) {
	if pos < 0 || pos >= st.GridSize {
		return false, ErrInvalidPosition
	}
	if st.IsRevealed(pos) {
		return false, ErrAlreadyRevealed
	}

	if st.IsMine(pos) {
		return true, nil
	}

	st.Revealed = append(st.Revealed, pos)
	st.Multiplier = e.Multiplier(len(st.Revealed), st.MinesCount)
	return false, nil
}

// Payout for a cash-out after the current reveals.
func (e *MinesEngine) Payout(st *models.MinesState, bet int64) int64 {
	return int64(math.Floor(float64(bet) * st.Multiplier))
}
