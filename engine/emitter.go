package engine

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"

	"perpsignal/database"
	models "perpsignal/database/models_pkg"
	"perpsignal/notify"
)

// Emitter persists an accepted signal proposal and publishes the
// creation notification onto the notify bus (§4.9, §9 "Notifier
// decoupling"). Persistence never blocks on or rolls back for
// notification failure — that delivery happens out-of-line in
// notify.Worker.
type Emitter struct {
	signals *database.SignalRepository
	node    *snowflake.Node
	bus     *notify.Bus
}

// NewEmitter builds an emitter. nodeID distinguishes signal-id generators
// across concurrent processes, should one ever be run.
func NewEmitter(signals *database.SignalRepository, bus *notify.Bus, nodeID int64) (*Emitter, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}
	return &Emitter{signals: signals, node: node, bus: bus}, nil
}

// EmitRequest is everything needed to persist and announce a new signal.
type EmitRequest struct {
	Instrument string
	Direction  Direction
	Entry      float64
	Placement  Placement
	Validation ValidationResult
	Features   FeatureTuple
}

// Emit assigns a fresh id, persists the OPEN signal, and fires the
// creation notification as fire-and-forget (§4.9).
func (e *Emitter) Emit(req EmitRequest) (*models.Signal, error) {
	now := time.Now()
	signal := &models.Signal{
		ID:                 e.node.Generate().Int64(),
		Instrument:         req.Instrument,
		Direction:          string(req.Direction),
		Priority:           string(req.Validation.Priority),
		Entry:              req.Entry,
		Stop:               req.Placement.Stop,
		TP1:                req.Placement.TP1,
		TP2:                req.Placement.TP2,
		Quality:            req.Validation.Quality,
		Imbalance:          req.Features.Imbalance,
		LargeTrades:        req.Features.LargeBuys + req.Features.LargeSells,
		VolumeIntensity:    req.Features.VolumePerMinute,
		StopReason:         req.Placement.StopReason,
		TP1Reason:          req.Placement.TP1Reason,
		TP2Reason:          req.Placement.TP2Reason,
		SupportAnchor:      req.Placement.SupportAnchor,
		ResistanceAnchor:   req.Placement.ResistanceAnchor,
		Status:             string(StatusOpen),
		PartialCloseStatus: string(PartialNone),
		CurrentStop:        req.Placement.Stop,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := e.signals.SaveSignal(signal); err != nil {
		return nil, fmt.Errorf("emit signal for %s: %w", req.Instrument, err)
	}

	msg := notify.Message{
		SignalID:   signal.ID,
		Kind:       "created",
		Instrument: signal.Instrument,
		Direction:  signal.Direction,
		Text:       fmt.Sprintf("%s %s entry=%.6f stop=%.6f tp1=%.6f tp2=%.6f quality=%.1f", signal.Priority, signal.Direction, signal.Entry, signal.Stop, signal.TP1, signal.TP2, signal.Quality),
	}

	e.bus.Publish(msg)

	return signal, nil
}
