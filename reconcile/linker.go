/*
Operator resolution loop.

PURPOSE:
  When the deterministic rules leave a link null, a person decides. This file
  implements the two interactive passes:

  1. Customer pass: for every record with a null customer link, show markings
     resembling the record's label and ask for a customer id. A confirmed id
     is recorded on the marking alias and propagated to every record sharing
     the label, so the same question is never asked twice.
  2. Shipment pass: for every record with a null shipment link, show shipment
     candidates found by the relaxed match strategies and ask for a shipment
     id. A confirmed id is applied to that record alone.

  The decision source is abstract: production wires a console port, tests
  wire a scripted one.

PROTOCOL:
  The port answers every prompt with one of
    link <id>   apply the link after confirmation
    skip        leave this record, do not ask about it again this run
    next        stop asking about this kind this run
    exit        stop the whole run
  An unconfirmed or unknown id re-opens the same prompt.
*/
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// DECISION PORT
// =============================================================================

// DecisionKind is the operator's verdict on one prompt.
type DecisionKind int

const (
	DecisionLink DecisionKind = iota
	DecisionSkip
	DecisionNext
	DecisionExit
)

// Decision is one operator answer. ID is meaningful only for DecisionLink.
type Decision struct {
	Kind DecisionKind
	ID   int64
}

// Candidate is one suggested row shown to the operator.
type Candidate struct {
	Label  string // strategy heading, may repeat across candidates
	ID     int64
	Detail string
}

// Prompt is everything the operator needs to decide one record.
type Prompt struct {
	Field      string // the link being filled, customer_id or shipment_id
	Record     string // printable detail of the record being updated
	Candidates []Candidate
}

// DecisionPort answers prompts. Implementations must block in Ask until the
// operator produces a valid decision and in Confirm until a clear yes or no.
type DecisionPort interface {
	Ask(ctx context.Context, p Prompt) (Decision, error)
	Confirm(ctx context.Context, detail string) (bool, error)
}

// =============================================================================
// RUN CONTEXT
// =============================================================================

// RunContext carries the per-run skip sets. Skips are scoped to one run:
// a skipped record is offered again on the next run.
type RunContext struct {
	RunID   string
	skipped map[RecordKind]map[int64]bool
	aborted bool
}

func NewRunContext(runID string) *RunContext {
	return &RunContext{
		RunID:   runID,
		skipped: make(map[RecordKind]map[int64]bool),
	}
}

func (rc *RunContext) Skip(kind RecordKind, id int64) {
	if rc.skipped[kind] == nil {
		rc.skipped[kind] = make(map[int64]bool)
	}
	rc.skipped[kind][id] = true
}

func (rc *RunContext) Skipped(kind RecordKind) []int64 {
	ids := make([]int64, 0, len(rc.skipped[kind]))
	for id := range rc.skipped[kind] {
		ids = append(ids, id)
	}
	return ids
}

func (rc *RunContext) IsSkipped(kind RecordKind, id int64) bool {
	return rc.skipped[kind][id]
}

// Abort marks the run dead. Subsequent passes return immediately.
func (rc *RunContext) Abort()        { rc.aborted = true }
func (rc *RunContext) Aborted() bool { return rc.aborted }

// =============================================================================
// LINKER
// =============================================================================

// Linker drives the operator passes against a store.
type Linker struct {
	Store  Store
	Port   DecisionPort
	Log    *ExportLog
	Logger *logrus.Logger
}

// ResolveCustomers runs the customer pass over every kind that carries a
// customer link, in the declared order.
func (l *Linker) ResolveCustomers(ctx context.Context, rc *RunContext) error {
	for _, kind := range CustomerPassOrder {
		if !kinds[kind].customerPass {
			continue
		}
		if err := l.resolveCustomersFor(ctx, rc, kind); err != nil {
			if IsAborted(err) {
				rc.Abort()
			}
			return err
		}
		if rc.Aborted() {
			return ErrRunAborted
		}
	}
	return nil
}

func (l *Linker) resolveCustomersFor(ctx context.Context, rc *RunContext, kind RecordKind) error {
	for {
		rec, err := l.Store.NextMissingCustomer(ctx, kind, rc.Skipped(kind))
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}

		candidates, err := l.Store.CandidateMarkings(ctx, rec.Marking)
		if err != nil {
			return err
		}
		prompt := Prompt{Field: "customer_id", Record: rec.Detail}
		for _, m := range candidates {
			prompt.Candidates = append(prompt.Candidates, Candidate{
				Label:  "Found a matching marking:",
				ID:     *m.CustomerID,
				Detail: m.Describe(),
			})
		}

		decision, alias, err := l.askCustomer(ctx, prompt)
		if err != nil {
			return err
		}
		switch decision.Kind {
		case DecisionSkip:
			rc.Skip(kind, rec.ID)
			continue
		case DecisionNext:
			return nil
		case DecisionExit:
			return ErrRunAborted
		}

		if err := l.applyCustomer(ctx, kind, rec, decision.ID, alias); err != nil {
			return err
		}
	}
}

// askCustomer loops the prompt until the operator either refuses it or
// confirms an id that maps to a known customer alias.
func (l *Linker) askCustomer(ctx context.Context, p Prompt) (Decision, *Marking, error) {
	for {
		decision, err := l.Port.Ask(ctx, p)
		if err != nil {
			return Decision{}, nil, err
		}
		if decision.Kind != DecisionLink {
			return decision, nil, nil
		}

		alias, err := l.Store.AliasForCustomer(ctx, decision.ID)
		if errors.Is(err, ErrNotFound) {
			l.Logger.WithField("customer_id", decision.ID).
				Warn("no resolved marking for this customer id, asking again")
			continue
		}
		if err != nil {
			return Decision{}, nil, err
		}

		ok, err := l.Port.Confirm(ctx, fmt.Sprintf(
			"Link to customer %d?\nName: %s\nAddress: %s",
			decision.ID, alias.CustomerName, alias.CustomerAddress))
		if err != nil {
			return Decision{}, nil, err
		}
		if !ok {
			continue
		}
		return decision, alias, nil
	}
}

// applyCustomer records the operator's verdict: ensure a resolved marking
// alias for the label exists, then propagate it to every record of the kind
// sharing the label. The prompted record is updated by the propagation.
func (l *Linker) applyCustomer(ctx context.Context, kind RecordKind, rec *Unresolved, customerID int64, alias *Marking) error {
	// The alias is the single source of resolution: when the label is
	// already bound to a customer, that binding wins over the operator's
	// pick and is what gets logged.
	applied := customerID
	existing, err := l.Store.MarkingByName(ctx, rec.Marking)
	switch {
	case errors.Is(err, ErrNotFound):
		created := Marking{
			Name:            rec.Marking,
			CustomerName:    alias.CustomerName,
			CustomerAddress: alias.CustomerAddress,
			CustomerID:      &customerID,
		}
		if _, err := l.Store.InsertMarking(ctx, created); err != nil {
			return err
		}
		l.Log.NewAlias(created)
	case err != nil:
		return err
	case existing.CustomerID == nil:
		if err := l.Store.SetMarkingCustomer(ctx, existing.ID, customerID); err != nil {
			return err
		}
	default:
		applied = *existing.CustomerID
	}

	n, err := l.Store.LinkCustomerByMarking(ctx, kind, rec.Marking)
	if err != nil {
		return err
	}
	l.Logger.WithFields(logrus.Fields{
		"kind":        kind,
		"marking":     rec.Marking,
		"customer_id": applied,
		"records":     n,
	}).Info("customer link applied")
	l.Log.LinkedCustomer(kind, rec, applied, alias)
	return nil
}

// ResolveShipments runs the shipment pass over every shipment-linked kind.
func (l *Linker) ResolveShipments(ctx context.Context, rc *RunContext) error {
	for _, kind := range ShipmentPassOrder {
		if !kinds[kind].shipmentPass {
			continue
		}
		if err := l.resolveShipmentsFor(ctx, rc, kind); err != nil {
			if IsAborted(err) {
				rc.Abort()
			}
			return err
		}
		if rc.Aborted() {
			return ErrRunAborted
		}
	}
	return nil
}

func (l *Linker) resolveShipmentsFor(ctx context.Context, rc *RunContext, kind RecordKind) error {
	records, err := l.Store.MissingShipmentRecords(ctx, kind, rc.Skipped(kind))
	if err != nil {
		return err
	}
	for i := range records {
		rec := &records[i]
		if rc.IsSkipped(kind, rec.ID) {
			continue
		}

		prompt := Prompt{Field: "shipment_id", Record: rec.Detail}
		candidates, err := l.shipmentCandidates(ctx, kind, rec)
		if err != nil {
			return err
		}
		prompt.Candidates = candidates

		decision, picked, err := l.askShipment(ctx, prompt)
		if err != nil {
			return err
		}
		switch decision.Kind {
		case DecisionSkip:
			rc.Skip(kind, rec.ID)
			continue
		case DecisionNext:
			return nil
		case DecisionExit:
			return ErrRunAborted
		}

		if err := l.Store.SetShipmentLink(ctx, kind, rec.ID, picked.ID); err != nil {
			return err
		}
		l.Logger.WithFields(logrus.Fields{
			"kind":        kind,
			"record_id":   rec.ID,
			"shipment_id": picked.ID,
		}).Info("shipment link applied")
		l.Log.LinkedShipment(kind, rec, picked.ID)
	}
	return nil
}

// shipmentCandidates evaluates every match strategy against the record.
// Strategies overlap on purpose, so the same shipment may appear under
// several headings.
func (l *Linker) shipmentCandidates(ctx context.Context, kind RecordKind, rec *Unresolved) ([]Candidate, error) {
	var out []Candidate
	for _, strat := range ShipmentStrategies {
		f := ShipmentFilter{}
		if strat.ByAWB {
			awb := rec.AWB
			f.AWB = &awb
		}
		if strat.ByMarking {
			marking := rec.Marking
			f.Marking = &marking
		}
		if strat.ByBox {
			box := rec.FullBox
			f.BoxFull = &box
		}
		date := rec.Date
		if kinds[kind].dateConstraint == ShipmentAfterRecord {
			f.DateAfter = &date
		} else {
			f.DateBefore = &date
		}

		matches, err := l.Store.ShipmentsByMatch(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, s := range matches {
			out = append(out, Candidate{Label: strat.Label, ID: s.ID, Detail: s.Describe()})
		}
	}
	return out, nil
}

// askShipment loops the prompt until the operator refuses it or confirms an
// existing shipment id.
func (l *Linker) askShipment(ctx context.Context, p Prompt) (Decision, *Shipment, error) {
	for {
		decision, err := l.Port.Ask(ctx, p)
		if err != nil {
			return Decision{}, nil, err
		}
		if decision.Kind != DecisionLink {
			return decision, nil, nil
		}

		picked, err := l.Store.ShipmentByID(ctx, decision.ID)
		if errors.Is(err, ErrNotFound) {
			l.Logger.WithField("shipment_id", decision.ID).
				Warn("no shipment with this id, asking again")
			continue
		}
		if err != nil {
			return Decision{}, nil, err
		}

		ok, err := l.Port.Confirm(ctx, "Link to this shipment?\n"+picked.Describe())
		if err != nil {
			return Decision{}, nil, err
		}
		if !ok {
			continue
		}
		return decision, picked, nil
	}
}
