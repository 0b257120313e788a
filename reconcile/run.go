/*
Batch orchestration.

PURPOSE:
  Runner ties the engine together. One call to Run ingests a batch with
  deduplication, then drives every rule chain to its fixpoint for this batch.
  A separate call to Resolve opens the operator passes, so non-interactive
  surfaces (the HTTP import endpoint) can run the deterministic phase alone.

ORDER OF WORK:
  1. Insert non-duplicate records of the batch.
  2. Run all chains, markings first: resolved aliases unlock customer fills
     on every other table, shipment links unlock country and pricing fills.
  3. Mark zero-cargo balance records with the sentinel links.
  4. (Resolve) customer pass, then shipment pass.
*/
package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChainOrder is the fixed order chains run in after every batch.
var ChainOrder = []RecordKind{
	KindMarking,
	KindShipment,
	KindExpenseForever,
	KindExpenseIphandlers,
	KindSale,
}

// Batch is one homogeneous set of normalized incoming records. Exactly the
// slice matching Kind is consulted.
type Batch struct {
	Kind RecordKind

	Shipments          []Shipment
	ExpensesForever    []ExpenseForever
	ExpensesIphandlers []ExpenseIphandlers
	Sales              []Sale
	Markings           []Marking
}

// Len returns the number of records the batch carries for its kind.
func (b Batch) Len() int {
	switch b.Kind {
	case KindShipment:
		return len(b.Shipments)
	case KindExpenseForever:
		return len(b.ExpensesForever)
	case KindExpenseIphandlers:
		return len(b.ExpensesIphandlers)
	case KindSale:
		return len(b.Sales)
	case KindMarking:
		return len(b.Markings)
	}
	return 0
}

// Summary reports what one run did.
type Summary struct {
	RunID      string           `json:"run_id"`
	Kind       RecordKind       `json:"kind"`
	Received   int              `json:"received"`
	Inserted   int              `json:"inserted"`
	Duplicates int              `json:"duplicates"`
	RuleFills  map[string]int64 `json:"rule_fills"`
	ZeroCargo  int64            `json:"zero_cargo"`
}

// Runner executes reconciliation runs against one store.
type Runner struct {
	Store  Store
	Port   DecisionPort
	Log    *ExportLog
	Logger *logrus.Logger
}

// Run ingests the batch and drives every chain. It never prompts.
func (r *Runner) Run(ctx context.Context, batch Batch) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		Kind:      batch.Kind,
		Received:  batch.Len(),
		RuleFills: make(map[string]int64),
	}
	log := r.Logger.WithFields(logrus.Fields{"run_id": summary.RunID, "kind": batch.Kind})

	if _, ok := kinds[batch.Kind]; !ok {
		return nil, ErrUnknownKind
	}

	if err := r.insert(ctx, batch, summary); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"received":   summary.Received,
		"inserted":   summary.Inserted,
		"duplicates": summary.Duplicates,
	}).Info("batch ingested")

	for _, kind := range ChainOrder {
		counts, err := RunChain(ctx, r.Store, kind)
		if err != nil {
			return nil, err
		}
		for name, n := range counts {
			if n > 0 {
				summary.RuleFills[string(kind)+": "+name] += n
			}
		}
	}

	n, err := r.Store.MarkZeroCargoForever(ctx)
	if err != nil {
		return nil, err
	}
	summary.ZeroCargo = n

	log.WithField("rule_fills", summary.RuleFills).Info("chains applied")
	return summary, nil
}

// Resolve opens both operator passes. It returns ErrRunAborted when the
// operator exits; links applied before the exit stay applied.
func (r *Runner) Resolve(ctx context.Context) (*RunContext, error) {
	rc := NewRunContext(uuid.NewString())
	linker := &Linker{Store: r.Store, Port: r.Port, Log: r.Log, Logger: r.Logger}

	if err := linker.ResolveCustomers(ctx, rc); err != nil {
		return rc, err
	}
	if err := linker.ResolveShipments(ctx, rc); err != nil {
		return rc, err
	}
	return rc, nil
}

func (r *Runner) insert(ctx context.Context, batch Batch, summary *Summary) error {
	filter := DuplicateFilter{Store: r.Store}

	record := func(dup bool) { // tally
		if dup {
			summary.Duplicates++
		} else {
			summary.Inserted++
		}
	}

	switch batch.Kind {
	case KindShipment:
		for _, s := range batch.Shipments {
			dup, err := filter.ShipmentExists(ctx, s)
			if err != nil {
				return err
			}
			if !dup {
				if _, err := r.Store.InsertShipment(ctx, s); err != nil {
					return err
				}
			}
			record(dup)
		}
	case KindExpenseForever:
		for _, e := range batch.ExpensesForever {
			dup, err := filter.ExpenseForeverExists(ctx, e)
			if err != nil {
				return err
			}
			if !dup {
				if _, err := r.Store.InsertExpenseForever(ctx, e); err != nil {
					return err
				}
			}
			record(dup)
		}
	case KindExpenseIphandlers:
		for _, e := range batch.ExpensesIphandlers {
			dup, err := filter.ExpenseIphandlersExists(ctx, e)
			if err != nil {
				return err
			}
			if !dup {
				if _, err := r.Store.InsertExpenseIphandlers(ctx, e); err != nil {
					return err
				}
			}
			record(dup)
		}
	case KindSale:
		for _, s := range batch.Sales {
			dup, err := filter.SaleExists(ctx, s)
			if err != nil {
				return err
			}
			if !dup {
				if _, err := r.Store.InsertSale(ctx, s); err != nil {
					return err
				}
			}
			record(dup)
		}
	case KindMarking:
		for _, m := range batch.Markings {
			dup, err := filter.MarkingExists(ctx, m)
			if err != nil {
				return err
			}
			if !dup {
				if _, err := r.Store.InsertMarking(ctx, m); err != nil {
					return err
				}
			}
			record(dup)
		}
	}
	return nil
}
