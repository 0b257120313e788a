package reconcile

import "context"

// DuplicateFilter answers whether an incoming record already exists in the
// store under its natural key. Ingestion consults it before every insert, so
// re-importing the same batch is a no-op.
type DuplicateFilter struct {
	Store DedupStore
}

func (f DuplicateFilter) ShipmentExists(ctx context.Context, s Shipment) (bool, error) {
	return f.Store.HasShipment(ctx, s.Key())
}

func (f DuplicateFilter) ExpenseForeverExists(ctx context.Context, e ExpenseForever) (bool, error) {
	return f.Store.HasExpenseForever(ctx, e.Key())
}

func (f DuplicateFilter) ExpenseIphandlersExists(ctx context.Context, e ExpenseIphandlers) (bool, error) {
	return f.Store.HasExpenseIphandlers(ctx, e.Key())
}

func (f DuplicateFilter) SaleExists(ctx context.Context, s Sale) (bool, error) {
	return f.Store.HasSale(ctx, s.Key())
}

// MarkingExists dedups on the marking name alone: one label, one alias row.
func (f DuplicateFilter) MarkingExists(ctx context.Context, m Marking) (bool, error) {
	return f.Store.HasMarking(ctx, m.Name)
}
