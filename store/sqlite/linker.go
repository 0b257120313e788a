package sqlite

// Queries behind the operator decision loops. These are the only reads that
// cross record kinds, so they go through the tableInfo metadata instead of
// one hand-written query per table.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/evaigen/auto-office/reconcile"
)

// NextMissingCustomer returns the first record of the kind without a
// customer link, ignoring skipped ids. Returns nil when the kind is clean.
func (s *Store) NextMissingCustomer(ctx context.Context, kind reconcile.RecordKind, skip []int64) (*reconcile.Unresolved, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	where := t.customerCol + " IS NULL"
	var args []any
	if len(skip) > 0 {
		where += fmt.Sprintf(" AND %s NOT IN (%s)", t.idCol, placeholders(len(skip)))
		for _, id := range skip {
			args = append(args, id)
		}
	}

	recs, err := s.queryUnresolved(ctx, kind, where, args, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// MissingShipmentRecords returns every record of the kind without a shipment
// link, ignoring skipped ids.
func (s *Store) MissingShipmentRecords(ctx context.Context, kind reconcile.RecordKind, skip []int64) ([]reconcile.Unresolved, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if t.shipmentCol == "" {
		return nil, fmt.Errorf("%s carries no shipment link: %w", kind, reconcile.ErrUnknownKind)
	}

	where := t.shipmentCol + " IS NULL"
	var args []any
	if len(skip) > 0 {
		where += fmt.Sprintf(" AND %s NOT IN (%s)", t.idCol, placeholders(len(skip)))
		for _, id := range skip {
			args = append(args, id)
		}
	}
	return s.queryUnresolved(ctx, kind, where, args, 0)
}

// CandidateMarkings lists already-resolved aliases for the exact label.
func (s *Store) CandidateMarkings(ctx context.Context, marking string) ([]reconcile.Marking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+markingCols+` FROM markings
		 WHERE marking_name = ? AND customer_id IS NOT NULL`, marking)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markings []reconcile.Marking
	for rows.Next() {
		m, err := scanMarking(rows)
		if err != nil {
			return nil, err
		}
		markings = append(markings, m)
	}
	return markings, rows.Err()
}

// AliasForCustomer returns any marking resolved to the customer. The aliases
// all carry the same informal name and address, so the first is enough.
func (s *Store) AliasForCustomer(ctx context.Context, customerID int64) (*reconcile.Marking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+markingCols+` FROM markings
		 WHERE customer_id = ? ORDER BY marking_id LIMIT 1`, customerID)
	m, err := scanMarking(row)
	if err == sql.ErrNoRows {
		return nil, reconcile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetMarkingCustomer fills a null marking link. Resolved aliases are
// immutable, so a second resolution of the same label is a no-op.
func (s *Store) SetMarkingCustomer(ctx context.Context, markingID, customerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE markings SET customer_id = ? WHERE marking_id = ? AND customer_id IS NULL`,
		customerID, markingID)
	return err
}

// LinkCustomerByMarking propagates a resolved alias to every record of the
// kind sharing the label whose customer link is still null.
func (s *Store) LinkCustomerByMarking(ctx context.Context, kind reconcile.RecordKind, marking string) (int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = (
			SELECT m.customer_id FROM markings m
			WHERE m.marking_name = ? AND m.customer_id IS NOT NULL)
		WHERE %s = ?
		  AND %s IS NULL
		  AND EXISTS (
			SELECT 1 FROM markings m
			WHERE m.marking_name = ? AND m.customer_id IS NOT NULL)
	`, t.name, t.customerCol, t.markingCol, t.customerCol)
	return s.execCount(ctx, query, marking, marking, marking)
}

// ShipmentsByMatch lists candidate shipments for one relaxed strategy.
func (s *Store) ShipmentsByMatch(ctx context.Context, f reconcile.ShipmentFilter) ([]reconcile.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		conds []string
		args  []any
	)
	if f.AWB != nil {
		conds = append(conds, "awb = ?")
		args = append(args, *f.AWB)
	}
	if f.Marking != nil {
		conds = append(conds, "marking = ?")
		args = append(args, *f.Marking)
	}
	if f.BoxFull != nil {
		conds = append(conds, "box_full = ?")
		args = append(args, *f.BoxFull)
	}
	if f.DateBefore != nil {
		conds = append(conds, "shipment_date < ?")
		args = append(args, fmtDate(*f.DateBefore))
	}
	if f.DateAfter != nil {
		conds = append(conds, "shipment_date > ?")
		args = append(args, fmtDate(*f.DateAfter))
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("empty shipment filter")
	}

	query := `SELECT ` + shipmentCols + ` FROM shipments WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY shipment_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shipments []reconcile.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, sh)
	}
	return shipments, rows.Err()
}

// SetShipmentLink fills a null shipment link on one record.
func (s *Store) SetShipmentLink(ctx context.Context, kind reconcile.RecordKind, recordID, shipmentID int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	if t.shipmentCol == "" {
		return fmt.Errorf("%s carries no shipment link: %w", kind, reconcile.ErrUnknownKind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ? AND %s IS NULL`,
		t.name, t.shipmentCol, t.idCol, t.shipmentCol)
	_, err = s.db.ExecContext(ctx, query, shipmentID, recordID)
	return err
}

// queryUnresolved fetches full rows of one kind and projects them onto the
// operator-facing Unresolved shape.
func (s *Store) queryUnresolved(ctx context.Context, kind reconcile.RecordKind, where string, args []any, limit int) ([]reconcile.Unresolved, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := tables[kind]
	var cols string
	switch kind {
	case reconcile.KindShipment:
		cols = shipmentCols
	case reconcile.KindExpenseForever:
		cols = foreverCols
	case reconcile.KindExpenseIphandlers:
		cols = iphandlersCols
	case reconcile.KindSale:
		cols = saleCols
	default:
		return nil, reconcile.ErrUnknownKind
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s`, cols, t.name, where, t.idCol)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconcile.Unresolved
	for rows.Next() {
		var u reconcile.Unresolved
		switch kind {
		case reconcile.KindShipment:
			sh, err := scanShipment(rows)
			if err != nil {
				return nil, err
			}
			u = reconcile.Unresolved{Kind: kind, ID: sh.ID, Marking: sh.Marking,
				AWB: sh.AWB, FullBox: sh.BoxFull, Date: sh.Date, Detail: sh.Describe()}
		case reconcile.KindExpenseForever:
			e, err := scanExpenseForever(rows)
			if err != nil {
				return nil, err
			}
			u = reconcile.Unresolved{Kind: kind, ID: e.ID, Marking: e.Marking,
				AWB: e.AWB, FullBox: e.FullBox, Date: e.Date, Detail: e.Describe()}
		case reconcile.KindExpenseIphandlers:
			e, err := scanExpenseIphandlers(rows)
			if err != nil {
				return nil, err
			}
			u = reconcile.Unresolved{Kind: kind, ID: e.ID, Marking: e.Marking,
				AWB: e.AWB, FullBox: e.FullBox, Date: e.ETADate, Detail: e.Describe()}
		case reconcile.KindSale:
			sale, err := scanSale(rows)
			if err != nil {
				return nil, err
			}
			u = reconcile.Unresolved{Kind: kind, ID: sale.ID, Marking: sale.Marking,
				AWB: sale.AWB, FullBox: sale.FullBox, Date: sale.Date, Detail: sale.Describe()}
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
