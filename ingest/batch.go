package ingest

import "github.com/evaigen/auto-office/reconcile"

// BatchFromRows builds a batch from raw data rows (header already removed).
// This is the single validation path: the XLSX readers and the HTTP import
// endpoint both come through here, so a row is judged the same way no matter
// how it arrived. firstRow is the sheet row number of rows[0], used in error
// messages.
func BatchFromRows(kind reconcile.RecordKind, rows [][]string, firstRow int) (reconcile.Batch, error) {
	switch kind {
	case reconcile.KindShipment, reconcile.KindExpenseForever,
		reconcile.KindExpenseIphandlers, reconcile.KindSale, reconcile.KindMarking:
	default:
		return reconcile.Batch{}, reconcile.ErrUnknownKind
	}

	batch := reconcile.Batch{Kind: kind}
	for i, cells := range rows {
		row := firstRow + i
		switch kind {
		case reconcile.KindShipment:
			s, err := shipmentRow(row, cells)
			if err != nil {
				return reconcile.Batch{}, err
			}
			batch.Shipments = append(batch.Shipments, s)
		case reconcile.KindExpenseForever:
			e, err := foreverRow(row, cells)
			if err != nil {
				return reconcile.Batch{}, err
			}
			batch.ExpensesForever = append(batch.ExpensesForever, e)
		case reconcile.KindExpenseIphandlers:
			e, err := iphandlersRow(row, cells)
			if err != nil {
				return reconcile.Batch{}, err
			}
			batch.ExpensesIphandlers = append(batch.ExpensesIphandlers, e)
		case reconcile.KindSale:
			s, err := saleRow(row, cells)
			if err != nil {
				return reconcile.Batch{}, err
			}
			batch.Sales = append(batch.Sales, s)
		case reconcile.KindMarking:
			m, err := markingRow(row, cells)
			if err != nil {
				return reconcile.Batch{}, err
			}
			batch.Markings = append(batch.Markings, m)
		}
	}
	return batch, nil
}
