package ingest

// XLSX readers. Every reader takes the first sheet of the workbook, skips
// the header row, and hands each data row to its builder. Row numbers in
// errors count from 1 and include the header, matching what the operator
// sees in a spreadsheet program.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/evaigen/auto-office/reconcile"
)

// Workbook names the reference import looks for in the starter directory.
const (
	CustomersFile   = "customers.xlsx"
	CompaniesFile   = "companies.xlsx"
	SuppliersFile   = "suppliers.xlsx"
	BoxTypesFile    = "box_types.xlsx"
	FlowerTypesFile = "flower_types.xlsx"
	DriversFile     = "drivers.xlsx"
	CarsFile        = "cars.xlsx"
	MarkingsFile    = "markings.xlsx"
)

func readRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
	}
	return rows, nil
}

// dataRows drops the header. The builder row index starts at 2.
func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

// =============================================================================
// BATCH READERS
// =============================================================================

// ReadBatch reads one batch workbook of the given kind.
func ReadBatch(kind reconcile.RecordKind, path string) (reconcile.Batch, error) {
	rows, err := readRows(path)
	if err != nil {
		return reconcile.Batch{}, err
	}
	return BatchFromRows(kind, dataRows(rows), 2)
}

// =============================================================================
// REFERENCE AND RATES READERS
// =============================================================================

// Reference is the content of the starter directory.
type Reference struct {
	Customers   []reconcile.Customer
	Companies   []reconcile.Company
	Suppliers   []reconcile.Supplier
	BoxTypes    []reconcile.BoxType
	FlowerTypes []reconcile.FlowerType
	Drivers     []reconcile.Driver
	Cars        []reconcile.Car
	Markings    []reconcile.Marking
}

// ReadReference loads every reference workbook present in dir. Absent
// workbooks are skipped; a present but malformed one fails the import.
func ReadReference(dir string) (*Reference, error) {
	ref := &Reference{}

	err := readOptional(filepath.Join(dir, CustomersFile), func(i int, cells []string) error {
		c, err := customerRow(i, cells)
		if err == nil {
			ref.Customers = append(ref.Customers, c)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = readOptional(filepath.Join(dir, CompaniesFile), func(i int, cells []string) error {
		c, err := companyRow(i, cells)
		if err == nil {
			ref.Companies = append(ref.Companies, c)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = readOptional(filepath.Join(dir, SuppliersFile), func(i int, cells []string) error {
		s, err := supplierRow(i, cells)
		if err == nil {
			ref.Suppliers = append(ref.Suppliers, s)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = readOptional(filepath.Join(dir, BoxTypesFile), func(i int, cells []string) error {
		b, err := boxTypeRow(i, cells)
		if err == nil {
			ref.BoxTypes = append(ref.BoxTypes, b)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = readOptional(filepath.Join(dir, FlowerTypesFile), func(i int, cells []string) error {
		f, err := flowerTypeRow(i, cells)
		if err == nil {
			ref.FlowerTypes = append(ref.FlowerTypes, f)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = readOptional(filepath.Join(dir, DriversFile), func(i int, cells []string) error {
		d, err := driverRow(i, cells)
		if err == nil {
			ref.Drivers = append(ref.Drivers, d)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = readOptional(filepath.Join(dir, CarsFile), func(i int, cells []string) error {
		c, err := carRow(i, cells)
		if err == nil {
			ref.Cars = append(ref.Cars, c)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = readOptional(filepath.Join(dir, MarkingsFile), func(i int, cells []string) error {
		m, err := markingRow(i, cells)
		if err == nil {
			ref.Markings = append(ref.Markings, m)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return ref, nil
}

func readOptional(path string, handle func(row int, cells []string) error) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	rows, err := readRows(path)
	if err != nil {
		return err
	}
	for i, cells := range dataRows(rows) {
		if err := handle(i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

// ReadCurrencyRates loads a (date, rate) sheet for one currency.
func ReadCurrencyRates(path, currency string) ([]reconcile.CurrencyRate, error) {
	if currency != reconcile.CurrencyUSD && currency != reconcile.CurrencyEUR {
		return nil, fmt.Errorf("unknown currency %q", currency)
	}
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	var rates []reconcile.CurrencyRate
	for i, cells := range dataRows(rows) {
		r, err := rateRow(i+2, cells, currency)
		if err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, nil
}
