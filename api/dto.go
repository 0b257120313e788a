/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal record model from the external API contract: dates go out as
  YYYY-MM-DD strings, decimals as strings, absent links as null.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Import rows are validated by the ingest package, the same path the XLSX
  readers use. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ingest/rows.go: The row layouts ImportRequest.Rows must follow
*/
package api

import (
	"time"

	"github.com/evaigen/auto-office/reconcile"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ImportRequest carries one batch as raw rows in the sheet column layout of
// its kind (see ingest/rows.go), without a header row.
type ImportRequest struct {
	Kind string     `json:"kind"`
	Rows [][]string `json:"rows"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type CustomerDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type MarkingDTO struct {
	ID              int64  `json:"id"`
	Name            string `json:"marking_name"`
	CustomerName    string `json:"customer,omitempty"`
	CustomerAddress string `json:"customer_address,omitempty"`
	CustomerID      *int64 `json:"customer_id"`
}

type ShipmentDTO struct {
	ID                  int64  `json:"id"`
	Date                string `json:"date"`
	AWB                 string `json:"awb,omitempty"`
	Marking             string `json:"marking"`
	BoxFull             string `json:"box_full"`
	Volume              string `json:"volume"`
	WeightVol           int64  `json:"weight_vol"`
	Country             string `json:"country,omitempty"`
	TruckName           string `json:"truck_name"`
	Status              string `json:"status,omitempty"`
	CustomerID          *int64 `json:"customer_id"`
	ExpenseForeverID    *int64 `json:"expense_forever_id"`
	ExpenseIphandlersID *int64 `json:"expense_iphandlers_id"`
}

type ExpenseForeverDTO struct {
	ID         int64  `json:"id"`
	Date       string `json:"date"`
	Type       string `json:"type,omitempty"`
	Customer   string `json:"customer,omitempty"`
	TotalUSD   string `json:"total_usd"`
	TotalEUR   string `json:"total_eur"`
	TotalRUB   string `json:"total_rub"`
	Country    string `json:"country,omitempty"`
	Currency   string `json:"currency,omitempty"`
	AWB        string `json:"awb,omitempty"`
	Marking    string `json:"marking,omitempty"`
	FullBox    string `json:"full_box"`
	Weight     int64  `json:"weight"`
	Volume     string `json:"volume"`
	CustomerID *int64 `json:"customer_id"`
	ShipmentID *int64 `json:"shipment_id"`
}

type ExpenseIphandlersDTO struct {
	ID         int64  `json:"id"`
	ETADate    string `json:"eta_date"`
	Account    string `json:"account,omitempty"`
	Total      string `json:"total"`
	Currency   string `json:"currency"`
	AWB        string `json:"awb"`
	Marking    string `json:"marking"`
	Box        int64  `json:"box"`
	FullBox    string `json:"full_box"`
	Weight     int64  `json:"weight"`
	Customer   string `json:"customer,omitempty"`
	CustomerID *int64 `json:"customer_id"`
	ShipmentID *int64 `json:"shipment_id"`
}

type SaleDTO struct {
	ID                  int64   `json:"id"`
	Date                string  `json:"date"`
	Type                string  `json:"type"`
	Marking             string  `json:"marking"`
	FullBox             string  `json:"full_box"`
	Customer            string  `json:"customer,omitempty"`
	Currency            string  `json:"currency"`
	Country             string  `json:"country,omitempty"`
	Weight              int64   `json:"weight"`
	Volume              string  `json:"volume"`
	AWB                 string  `json:"awb,omitempty"`
	CurrencyRate        *string `json:"currency_rate"`
	CurrencyMarkup      *string `json:"currency_markup"`
	PriceKg             *string `json:"price_kg"`
	PricePallet         *int64  `json:"price_pallet"`
	PriceTroll          *int64  `json:"price_troll"`
	TotalRUB            *string `json:"total_rub"`
	CustomerID          *int64  `json:"customer_id"`
	ShipmentID          *int64  `json:"shipment_id"`
	ExpenseForeverID    *int64  `json:"expense_forever_id"`
	ExpenseIphandlersID *int64  `json:"expense_iphandlers_id"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCustomerDTO(c reconcile.Customer) CustomerDTO {
	return CustomerDTO{ID: c.ID, Name: c.Name, Address: c.Address, Phone: c.Phone, Email: c.Email}
}

func toMarkingDTO(m reconcile.Marking) MarkingDTO {
	return MarkingDTO{
		ID: m.ID, Name: m.Name,
		CustomerName: m.CustomerName, CustomerAddress: m.CustomerAddress,
		CustomerID: m.CustomerID,
	}
}

func toShipmentDTO(s reconcile.Shipment) ShipmentDTO {
	return ShipmentDTO{
		ID:        s.ID,
		Date:      s.Date.Format(time.DateOnly),
		AWB:       s.AWB,
		Marking:   s.Marking,
		BoxFull:   s.BoxFull.String(),
		Volume:    s.Volume.String(),
		WeightVol: s.WeightVol,
		Country:   s.Country,
		TruckName: s.TruckName,
		Status:    s.Status,

		CustomerID:          s.CustomerID,
		ExpenseForeverID:    s.ExpenseForeverID,
		ExpenseIphandlersID: s.ExpenseIphandlersID,
	}
}

func toExpenseForeverDTO(e reconcile.ExpenseForever) ExpenseForeverDTO {
	return ExpenseForeverDTO{
		ID:       e.ID,
		Date:     e.Date.Format(time.DateOnly),
		Type:     e.Type,
		Customer: e.CustomerName,
		TotalUSD: e.TotalUSD.String(),
		TotalEUR: e.TotalEUR.String(),
		TotalRUB: e.TotalRUB.String(),
		Country:  e.Country,
		Currency: e.Currency,
		AWB:      e.AWB,
		Marking:  e.Marking,
		FullBox:  e.FullBox.String(),
		Weight:   e.Weight,
		Volume:   e.Volume.String(),

		CustomerID: e.CustomerID,
		ShipmentID: e.ShipmentID,
	}
}

func toExpenseIphandlersDTO(e reconcile.ExpenseIphandlers) ExpenseIphandlersDTO {
	return ExpenseIphandlersDTO{
		ID:       e.ID,
		ETADate:  e.ETADate.Format(time.DateOnly),
		Account:  e.Account,
		Total:    e.Total.String(),
		Currency: e.Currency,
		AWB:      e.AWB,
		Marking:  e.Marking,
		Box:      e.Box,
		FullBox:  e.FullBox.String(),
		Weight:   e.Weight,
		Customer: e.CustomerName,

		CustomerID: e.CustomerID,
		ShipmentID: e.ShipmentID,
	}
}

func toSaleDTO(s reconcile.Sale) SaleDTO {
	dto := SaleDTO{
		ID:       s.ID,
		Date:     s.Date.Format(time.DateOnly),
		Type:     s.Type,
		Marking:  s.Marking,
		FullBox:  s.FullBox.String(),
		Customer: s.CustomerName,
		Currency: s.Currency,
		Country:  s.Country,
		Weight:   s.Weight,
		Volume:   s.Volume.String(),
		AWB:      s.AWB,

		PricePallet:         s.PricePallet,
		PriceTroll:          s.PriceTroll,
		CustomerID:          s.CustomerID,
		ShipmentID:          s.ShipmentID,
		ExpenseForeverID:    s.ExpenseForeverID,
		ExpenseIphandlersID: s.ExpenseIphandlersID,
	}
	if s.CurrencyRate.Valid {
		v := s.CurrencyRate.Decimal.String()
		dto.CurrencyRate = &v
	}
	if s.CurrencyMarkup.Valid {
		v := s.CurrencyMarkup.Decimal.String()
		dto.CurrencyMarkup = &v
	}
	if s.PriceKg.Valid {
		v := s.PriceKg.Decimal.String()
		dto.PriceKg = &v
	}
	if s.TotalRUB.Valid {
		v := s.TotalRUB.Decimal.String()
		dto.TotalRUB = &v
	}
	return dto
}
