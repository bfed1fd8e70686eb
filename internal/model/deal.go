// Package model defines the records exchanged between the deal store, the
// closing-cost calculator, the milestone deriver and the notice classifier.
package model

import (
	"encoding/json"
	"strings"

	"cloud.google.com/go/civil"
)

// Deal holds the contract terms of one property sale as entered by an agent.
// Every numeric field defaults to zero; nothing is required to price a deal.
type Deal struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`

	OfferPrice           Amount `json:"offer_price"`
	FirstMortgagePayoff  Amount `json:"first_mortgage_payoff"`
	SecondMortgagePayoff Amount `json:"second_mortgage_payoff"`
	BuyerClosingCredit   Amount `json:"buyer_closing_credit"`
	EarnestMoney         Amount `json:"earnest_money"`
	HomeWarranty         Amount `json:"home_warranty"`
	AdminFee             Amount `json:"admin_fee"`
	AnnualPropertyTax    Amount `json:"annual_property_tax"`

	// Commission rates are percentages of the offer price (3 means 3%).
	ListingCommissionRate Amount `json:"listing_commission_rate"`
	BuyerCommissionRate   Amount `json:"buyer_commission_rate"`

	FirstHalfTaxesPaid  bool   `json:"first_half_taxes_paid"`
	SecondHalfTaxesPaid bool   `json:"second_half_taxes_paid"`
	FirstHalfTaxDays    Amount `json:"first_half_tax_days"`
	SecondHalfTaxDays   Amount `json:"second_half_tax_days"`

	InContractDate *civil.Date `json:"in_contract_date,omitempty"`
	ClosingDate    *civil.Date `json:"closing_date,omitempty"`

	// Zero inspection or remedy days means the contingency is waived.
	InspectionDays           Count  `json:"inspection_days"`
	RemedyDays               Count  `json:"remedy_days"`
	LoanApplicationTimeframe string `json:"loan_application_timeframe"`
	LoanCommitmentTimeframe  string `json:"loan_commitment_timeframe"`
	DepositPolicy            string `json:"deposit_policy"`
}

// Schedule projects the fields the milestone deriver needs.
func (d Deal) Schedule() Schedule {
	return Schedule{
		ID:                       d.ID,
		Name:                     d.Name,
		Address:                  d.Address,
		InContractDate:           d.InContractDate,
		ClosingDate:              d.ClosingDate,
		InspectionDays:           int(d.InspectionDays),
		LoanApplicationTimeframe: d.LoanApplicationTimeframe,
		LoanCommitmentTimeframe:  d.LoanCommitmentTimeframe,
		DepositPolicy:            d.DepositPolicy,
	}
}

// UnmarshalJSON decodes a deal, reading blank or malformed dates as absent.
func (d *Deal) UnmarshalJSON(data []byte) error {
	type alias Deal
	aux := struct {
		*alias
		InContractDate json.RawMessage `json:"in_contract_date"`
		ClosingDate    json.RawMessage `json:"closing_date"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.InContractDate = parseRawDate(aux.InContractDate)
	d.ClosingDate = parseRawDate(aux.ClosingDate)
	return nil
}

// Schedule is the subset of a deal that contract milestones are derived from.
type Schedule struct {
	ID                       string      `json:"id"`
	Name                     string      `json:"name"`
	Address                  string      `json:"address"`
	InContractDate           *civil.Date `json:"in_contract_date,omitempty"`
	ClosingDate              *civil.Date `json:"closing_date,omitempty"`
	InspectionDays           int         `json:"inspection_days"`
	LoanApplicationTimeframe string      `json:"loan_application_timeframe"`
	LoanCommitmentTimeframe  string      `json:"loan_commitment_timeframe"`
	DepositPolicy            string      `json:"deposit_policy"`
}

// ParseDate reads a calendar date from "2006-01-02" or from an ISO timestamp,
// keeping the written year, month and day. The time and offset of a timestamp
// are ignored rather than converted, so "2025-01-10T00:00:00Z" is always
// January 10th regardless of the server's zone. Returns nil when s holds no
// date.
func ParseDate(s string) *civil.Date {
	s = strings.TrimSpace(s)
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	if s == "" {
		return nil
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return nil
	}
	return &d
}

func parseRawDate(raw json.RawMessage) *civil.Date {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return ParseDate(s)
}
