// Package catalog holds the loan products offered by the dashboard. Products
// are reference data; callers receive copies and can never change a rate that
// an application has already frozen.
package catalog

import (
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/shopspring/decimal"
)

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func pct(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

var products = []models.LoanProduct{
	{
		ID:                "personal",
		Name:              "Personal Loan",
		MinAmount:         amount(10_000),
		MaxAmount:         amount(1_000_000),
		InterestRate:      pct(12.5),
		TenureMonths:      []int{12, 24, 36, 48, 60},
		ProcessingFee:     pct(2),
		RequiredDocuments: []string{"National ID", "Proof of income", "Bank statements (3 months)"},
	},
	{
		ID:                "home",
		Name:              "Home Loan",
		MinAmount:         amount(500_000),
		MaxAmount:         amount(5_000_000),
		InterestRate:      pct(8.5),
		TenureMonths:      []int{120, 180, 240, 300},
		ProcessingFee:     pct(0.5),
		RequiredDocuments: []string{"National ID", "Proof of income", "Property documents", "Bank statements (6 months)"},
	},
	{
		ID:                "vehicle",
		Name:              "Vehicle Loan",
		MinAmount:         amount(100_000),
		MaxAmount:         amount(2_000_000),
		InterestRate:      pct(9.5),
		TenureMonths:      []int{12, 24, 36, 48, 60, 72, 84},
		ProcessingFee:     pct(1),
		RequiredDocuments: []string{"National ID", "Proof of income", "Vehicle quotation"},
	},
	{
		ID:                "education",
		Name:              "Education Loan",
		MinAmount:         amount(50_000),
		MaxAmount:         amount(1_500_000),
		InterestRate:      pct(10),
		TenureMonths:      []int{36, 60, 84, 120},
		ProcessingFee:     pct(1),
		RequiredDocuments: []string{"National ID", "Admission letter", "Fee structure"},
	},
	{
		ID:                "business",
		Name:              "Business Loan",
		MinAmount:         amount(100_000),
		MaxAmount:         amount(5_000_000),
		InterestRate:      pct(14),
		TenureMonths:      []int{12, 24, 36, 48, 60},
		ProcessingFee:     pct(2.5),
		RequiredDocuments: []string{"National ID", "Business registration", "Financial statements (2 years)"},
	},
}

// Catalog is a read-only set of loan products.
type Catalog struct {
	products []models.LoanProduct
}

// Default returns the built-in product catalog.
func Default() *Catalog {
	return New(products)
}

// New builds a catalog from the given products.
func New(ps []models.LoanProduct) *Catalog {
	c := &Catalog{products: make([]models.LoanProduct, 0, len(ps))}
	for _, p := range ps {
		c.products = append(c.products, clone(p))
	}
	return c
}

// Products returns every product in catalog order.
func (c *Catalog) Products() []models.LoanProduct {
	out := make([]models.LoanProduct, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, clone(p))
	}
	return out
}

// Product looks a product up by id.
func (c *Catalog) Product(id string) (models.LoanProduct, bool) {
	for _, p := range c.products {
		if p.ID == id {
			return clone(p), true
		}
	}
	return models.LoanProduct{}, false
}

func clone(p models.LoanProduct) models.LoanProduct {
	p.TenureMonths = append([]int(nil), p.TenureMonths...)
	p.RequiredDocuments = append([]string(nil), p.RequiredDocuments...)
	return p
}
