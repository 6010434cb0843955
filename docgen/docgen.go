/*
Package docgen renders the shop's paperwork from contract data.

PURPOSE:
  Implements pawn.DocumentGenerator with text/template. Every committed
  lifecycle transition produces a printable receipt: the contract itself,
  the optional policy, renewal slips and the final redemption receipt.
  Documents are plain text written to an output directory; the shop prints
  them as-is.

FILE NAMING:
  <contract-id>_contract.txt
  <contract-id>_policy.txt
  <contract-id>_renewal_v<version>.txt
  <contract-id>_redemption.txt

  Renewal slips carry the version so earlier slips are never overwritten;
  the other kinds are idempotent (re-rendering replaces the file).

REDEMPTION FEE:
  Redemption receipts show a 10% fee line computed from the contract
  amount. The figure is informational for the printed receipt only - it is
  computed at render time and never persisted.

USAGE:
  gen, err := docgen.New(docgen.Config{OutputDir: "./documents"})
  if err != nil {
      log.Fatal(err)
  }
  service := pawn.NewService(store, gen)

SEE ALSO:
  - pawn/documents.go: The interface and failure semantics
*/
package docgen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldline/pawn-engine/pawn"
)

// Config controls where and under which letterhead documents are rendered.
type Config struct {
	OutputDir string
	ShopName  string // letterhead; defaults to "Gold Line"
	ShopTown  string
}

// Generator renders plain-text documents to Config.OutputDir.
type Generator struct {
	cfg  Config
	tmpl *template.Template
}

// New parses the built-in templates and ensures the output directory exists.
func New(cfg Config) (*Generator, error) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./documents"
	}
	if cfg.ShopName == "" {
		cfg.ShopName = "Gold Line"
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}

	tmpl, err := template.New("documents").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"date": func(t time.Time) string { return t.Format("02/01/2006") },
		"dateptr": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.Format("02/01/2006")
		},
	}).Parse(documentTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document templates: %w", err)
	}

	return &Generator{cfg: cfg, tmpl: tmpl}, nil
}

// documentData is the root object every template renders against.
type documentData struct {
	ShopName string
	ShopTown string
	Client   pawn.Client
	Contract pawn.Contract
	Products []pawn.Product
	Renewal  pawn.Renewal
	Fee      decimal.Decimal
	Today    time.Time
}

func (g *Generator) render(templateName, fileName string, data documentData) error {
	var buf bytes.Buffer
	if err := g.tmpl.ExecuteTemplate(&buf, templateName, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", templateName, err)
	}

	path := filepath.Join(g.cfg.OutputDir, fileName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (g *Generator) data(client pawn.Client, contract pawn.Contract, products []pawn.Product) documentData {
	return documentData{
		ShopName: g.cfg.ShopName,
		ShopTown: g.cfg.ShopTown,
		Client:   client,
		Contract: contract,
		Products: products,
		Today:    time.Now(),
	}
}

// GenerateContractDocument renders the main contract document.
func (g *Generator) GenerateContractDocument(_ context.Context, client pawn.Client, contract pawn.Contract, products []pawn.Product) error {
	return g.render("contract", contract.ID+"_contract.txt", g.data(client, contract, products))
}

// GeneratePolicyDocument renders the policy document for contracts that were
// opened with a policy identifier.
func (g *Generator) GeneratePolicyDocument(_ context.Context, client pawn.Client, contract pawn.Contract, products []pawn.Product) error {
	if contract.PolicyID == "" {
		return fmt.Errorf("contract %s has no policy identifier", contract.ID)
	}
	return g.render("policy", contract.ID+"_policy.txt", g.data(client, contract, products))
}

// GenerateRenewalDocument renders one renewal slip. The file name carries the
// renewal version so each cycle keeps its own slip.
func (g *Generator) GenerateRenewalDocument(_ context.Context, client pawn.Client, contract pawn.Contract, products []pawn.Product, renewal pawn.Renewal) error {
	data := g.data(client, contract, products)
	data.Renewal = renewal
	return g.render("renewal", fmt.Sprintf("%s_renewal_v%d.txt", contract.ID, renewal.Version), data)
}

// GenerateRedemptionDocument renders the final redemption receipt, including
// the display-only 10% fee.
func (g *Generator) GenerateRedemptionDocument(_ context.Context, client pawn.Client, contract pawn.Contract, products []pawn.Product) error {
	data := g.data(client, contract, products)
	data.Fee = pawn.RedemptionFee(contract)
	return g.render("redemption", contract.ID+"_redemption.txt", data)
}

var _ pawn.DocumentGenerator = (*Generator)(nil)

// =============================================================================
// TEMPLATES
// =============================================================================

const documentTemplates = `
{{define "header" -}}
{{.ShopName}}{{if .ShopTown}} - {{.ShopTown}}{{end}}
================================================================
{{end}}

{{define "clientBlock" -}}
Client:      {{.Client.Name}} {{.Client.Surname}}
National ID: {{.Client.NationalID}}
Address:     {{.Client.Address}}{{if .Client.Town}}, {{.Client.Town}}{{end}}
Phone:       {{.Client.Phone}}
{{end}}

{{define "productTable" -}}
Qty  Description                    Weight(g)   Price/g     Amount
----------------------------------------------------------------
{{range .Products -}}
{{printf "%-4d %-30s %10s %9s %10s" .Quantity .Description (money .Weight) (money .PricePerGram) (money .Amount)}}
{{end -}}
----------------------------------------------------------------
{{end}}

{{define "contract" -}}
{{template "header" .}}
{{if eq .Contract.Type "pawn"}}PAWN CONTRACT{{else}}PURCHASE CONTRACT{{end}}  {{.Contract.ID}}

{{template "clientBlock" .}}
Start date:  {{date .Contract.StartDate}}
{{if .Contract.FinalDate}}Due date:    {{dateptr .Contract.FinalDate}}
{{end -}}
{{if .Contract.Details}}Details:     {{.Contract.Details}}
{{end}}
{{template "productTable" .}}
TOTAL: {{money .Contract.Amount}} EUR

Issued {{date .Today}}.
{{end}}

{{define "policy" -}}
{{template "header" .}}
POLICY  {{.Contract.PolicyID}}  (contract {{.Contract.ID}})

{{template "clientBlock" .}}
Start date:  {{date .Contract.StartDate}}
{{if .Contract.FinalDate}}Due date:    {{dateptr .Contract.FinalDate}}
{{end}}
{{template "productTable" .}}
TOTAL: {{money .Contract.Amount}} EUR

Issued {{date .Today}}.
{{end}}

{{define "renewal" -}}
{{template "header" .}}
RENEWAL SLIP  {{.Contract.ID}}  (cycle {{.Renewal.Version}})

{{template "clientBlock" .}}
Renewal date:  {{date .Renewal.Date}}
New due date:  {{date .Renewal.DueDate}}

{{template "productTable" .}}
OUTSTANDING BALANCE: {{money .Renewal.Amount}} EUR

Issued {{date .Today}}.
{{end}}

{{define "redemption" -}}
{{template "header" .}}
REDEMPTION RECEIPT  {{.Contract.ID}}

{{template "clientBlock" .}}
Start date:      {{date .Contract.StartDate}}
Redemption date: {{dateptr .Contract.RedemptionDate}}

{{template "productTable" .}}
CONTRACT AMOUNT: {{money .Contract.Amount}} EUR
REDEMPTION FEE (10%): {{money .Fee}} EUR

The goods listed above are returned to the client. The contract is
closed and cannot be renewed or redeemed again.

Issued {{date .Today}}.
{{end}}
`
