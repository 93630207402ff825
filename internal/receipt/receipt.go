// Package receipt renders 80mm thermal sale tickets as PDF. Font sizes and
// line spacing shrink as the item count grows so a large ticket still fits a
// single 210mm page.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"bioxpos/internal/domain"
)

const (
	pageWidth  = 226.77 // 80mm
	pageHeight = 595.28 // 210mm
	margin     = 8
)

var ErrNoItems = errors.New("receipt needs at least one sale line")

// Company is the header block printed on every ticket.
type Company struct {
	Name              string
	Slogan            string
	LegalName         string
	TaxID             string
	Address           string
	Contact           string
	Website           string
	QRContent         string
	AuthorizationNote string
}

// DefaultCompany returns the Biox storefront identity.
func DefaultCompany() Company {
	return Company{
		Name:              "BIOX",
		Slogan:            "Salud y Bienestar",
		LegalName:         "Biox Peru EIRL",
		TaxID:             "RUC: 20603026811",
		Address:           "Av. San Martin 108 Miraflores-Arequipa",
		Contact:           "tienda@biox.com.pe | 957888815 - 941035450",
		Website:           "Biox.com.pe",
		QRContent:         "https://www.biox.com.pe",
		AuthorizationNote: "Autorizado mediante Resolucion 034-005-0007241",
	}
}

type Generator struct {
	company Company
}

func NewGenerator(company Company) *Generator {
	if company.Name == "" {
		company = DefaultCompany()
	}
	return &Generator{company: company}
}

// layout holds the sizes derived from the item count.
type layout struct {
	title         float64
	header        float64
	normal        float64
	small         float64
	headerSpacing float64
	normalSpacing float64
	smallSpacing  float64
	perItem       float64
	nameLimit     int
}

func layoutFor(itemCount int) layout {
	l := layout{
		title:         16,
		header:        10,
		normal:        8,
		small:         6,
		headerSpacing: 10,
		normalSpacing: 10,
		smallSpacing:  8,
		nameLimit:     18,
	}
	if itemCount > 10 {
		l.title = 14
		l.normal = 7
		l.nameLimit = 15
	}
	if itemCount > 15 {
		l.header = 8
		l.headerSpacing = 8
		l.normalSpacing = 8
		l.nameLimit = 12
	}
	if itemCount > 20 {
		l.normal = 6
		l.small = 5
		l.smallSpacing = 6
	}

	available := (pageHeight - 200) / float64(itemCount)
	l.perItem = available
	if l.perItem < 12 {
		l.perItem = 12
	}
	if l.perItem > 25 {
		l.perItem = 25
	}
	return l
}

// Filename builds the ticket file name from the leading sale.
func Filename(sale domain.Sale) string {
	return fmt.Sprintf("ticket_%d_%s.pdf", sale.ID, sale.CreatedAt.UTC().Format("2006-01-02"))
}

// Render draws the ticket for one checkout. All sales share the payment
// details of the first line; cashier and customer may be nil.
func (g *Generator) Render(sales []domain.Sale, cashier *domain.User, customer *domain.Customer) ([]byte, string, error) {
	if len(sales) == 0 {
		return nil, "", ErrNoItems
	}

	l := layoutFor(len(sales))
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(margin, margin, margin)
	doc.AddPage()
	doc.SetTextColor(0, 0, 0)
	doc.SetDrawColor(0, 0, 0)
	doc.SetLineWidth(0.5)

	centered := func(text string, y, size float64, style string) {
		doc.SetFont("Helvetica", style, size)
		doc.Text((pageWidth-doc.GetStringWidth(text))/2, y, text)
	}
	left := func(text string, y, size float64, style string) {
		doc.SetFont("Helvetica", style, size)
		doc.Text(margin, y, text)
	}
	at := func(text string, x, y, size float64, style string) {
		doc.SetFont("Helvetica", style, size)
		doc.Text(x, y, text)
	}
	right := func(text string, y, size float64, style string) {
		doc.SetFont("Helvetica", style, size)
		doc.Text(pageWidth-margin-doc.GetStringWidth(text), y, text)
	}
	separator := func(y float64, dashed bool) {
		if dashed {
			doc.SetDashPattern([]float64{1, 1}, 0)
		} else {
			doc.SetDashPattern([]float64{}, 0)
		}
		doc.Line(margin, y, pageWidth-margin, y)
		doc.SetDashPattern([]float64{}, 0)
	}

	first := sales[0]
	y := 15.0

	centered(g.company.Name, y, l.title, "B")
	y += l.title - 2
	centered(g.company.Slogan, y, l.header, "")
	y += l.headerSpacing
	centered(g.company.LegalName, y, l.header, "B")
	y += l.headerSpacing

	separator(y, false)
	y += l.smallSpacing

	centered(g.company.TaxID, y, l.small, "")
	y += l.smallSpacing
	centered(g.company.Address, y, l.small, "")
	y += l.smallSpacing
	centered(g.company.Contact, y, l.small, "")
	y += l.smallSpacing
	centered(g.company.Website, y, l.small, "")
	y += l.normalSpacing

	separator(y, false)
	y += l.smallSpacing

	saleAt := first.CreatedAt.Local()
	left(fmt.Sprintf("Fecha: %s %s", saleAt.Format("02/01/2006"), saleAt.Format("15:04")), y, l.small, "")
	y += l.smallSpacing

	seller := "N/A"
	if cashier != nil && cashier.Username != "" {
		seller = truncate(cashier.Username, 20)
	}
	left("Vendedor: "+seller, y, l.small, "")
	y += l.normalSpacing

	separator(y, false)
	y += l.smallSpacing
	centered("TICKET DE VENTA", y, l.header, "B")
	y += l.smallSpacing
	separator(y, false)
	y += l.smallSpacing

	left(fmt.Sprintf("# Ticket: %d", first.ID), y, l.normal, "B")
	y += l.normalSpacing

	if customer != nil {
		left("Cliente: "+customer.FullName(), y, l.small, "")
		y += l.smallSpacing
		if customer.DNI != "" {
			left("DNI: "+customer.DNI, y, l.small, "")
			y += l.smallSpacing
		}
		if customer.Phone != "" {
			left("Telefono: "+customer.Phone, y, l.small, "")
			y += l.smallSpacing
		}
	} else {
		left("Cliente: Cliente General", y, l.small, "")
		y += l.smallSpacing
	}
	y += l.smallSpacing

	separator(y, true)
	y += l.smallSpacing + 2

	compact := len(sales) > 10
	if compact {
		left("C", y, l.normal, "B")
		at("Producto", 20, y, l.normal, "B")
		right("Total", y, l.normal, "B")
	} else {
		left("Cant.", y, l.normal, "B")
		at("Producto", 35, y, l.normal, "B")
		at("P.Unit", pageWidth-50, y, l.normal, "B")
		right("Total", y, l.normal, "B")
	}
	y += l.smallSpacing + 2
	separator(y, true)
	y += l.smallSpacing + 2

	grandTotal := decimal.Zero
	for _, sale := range sales {
		left(fmt.Sprintf("%d", sale.Quantity), y, l.normal, "")
		name := truncateDot(sale.ProductName, l.nameLimit)
		if compact {
			at(name, 20, y, l.normal, "")
		} else {
			at(name, 35, y, l.normal, "")
			at(fmt.Sprintf("%.2f", sale.SalePrice), pageWidth-50, y, l.normal, "")
		}
		right(fmt.Sprintf("%.2f", sale.Total), y, l.normal, "")
		grandTotal = grandTotal.Add(decimal.NewFromFloat(sale.Total))
		y += l.perItem
	}
	y += l.smallSpacing

	separator(y, false)
	y += l.smallSpacing

	total, _ := grandTotal.Round(2).Float64()
	subtotal, tax := domain.SplitTax(total)

	left("Subtotal:", y, l.normal, "")
	right(fmt.Sprintf("S/ %.2f", subtotal), y, l.normal, "")
	y += l.smallSpacing

	left("IGV:", y, l.normal, "")
	right(fmt.Sprintf("S/ %.2f", tax), y, l.normal, "")
	y += l.smallSpacing

	separator(y, false)
	y += l.smallSpacing
	left("TOTAL:", y, l.header, "B")
	right(fmt.Sprintf("S/ %.2f", total), y, l.header, "B")
	y += l.smallSpacing
	separator(y, false)
	y += l.normalSpacing

	left("PAGO: "+paymentLabel(first.PaymentMethod), y, l.normal, "B")
	y += l.normalSpacing

	if first.PaymentMethod == domain.PaymentCash && first.AmountReceived > 0 {
		left("RECIBIDO:", y, l.normal, "")
		right(fmt.Sprintf("S/ %.2f", first.AmountReceived), y, l.normal, "")
		y += l.smallSpacing

		left("CAMBIO:", y, l.normal, "")
		right(fmt.Sprintf("S/ %.2f", first.Change), y, l.normal, "")
		y += l.normalSpacing
	}

	qrSize := (pageHeight - y - 100) / 3
	if qrSize < 30 {
		qrSize = 30
	}
	if qrSize > 50 {
		qrSize = 50
	}

	// QR failures degrade to the plain URL line, never to a render error.
	png, err := qrcode.Encode(g.company.QRContent, qrcode.Medium, 120)
	if err == nil {
		separator(y, true)
		y += l.smallSpacing

		centered("Consultar en:", y, l.small, "")
		y += l.smallSpacing

		opts := fpdf.ImageOptions{ImageType: "PNG"}
		doc.RegisterImageOptionsReader("ticket-qr", opts, bytes.NewReader(png))
		doc.ImageOptions("ticket-qr", (pageWidth-qrSize)/2, y, qrSize, qrSize, false, opts, 0, "")
		y += qrSize + l.smallSpacing
	} else {
		log.Printf("[receipt] WARN: qr encode failed: %v", err)
	}
	centered(strings.ToUpper(g.company.Website), y, l.normal, "B")
	y += l.normalSpacing

	if pageHeight-y > 30 {
		separator(y, true)
		y += l.smallSpacing
		centered(g.company.AuthorizationNote, y, l.small, "")
		y += l.smallSpacing

		separator(y, false)
		y += l.smallSpacing
		centered("GRACIAS POR SU PREFERENCIA", y, l.normal, "B")
	} else {
		centered("GRACIAS POR SU PREFERENCIA", y, l.small, "B")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render ticket: %w", err)
	}
	return buf.Bytes(), Filename(first), nil
}

// WriteFile renders the ticket and writes it under dir, returning the full
// path.
func (g *Generator) WriteFile(dir string, sales []domain.Sale, cashier *domain.User, customer *domain.Customer) (string, error) {
	pdf, name, err := g.Render(sales, cashier, customer)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create receipt dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write ticket: %w", err)
	}
	return path, nil
}

func paymentLabel(method string) string {
	switch method {
	case domain.PaymentCard:
		return "TARJETA"
	case domain.PaymentWallet:
		return "YAPE"
	default:
		return "EFECTIVO"
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func truncateDot(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "."
}
