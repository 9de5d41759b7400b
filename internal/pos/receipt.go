package pos

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/possync/internal/model"
)

// receiptWidth is the character width of a 58mm thermal printer line.
const receiptWidth = 32

// Receipt renders a transaction as plain text with Indonesian number
// formatting (60000 prints as "Rp60.000").
func Receipt(txn model.Transaction) string {
	p := message.NewPrinter(language.Indonesian)
	var b strings.Builder

	rule := strings.Repeat("-", receiptWidth)
	b.WriteString(p.Sprintf("Store %s\n", txn.StoreID))
	b.WriteString(p.Sprintf("%s\n", txn.CreatedAt.Format("2006-01-02 15:04")))
	b.WriteString(p.Sprintf("Txn %s\n", txn.ID))
	b.WriteString(rule + "\n")
	for _, line := range txn.Items {
		b.WriteString(line.Name + "\n")
		writeColumns(&b, p.Sprintf("  %d x Rp%d", line.Quantity, line.UnitPrice), p.Sprintf("Rp%d", line.LineTotal))
	}
	b.WriteString(rule + "\n")
	writeColumns(&b, "TOTAL", p.Sprintf("Rp%d", txn.Total))
	writeColumns(&b, "Payment", strings.ToUpper(string(txn.PaymentMethod)))
	return b.String()
}

// writeColumns writes left and right text padded to receiptWidth.
func writeColumns(b *strings.Builder, left, right string) {
	pad := receiptWidth - len([]rune(left)) - len([]rune(right))
	if pad < 1 {
		pad = 1
	}
	b.WriteString(left)
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(right)
	b.WriteString("\n")
}
