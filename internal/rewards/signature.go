package rewards

import (
	"strconv"
	"strings"

	"github.com/angelmondragon/storefront-cart/internal/cart"
)

// Signature serializes the fields that affect reward eligibility, preserving cart order.
func Signature(items []cart.LineItem) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString(strconv.Quote(item.ID))
		b.WriteByte('|')
		b.WriteString(strconv.Quote(cart.ResolveProductID(item.ProductID, item.ID)))
		b.WriteByte('|')
		b.WriteString(strconv.Quote(item.SKU))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(item.Quantity))
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(item.Price, 'f', -1, 64))
		b.WriteByte(';')
	}
	return b.String()
}
