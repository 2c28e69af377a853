package cart

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	maxIDLen          = 120
	maxNameLen        = 200
	maxBrandLen       = 120
	maxSKULen         = 120
	maxURLLen         = 500
	maxProductTypeLen = 60
	maxMapKeyLen      = 60
	maxMapValueLen    = 200
	maxMetadata       = 10
	maxOptions        = 5
	maxPrice          = 100000
	maxIntervalMonths = 12

	basePriceKey = "basePrice"
)

// ParseItem validates one untrusted item. Items missing an id, a name or a valid price are rejected.
func ParseItem(raw gjson.Result) (LineItem, bool) {
	return parseItem(raw, true)
}

// ParseItems validates every element of an untrusted array, keeping only the valid ones.
func ParseItems(raw gjson.Result) []LineItem {
	items := []LineItem{}
	if !raw.IsArray() {
		return items
	}
	raw.ForEach(func(_, value gjson.Result) bool {
		if item, ok := ParseItem(value); ok {
			items = append(items, item)
		}
		return true
	})
	return items
}

// ParseStoredItem reads an item written by an older or newer build of the cart.
// It applies the clamp rules without the id/name/price gate and keeps reward fields.
func ParseStoredItem(raw gjson.Result) (LineItem, bool) {
	return parseItem(raw, false)
}

func parseItem(raw gjson.Result, strict bool) (LineItem, bool) {
	if !raw.IsObject() {
		return LineItem{}, false
	}

	item := LineItem{
		ID:          truncate(stringField(raw, "id"), maxIDLen),
		Name:        truncate(stringField(raw, "name"), maxNameLen),
		Brand:       truncate(stringField(raw, "brand"), maxBrandLen),
		SKU:         truncate(stringField(raw, "sku"), maxSKULen),
		Image:       truncate(stringField(raw, "image"), maxURLLen),
		URL:         truncate(stringField(raw, "url"), maxURLLen),
		ProductType: truncate(stringField(raw, "productType"), maxProductTypeLen),
	}
	item.ProductID = ResolveProductID(truncate(stringField(raw, "productId"), maxIDLen), item.ID)

	price, priceOK := priceField(raw, "price")
	basePrice := price
	if bp := raw.Get(basePriceKey); bp.Exists() {
		parsed, ok := priceField(raw, basePriceKey)
		if !ok && strict {
			return LineItem{}, false
		}
		if ok {
			basePrice = parsed
		}
	}
	if strict && (item.ID == "" || item.Name == "" || !priceOK) {
		return LineItem{}, false
	}
	if !strict && item.ID == "" {
		return LineItem{}, false
	}
	item.Price = price

	item.MaxCartQty = maxQtyField(raw)
	item.Quantity = 1
	if q := raw.Get("quantity"); q.Type == gjson.Number && isFinite(q.Float()) {
		item.Quantity = floorQuantity(q.Float(), HardMaxQuantity)
	}

	item.RetExclude = RetExclude(strings.TrimSpace(raw.Get("retExclude").String()))
	item.Metadata = readStringMap(raw.Get("metadata"), maxMetadata-1, basePriceKey)
	if item.Metadata == nil {
		item.Metadata = map[string]string{}
	}
	item.Metadata[basePriceKey] = strconv.FormatFloat(basePrice, 'f', -1, 64)
	item.Options = readStringMap(raw.Get("options"), maxOptions, "")

	if sub := raw.Get("subscription"); sub.IsObject() {
		item.Subscription = &Subscription{
			Enabled:        sub.Get("enabled").Type == gjson.True,
			IntervalMonths: int(sub.Get("intervalMonths").Int()),
		}
	}

	// Reward flags are kept so batch adds can drop them.
	item.IsReward = raw.Get("isReward").Type == gjson.True
	if !strict {
		item.ParentProductID = truncate(stringField(raw, "parentProductId"), maxIDLen)
		if src := raw.Get("rewardSource"); src.IsObject() {
			item.RewardSource = &RewardSource{
				Type:            RewardKind(stringField(src, "type")),
				SourceID:        truncate(stringField(src, "sourceId"), maxIDLen),
				Description:     truncate(stringField(src, "description"), maxNameLen),
				ParentProductID: truncate(stringField(src, "parentProductId"), maxIDLen),
			}
		}
		if item.IsReward {
			if q := raw.Get("quantity"); q.Type == gjson.Number && isFinite(q.Float()) {
				item.Quantity = floorQuantity(q.Float(), math.MaxInt32)
			}
		}
	}

	item = NormalizeItem(item)
	if strict && item.IsReward {
		// untrusted input never sets a reward quantity
		item.Quantity = clampQuantity(item.Quantity, item.QuantityCeiling())
	}
	return item, true
}

// floorQuantity floors f and saturates it to [0, hi] before converting to int.
func floorQuantity(f float64, hi int) int {
	f = math.Floor(f)
	switch {
	case f <= 0:
		return 0
	case f >= float64(hi):
		return hi
	}
	return int(f)
}

// NormalizeItem applies the clamp rules to an already typed item: strings are trimmed and
// capped, the product id resolved, quantity clamped to [1, min(maxCartQty, 999)] for
// shopper lines, and unknown enumerations reset.
func NormalizeItem(item LineItem) LineItem {
	item.ID = truncate(item.ID, maxIDLen)
	item.Name = truncate(item.Name, maxNameLen)
	item.Brand = truncate(item.Brand, maxBrandLen)
	item.SKU = truncate(item.SKU, maxSKULen)
	item.Image = truncate(item.Image, maxURLLen)
	item.URL = truncate(item.URL, maxURLLen)
	item.ProductType = truncate(item.ProductType, maxProductTypeLen)
	item.ProductID = ResolveProductID(item.ProductID, item.ID)
	item.ParentProductID = strings.TrimSpace(item.ParentProductID)

	if !isFinite(item.Price) || item.Price < 0 {
		item.Price = 0
	} else if item.Price > maxPrice {
		item.Price = maxPrice
	}
	if item.MaxCartQty != nil && *item.MaxCartQty <= 0 {
		item.MaxCartQty = nil
	}
	if !item.RetExclude.IsValid() {
		item.RetExclude = RetExcludeNone
	}
	item.Metadata = capStringMap(item.Metadata, maxMetadata)
	item.Options = capStringMap(item.Options, maxOptions)
	item.Subscription = normalizeSubscription(item.Subscription)

	if !item.IsReward {
		item.Quantity = clampQuantity(item.Quantity, item.QuantityCeiling())
		item.RewardSource = nil
		item.ParentProductID = ""
	}
	return item
}

func normalizeSubscription(sub *Subscription) *Subscription {
	if sub == nil {
		return nil
	}
	out := *sub
	if out.IntervalMonths < 1 {
		out.IntervalMonths = 1
	}
	if out.IntervalMonths > maxIntervalMonths {
		out.IntervalMonths = maxIntervalMonths
	}
	return &out
}

func stringField(raw gjson.Result, path string) string {
	v := raw.Get(path)
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Number:
		return strings.TrimSpace(v.Raw)
	}
	return ""
}

func priceField(raw gjson.Result, path string) (float64, bool) {
	v := raw.Get(path)
	if v.Type != gjson.Number {
		return 0, false
	}
	f := v.Float()
	if !isFinite(f) || f < 0 || f > maxPrice {
		return 0, false
	}
	return f, true
}

func maxQtyField(raw gjson.Result) *int {
	v := raw.Get("maxCartQty")
	if v.Type != gjson.Number {
		return nil
	}
	f := v.Float()
	if !isFinite(f) || f <= 0 || f != math.Trunc(f) {
		return nil
	}
	n := int(math.Min(f, HardMaxQuantity))
	return &n
}

// readStringMap keeps string and number entries in document order.
func readStringMap(raw gjson.Result, limit int, skip string) map[string]string {
	if !raw.IsObject() {
		return nil
	}
	out := map[string]string{}
	raw.ForEach(func(key, value gjson.Result) bool {
		if len(out) >= limit {
			return false
		}
		k := truncate(key.String(), maxMapKeyLen)
		if k == "" || k == skip {
			return true
		}
		switch value.Type {
		case gjson.String:
			out[k] = truncate(value.Str, maxMapValueLen)
		case gjson.Number:
			out[k] = strconv.FormatFloat(value.Float(), 'f', -1, 64)
		}
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

func capStringMap(in map[string]string, limit int) map[string]string {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if len(out) >= limit {
			break
		}
		out[truncate(k, maxMapKeyLen)] = truncate(in[k], maxMapValueLen)
	}
	return out
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
