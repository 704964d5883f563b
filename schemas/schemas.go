package schemas

const (
	KindShopProduct = 30402
	KindHeritage    = 30023
)

// Marker hashtags distinguish culturebridge records from other events of the same kind.
const (
	TagShop     = "culture-bridge-shop"
	TagHeritage = "culture-bridge-heritage"
)

const (
	RecordTypeProduct  = "product"
	RecordTypeHeritage = "heritage"
)

// KindForType maps the record type used in routes to its event kind.
func KindForType(t string) (int, bool) {
	switch t {
	case RecordTypeProduct:
		return KindShopProduct, true
	case RecordTypeHeritage:
		return KindHeritage, true
	default:
		return 0, false
	}
}

func MarkerForKind(kind int) string {
	switch kind {
	case KindShopProduct:
		return TagShop
	case KindHeritage:
		return TagHeritage
	default:
		return ""
	}
}
